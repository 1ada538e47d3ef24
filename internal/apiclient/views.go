package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type viewCountsPayload struct {
	Counts map[int64]*int64 `json:"counts"`
}

// RecordEntityView records one view. Each successful call increments the
// server-side counter.
func (c *Client) RecordEntityView(ctx context.Context, entityID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/entities/%d/views", entityID), nil, nil)
}

// FetchEntityViewCounts returns the server counts for ids. Entities the server
// did not report, or reported without a usable count, are absent from the map.
func (c *Client) FetchEntityViewCounts(ctx context.Context, entityIDs []int64) (map[int64]int64, error) {
	if len(entityIDs) == 0 {
		return map[int64]int64{}, nil
	}

	query := url.Values{"ids": {joinIDs(entityIDs)}}

	var payload viewCountsPayload
	if err := c.do(ctx, http.MethodGet, "/entities/views?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	if payload.Counts == nil {
		return nil, invalidResponse("missing counts")
	}

	counts := make(map[int64]int64, len(payload.Counts))
	for id, count := range payload.Counts {
		if count == nil || *count < 0 {
			continue
		}
		counts[id] = *count
	}
	return counts, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
