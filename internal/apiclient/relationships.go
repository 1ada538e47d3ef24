package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"quizgram/internal/model"
)

// relationshipPayload mirrors model.RelationshipResponse with every field
// optional so that partial responses are caught here.
type relationshipPayload struct {
	SourceID *int64  `json:"source_id"`
	TargetID *int64  `json:"target_id"`
	State    *string `json:"state"`
}

type followStatusPayload struct {
	Following map[int64]bool `json:"following"`
}

type followerCountPayload struct {
	UserID *int64 `json:"user_id"`
	Count  *int64 `json:"count"`
}

// MutateRelationship asks the server to put the relationship in the desired
// state and returns the state the server confirmed.
func (c *Client) MutateRelationship(ctx context.Context, sourceID, targetID int64, desired model.FollowState) (model.FollowState, error) {
	if !desired.Valid() {
		return "", &model.RemoteError{Kind: model.KindClientMisuse, Message: fmt.Sprintf("invalid desired state %q", desired)}
	}

	path := fmt.Sprintf("/users/%d/following/%d", sourceID, targetID)
	var payload relationshipPayload
	if err := c.do(ctx, http.MethodPut, path, model.SetRelationshipRequest{State: desired}, &payload); err != nil {
		return "", err
	}

	if payload.State == nil {
		return "", invalidResponse("missing state")
	}
	state, err := model.ParseFollowState(*payload.State)
	if err != nil {
		return "", invalidResponse("%v", err)
	}
	if (payload.SourceID != nil && *payload.SourceID != sourceID) ||
		(payload.TargetID != nil && *payload.TargetID != targetID) {
		return "", invalidResponse("relationship %v->%v does not match request %d->%d",
			deref(payload.SourceID), deref(payload.TargetID), sourceID, targetID)
	}
	return state, nil
}

// FollowerCount returns the number of followers of userID.
func (c *Client) FollowerCount(ctx context.Context, userID int64) (int64, error) {
	var payload followerCountPayload
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/followers/count", userID), nil, &payload); err != nil {
		return 0, err
	}
	if payload.Count == nil || *payload.Count < 0 {
		return 0, invalidResponse("missing or negative follower count")
	}
	return *payload.Count, nil
}

// FollowStatus reports whether sourceID follows each of targetIDs. Targets
// the server left out are absent from the map.
func (c *Client) FollowStatus(ctx context.Context, sourceID int64, targetIDs []int64) (map[int64]bool, error) {
	if len(targetIDs) == 0 {
		return map[int64]bool{}, nil
	}

	query := url.Values{"ids": {joinIDs(targetIDs)}}
	var payload followStatusPayload
	path := fmt.Sprintf("/users/%d/following/status?%s", sourceID, query.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Following == nil {
		return nil, invalidResponse("missing following")
	}
	return payload.Following, nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
