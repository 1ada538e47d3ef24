package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"quizgram/internal/model"
)

func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ErrInvalidEntityID
	}
	return id, nil
}

// parseIDs reads the comma separated "ids" query parameter. Duplicates are
// dropped, order is kept.
func parseIDs(r *http.Request) ([]int64, error) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		return nil, errors.New("ids is required")
	}

	parts := strings.Split(raw, ",")
	if len(parts) > model.MaxBatchIDs {
		return nil, model.ErrTooManyIDs
	}

	seen := make(map[int64]struct{}, len(parts))
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, model.ErrInvalidEntityID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
