package model

// ViewState is the per-session lifecycle of a cached view counter.
type ViewState int

const (
	ViewUnseen ViewState = iota
	ViewCached
	ViewRecorded
)

func (s ViewState) String() string {
	switch s {
	case ViewCached:
		return "cached"
	case ViewRecorded:
		return "recorded"
	default:
		return "unseen"
	}
}

// ViewCounter is the cached view count of one entity.
// Count only grows through local recording; a refresh may overwrite it in
// either direction.
type ViewCounter struct {
	EntityID int64 `json:"entity_id"`
	Count    int64 `json:"count"`
	Recorded bool  `json:"recorded"`
}

// RecordViewResponse is returned by POST /entities/{id}/views.
type RecordViewResponse struct {
	EntityID int64 `json:"entity_id"`
	Count    int64 `json:"count"`
}

// ViewCountsResponse is returned by GET /entities/views.
type ViewCountsResponse struct {
	Counts map[int64]int64 `json:"counts"`
}
