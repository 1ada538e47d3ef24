package model

import (
	"errors"
	"fmt"
	"time"
)

// FollowState is the state of a directed follow relationship.
type FollowState string

const (
	Following    FollowState = "following"
	NotFollowing FollowState = "not_following"
)

// Valid reports whether s is one of the known states.
func (s FollowState) Valid() bool {
	return s == Following || s == NotFollowing
}

// Opposite returns the state a toggle moves to.
func (s FollowState) Opposite() FollowState {
	if s == Following {
		return NotFollowing
	}
	return Following
}

// ParseFollowState parses the wire form of a follow state.
func ParseFollowState(raw string) (FollowState, error) {
	s := FollowState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFollowState, raw)
	}
	return s, nil
}

// RelationshipEdge is the client-side view of a follow relationship.
// Pending is true while a mutation for the pair is in flight.
type RelationshipEdge struct {
	SourceID int64       `json:"source_id"`
	TargetID int64       `json:"target_id"`
	State    FollowState `json:"state"`
	Pending  bool        `json:"pending"`
}

// Follow is a persisted follow row.
type Follow struct {
	FollowerID int64     `db:"follower_id" json:"follower_id"`
	FolloweeID int64     `db:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SetRelationshipRequest is the body of PUT /users/{id}/following/{targetID}.
type SetRelationshipRequest struct {
	State FollowState `json:"state"`
}

// RelationshipResponse is returned after a relationship mutation.
type RelationshipResponse struct {
	SourceID int64       `json:"source_id"`
	TargetID int64       `json:"target_id"`
	State    FollowState `json:"state"`
}

// FollowerCountResponse is returned by GET /users/{id}/followers/count.
type FollowerCountResponse struct {
	UserID int64 `json:"user_id"`
	Count  int64 `json:"count"`
}

// FollowStatusResponse is returned by GET /users/{id}/following/status.
type FollowStatusResponse struct {
	Following map[int64]bool `json:"following"`
}

// MaxBatchIDs caps the ids accepted by the batch read endpoints.
const MaxBatchIDs = 100

var (
	ErrTooManyIDs         = errors.New("too many ids")
	ErrCannotFollowSelf   = errors.New("cannot follow yourself")
	ErrInvalidFollowState = errors.New("invalid follow state")
	ErrForbiddenSource    = errors.New("cannot change relationships of another user")
	ErrInvalidEntityID    = errors.New("invalid entity id")
)
