package repository

import (
	"context"
)

type RelationshipRepository interface {
	// Create inserts the follow edge. Returns false when it already existed.
	Create(ctx context.Context, followerID, followeeID int64) (bool, error)
	// Delete removes the follow edge. Returns false when there was nothing to remove.
	Delete(ctx context.Context, followerID, followeeID int64) (bool, error)
	Exists(ctx context.Context, followerID, followeeID int64) (bool, error)
	CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error)
	CountFollowers(ctx context.Context, userID int64) (int64, error)
}

type ViewCountRepository interface {
	// Increment adds one view and returns the new count.
	Increment(ctx context.Context, entityID int64) (int64, error)
	// Counts returns the count of every requested entity, 0 for entities never viewed.
	Counts(ctx context.Context, entityIDs []int64) (map[int64]int64, error)
}
