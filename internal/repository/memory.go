package repository

import (
	"context"
	"sync"
)

type followKey struct {
	follower int64
	followee int64
}

// MemoryRelationshipRepository keeps follow edges in a map. Used when no
// database is configured, and in tests.
type MemoryRelationshipRepository struct {
	mu      sync.RWMutex
	follows map[followKey]struct{}
}

func NewMemoryRelationshipRepository() *MemoryRelationshipRepository {
	return &MemoryRelationshipRepository{follows: make(map[followKey]struct{})}
}

func (r *MemoryRelationshipRepository) Create(_ context.Context, followerID, followeeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := followKey{followerID, followeeID}
	if _, ok := r.follows[key]; ok {
		return false, nil
	}
	r.follows[key] = struct{}{}
	return true, nil
}

func (r *MemoryRelationshipRepository) Delete(_ context.Context, followerID, followeeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := followKey{followerID, followeeID}
	if _, ok := r.follows[key]; !ok {
		return false, nil
	}
	delete(r.follows, key)
	return true, nil
}

func (r *MemoryRelationshipRepository) Exists(_ context.Context, followerID, followeeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.follows[followKey{followerID, followeeID}]
	return ok, nil
}

func (r *MemoryRelationshipRepository) CheckFollows(_ context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[int64]bool, len(followeeIDs))
	for _, id := range followeeIDs {
		_, result[id] = r.follows[followKey{followerID, id}]
	}
	return result, nil
}

func (r *MemoryRelationshipRepository) CountFollowers(_ context.Context, userID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for key := range r.follows {
		if key.followee == userID {
			n++
		}
	}
	return n, nil
}

// MemoryViewCountRepository keeps view counters in a map.
type MemoryViewCountRepository struct {
	mu     sync.Mutex
	counts map[int64]int64
}

func NewMemoryViewCountRepository() *MemoryViewCountRepository {
	return &MemoryViewCountRepository{counts: make(map[int64]int64)}
}

func (r *MemoryViewCountRepository) Increment(_ context.Context, entityID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts[entityID]++
	return r.counts[entityID], nil
}

func (r *MemoryViewCountRepository) Counts(_ context.Context, entityIDs []int64) (map[int64]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[int64]int64, len(entityIDs))
	for _, id := range entityIDs {
		result[id] = r.counts[id]
	}
	return result, nil
}
