// Package events is the in-process notification channel between the client
// core and whatever renders its state.
package events

import (
	"log/slog"
	"sync"

	"quizgram/internal/model"
)

// Event is anything published on a Bus. Subscribers type-switch on it.
type Event interface {
	EventType() string
}

const (
	TypeRelationshipChanged = "relationship_changed"
	TypeMutationFailed      = "mutation_failed"
)

// RelationshipChanged is published after the server confirms a toggle.
type RelationshipChanged struct {
	SourceID int64
	TargetID int64
	State    model.FollowState
}

func (RelationshipChanged) EventType() string { return TypeRelationshipChanged }

// MutationFailed is published after a toggle was rolled back. Edge is the
// relationship as it was before the toggle.
type MutationFailed struct {
	Kind    model.ErrorKind
	Message string
	Edge    model.RelationshipEdge
	Err     error
}

func (MutationFailed) EventType() string { return TypeMutationFailed }

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber. A panicking subscriber is
// logged and skipped.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s.fn, e)
	}
}

func deliver(fn Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked", "component", "EventBus", "type", e.EventType(), "panic", r)
		}
	}()
	fn(e)
}
