package worker

import (
	"context"

	"quizgram/internal/queue"
)

// Handler processes social events read from the stream.
type Handler interface {
	HandleEvent(ctx context.Context, event queue.SocialEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event queue.SocialEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event queue.SocialEvent) error {
	return f(ctx, event)
}

// TypeFilter passes only events of the listed types to next. An empty
// list passes everything.
func TypeFilter(next Handler, types ...string) Handler {
	if len(types) == 0 {
		return next
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return HandlerFunc(func(ctx context.Context, event queue.SocialEvent) error {
		if _, ok := allowed[event.Type]; !ok {
			return nil
		}
		return next.HandleEvent(ctx, event)
	})
}
