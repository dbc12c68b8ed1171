package eventbus

import "context"

type busKey struct{}

// WithEventBus attaches an event bus to the context, making it available to
// request handling code via FromContext.
func WithEventBus(ctx context.Context, eb EventBus) context.Context {
	return context.WithValue(ctx, busKey{}, eb)
}

// FromContext returns the event bus attached to the context, or nil if none
// is present. Callers should nil-check before publishing.
func FromContext(ctx context.Context) EventBus {
	if eb, ok := ctx.Value(busKey{}).(EventBus); ok {
		return eb
	}
	return nil
}
