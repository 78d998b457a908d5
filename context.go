package steward

import "context"

type contextKey int

const ctxKeyActor contextKey = iota

// WithActor returns a context carrying the acting principal. Transport
// layers use it to hand the authenticated caller to handlers.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the actor stored by WithActor, or the anonymous
// actor.
func ActorFromContext(ctx context.Context) Actor {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	if !ok {
		return Actor{}
	}
	return a
}
