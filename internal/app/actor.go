package app

import (
	"context"

	"shop-ledger/internal/core"
)

type actorKey struct{}

// WithActor returns a context carrying the authenticated caller.
func WithActor(ctx context.Context, a core.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the caller stored by WithActor.
func ActorFromContext(ctx context.Context) (core.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(core.Actor)
	return a, ok
}

func actorFrom(ctx context.Context, op string) (core.Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return core.Actor{}, core.Permissionf(op, "no authenticated actor")
	}
	return a, nil
}
