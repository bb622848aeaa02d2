package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	if ctx == nil {
		return auth.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(auth.Actor)
	return actor, ok
}

// ActorIDFromContext returns the caller id or uuid.Nil.
func ActorIDFromContext(ctx context.Context) uuid.UUID {
	actor, _ := ActorFromContext(ctx)
	return actor.ID
}

// RoleFromContext returns the caller role or the empty role.
func RoleFromContext(ctx context.Context) enums.ActorRole {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}

// WithActor injects the caller into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
