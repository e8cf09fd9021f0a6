// Package requestcontext carries request-scoped values from middleware to
// services without importing net/http.
//
// Services read the acting staff member and the request clock:
//
//	actor := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests pin both:
//
//	ctx = requestcontext.WithTime(ctx, fixed)
//	ctx = requestcontext.WithUserID(ctx, staffID)
package requestcontext

import (
	"context"
	"time"

	id "civreg/pkg/domain"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Actor is the authenticated staff member behind a request.
type Actor struct {
	UserID id.UserID
	Role   string
}

// WithActor stores the authenticated staff member.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the staff member and whether one was set.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// UserID returns the acting user, or the nil id for unauthenticated work
// such as the outbox relay.
func UserID(ctx context.Context) id.UserID {
	a, _ := ActorFrom(ctx)
	return a.UserID
}

// WithUserID sets the acting user and keeps any role already present.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	a, _ := ActorFrom(ctx)
	a.UserID = userID
	return WithActor(ctx, a)
}

// Role returns the acting user's role, empty if unauthenticated.
func Role(ctx context.Context) string {
	a, _ := ActorFrom(ctx)
	return a.Role
}

// WithRole sets the role and keeps any user already present.
func WithRole(ctx context.Context, role string) context.Context {
	a, _ := ActorFrom(ctx)
	a.Role = role
	return WithActor(ctx, a)
}

func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(requestIDKey{}).(string)
	return reqID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now is the request clock. Age categories and residence expiry are
// computed against it; outside a request it falls back to time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
