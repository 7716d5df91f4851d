package auth

import (
	"context"
	"slices"
)

const (
	RolePatient = "patient"
	RoleASHA    = "asha"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// WithActor stores the actor's id and roles on ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, a.ID)
	return context.WithValue(ctx, UserRolesKey, a.Roles)
}

// ActorFromContext returns the caller; the zero Actor when unauthenticated.
func ActorFromContext(ctx context.Context) Actor {
	return Actor{ID: UserIDFromContext(ctx), Roles: RolesFromContext(ctx)}
}
