// Package auth defines the authentication boundary: actors resolved from
// opaque bearer credentials. Token issuing and verification live behind
// interfaces so the core never depends on a concrete credential format.
package auth

import "context"

// Role is the actor's role in the system.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	// ProfileID is the patient or doctor profile the user resolves to.
	ProfileID string
	Role      Role
}

// TokenVerifier resolves a bearer credential to an actor.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Actor, error)
}

// TokenIssuer mints a bearer credential for an actor.
type TokenIssuer interface {
	Issue(actor Actor) (token string, err error)
}

type actorKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext extracts the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
