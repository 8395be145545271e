package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is fixed per user at registration.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Identity is the acting user passed explicitly into every service call.
type Identity struct {
	UserID primitive.ObjectID
	Role   Role
	Name   string
}

// Is reports whether the identity holds the given role.
func (i Identity) Is(role Role) bool {
	return i.Role == role
}

// Session is the view of the current login consumed by the UI layer.
type Session struct {
	LoggedIn bool   `json:"logged_in"`
	UserID   string `json:"user_id,omitempty"`
	Role     Role   `json:"role,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// Session returns the session surface for this identity.
func (i Identity) Session() Session {
	if i.UserID.IsZero() {
		return Session{}
	}
	return Session{
		LoggedIn: true,
		UserID:   i.UserID.Hex(),
		Role:     i.Role,
		UserName: i.Name,
	}
}

type contextKey string

const (
	IdentityKey contextKey = "identity"
	TokenKey    contextKey = "token"
)

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFromContext returns the identity stored by SessionMiddleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

// TokenFromContext returns the claims of the bearer token for this request.
func TokenFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(TokenKey).(*Claims)
	return c, ok
}
