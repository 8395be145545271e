package identity

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/platform/auth"
)

// UserFilter selects users by exact field match. Zero fields are ignored.
type UserFilter struct {
	Role           auth.Role
	Specialization string
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// List returns matching users in insertion order.
	List(ctx context.Context, f UserFilter, limit, offset int) ([]*User, error)
	Count(ctx context.Context, f UserFilter) (int, error)
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
	SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error
}
