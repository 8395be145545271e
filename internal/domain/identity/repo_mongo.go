package identity

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/docstore"
)

// UsersCollection holds every user record regardless of role.
const UsersCollection = "users"

// Indexes are the users collection indexes. The unique email index is what
// keeps concurrent registrations from creating duplicate accounts.
var Indexes = []docstore.Index{
	{Collection: UsersCollection, Keys: []string{"email"}, Unique: true},
	{Collection: UsersCollection, Keys: []string{"role"}},
	{Collection: UsersCollection, Keys: []string{"specialization"}},
}

type userRepoStore struct {
	store docstore.Store
}

func NewUserRepo(store docstore.Store) UserRepository {
	return &userRepoStore{store: store}
}

func (f UserFilter) bson() bson.M {
	m := bson.M{}
	if f.Role != "" {
		m["role"] = string(f.Role)
	}
	if f.Specialization != "" {
		m["specialization"] = f.Specialization
	}
	return m
}

func (r *userRepoStore) Create(ctx context.Context, u *User) error {
	id, err := r.store.Insert(ctx, UsersCollection, u)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return apperr.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

func (r *userRepoStore) GetByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepoStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepoStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	if err := r.store.FindOne(ctx, UsersCollection, filter, &u); err != nil {
		if errors.Is(err, docstore.ErrNoDocument) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (r *userRepoStore) List(ctx context.Context, f UserFilter, limit, offset int) ([]*User, error) {
	opts := docstore.FindOptions{
		Sort:  []docstore.SortField{{Field: "_id"}},
		Limit: int64(limit),
		Skip:  int64(offset),
	}
	var users []*User
	if err := r.store.FindMany(ctx, UsersCollection, f.bson(), opts, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *userRepoStore) Count(ctx context.Context, f UserFilter) (int, error) {
	n, err := r.store.Count(ctx, UsersCollection, f.bson())
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}

func (r *userRepoStore) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.update(ctx, id, bson.M{"password_hash": hash})
}

func (r *userRepoStore) SetAvailability(ctx context.Context, id primitive.ObjectID, available bool) error {
	return r.update(ctx, id, bson.M{"is_available": available})
}

func (r *userRepoStore) update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	err := r.store.UpdateByID(ctx, UsersCollection, id, docstore.Update{Set: set})
	if err != nil {
		if errors.Is(err, docstore.ErrNoMatch) {
			return apperr.NotFound("user")
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
