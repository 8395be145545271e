package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNoDocument   = errors.New("docstore: no document matched the filter")
	ErrDuplicateKey = errors.New("docstore: duplicate key")
	ErrNoMatch      = errors.New("docstore: update matched no document")
)

// SortField orders FindMany results by one document field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions controls ordering and windowing of FindMany.
type FindOptions struct {
	Sort  []SortField
	Limit int64
	Skip  int64
}

// Update is a partial mutation of a single document. Set replaces fields,
// Push appends one value to each named array field. Guard holds extra
// equality conditions the stored document must still satisfy; when it
// does not, UpdateByID returns ErrNoMatch and nothing is written.
type Update struct {
	Set   bson.M
	Push  bson.M
	Guard bson.M
}

// Index describes a collection index. Keys are ascending.
type Index struct {
	Collection string
	Keys       []string
	Unique     bool
}

// Store is the minimal document-store contract the repositories are built
// on. Filters are equality matches on top-level fields.
type Store interface {
	FindOne(ctx context.Context, collection string, filter bson.M, out interface{}) error
	FindMany(ctx context.Context, collection string, filter bson.M, opts FindOptions, out interface{}) error
	Insert(ctx context.Context, collection string, doc interface{}) (primitive.ObjectID, error)
	UpdateByID(ctx context.Context, collection string, id primitive.ObjectID, upd Update) error
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)
	EnsureIndexes(ctx context.Context, indexes []Index) error
	Ping(ctx context.Context) error
}

func (u Update) empty() bool {
	return len(u.Set) == 0 && len(u.Push) == 0
}
