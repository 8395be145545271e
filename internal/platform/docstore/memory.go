package docstore

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store. Documents round-trip through BSON so
// decoding behaves like the MongoDB driver; filters are top-level equality
// matches. It backs tests and STORE_DRIVER=memory local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
	unique      map[string][][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]bson.M),
		unique:      make(map[string][][]string),
	}
}

func (s *MemoryStore) FindOne(_ context.Context, collection string, filter bson.M, out interface{}) error {
	f, err := toM(filter)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.collections[collection] {
		if matches(doc, f) {
			return decode(doc, out)
		}
	}
	return ErrNoDocument
}

func (s *MemoryStore) FindMany(_ context.Context, collection string, filter bson.M, opts FindOptions, out interface{}) error {
	f, err := toM(filter)
	if err != nil {
		return err
	}

	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("docstore: FindMany needs a pointer to a slice, got %T", out)
	}

	s.mu.RLock()
	var found []bson.M
	for _, doc := range s.collections[collection] {
		if matches(doc, f) {
			found = append(found, doc)
		}
	}
	s.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sort.SliceStable(found, func(i, j int) bool {
			for _, sf := range opts.Sort {
				c := compareValues(found[i][sf.Field], found[j][sf.Field])
				if c == 0 {
					continue
				}
				if sf.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(found)) {
			found = nil
		} else {
			found = found[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}

	slice := rv.Elem()
	elemType := slice.Type().Elem()
	result := reflect.MakeSlice(slice.Type(), 0, len(found))
	for _, doc := range found {
		if elemType.Kind() == reflect.Ptr {
			item := reflect.New(elemType.Elem())
			if err := decode(doc, item.Interface()); err != nil {
				return err
			}
			result = reflect.Append(result, item)
			continue
		}
		item := reflect.New(elemType)
		if err := decode(doc, item.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, item.Elem())
	}
	slice.Set(result)
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, collection string, doc interface{}) (primitive.ObjectID, error) {
	m, err := toM(doc)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := m["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		id = primitive.NewObjectID()
		m["_id"] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.collections[collection] {
		if existing["_id"] == id {
			return primitive.NilObjectID, fmt.Errorf("%w: _id %s", ErrDuplicateKey, id.Hex())
		}
		if key, dup := s.violatesUnique(collection, existing, m); dup {
			return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
	}
	s.collections[collection] = append(s.collections[collection], m)
	return id, nil
}

func (s *MemoryStore) UpdateByID(_ context.Context, collection string, id primitive.ObjectID, upd Update) error {
	if upd.empty() {
		return nil
	}
	guard, err := toM(upd.Guard)
	if err != nil {
		return err
	}
	set, err := toM(upd.Set)
	if err != nil {
		return err
	}
	push, err := toM(upd.Push)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i, doc := range docs {
		if doc["_id"] != id {
			continue
		}
		if !matches(doc, guard) {
			return ErrNoMatch
		}

		next := make(bson.M, len(doc)+len(set))
		for k, v := range doc {
			next[k] = v
		}
		for k, v := range set {
			next[k] = v
		}
		for k, v := range push {
			arr, _ := next[k].(primitive.A)
			next[k] = append(append(primitive.A{}, arr...), v)
		}

		for j, other := range docs {
			if j == i {
				continue
			}
			if key, dup := s.violatesUnique(collection, other, next); dup {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
			}
		}
		docs[i] = next
		return nil
	}
	return ErrNoMatch
}

func (s *MemoryStore) Count(_ context.Context, collection string, filter bson.M) (int64, error) {
	f, err := toM(filter)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, doc := range s.collections[collection] {
		if matches(doc, f) {
			n++
		}
	}
	return n, nil
}

// EnsureIndexes records unique indexes; non-unique indexes need no
// bookkeeping in memory.
func (s *MemoryStore) EnsureIndexes(_ context.Context, indexes []Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, idx := range indexes {
		if !idx.Unique {
			continue
		}
		keys := append([]string(nil), idx.Keys...)
		if !s.hasUnique(idx.Collection, keys) {
			s.unique[idx.Collection] = append(s.unique[idx.Collection], keys)
		}
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) hasUnique(collection string, keys []string) bool {
	for _, existing := range s.unique[collection] {
		if reflect.DeepEqual(existing, keys) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) violatesUnique(collection string, a, b bson.M) (string, bool) {
	for _, keys := range s.unique[collection] {
		same := true
		for _, k := range keys {
			if !reflect.DeepEqual(a[k], b[k]) {
				same = false
				break
			}
		}
		if same {
			return strings.Join(keys, ","), true
		}
	}
	return "", false
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		if !reflect.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

// toM converts v into the same bson.M shape a stored document has, so that
// typed values (named string types, time.Time) compare equal to stored ones.
func toM(v interface{}) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	if m, ok := v.(bson.M); ok && len(m) == 0 {
		return bson.M{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: marshal: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("docstore: unmarshal: %w", err)
	}
	return m, nil
}

func decode(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: marshal: %w", err)
	}
	return bson.Unmarshal(raw, out)
}

// compareValues orders BSON values of the same kind; missing values sort
// before everything else, as null does in MongoDB.
func compareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	switch av := a.(type) {
	case primitive.DateTime:
		if bv, ok := b.(primitive.DateTime); ok {
			return cmpFloat(float64(av), float64(bv))
		}
	case primitive.ObjectID:
		if bv, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(av[:], bv[:])
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}

	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		return cmpFloat(af, bf)
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
