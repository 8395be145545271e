package docstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type kind string

type testDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Kind      kind               `bson:"kind"`
	Tags      []string           `bson:"tags"`
	CreatedAt time.Time          `bson:"created_at"`
}

func TestMemoryStore_InsertAndFindOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Insert(ctx, "docs", &testDoc{Email: "a@x.com", Kind: "doctor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.IsZero() {
		t.Fatal("expected generated id")
	}

	var got testDoc
	if err := s.FindOne(ctx, "docs", bson.M{"kind": kind("doctor")}, &got); err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got.ID != id || got.Email != "a@x.com" {
		t.Errorf("unexpected document: %+v", got)
	}
}

func TestMemoryStore_FindOne_NoDocument(t *testing.T) {
	s := NewMemoryStore()
	var got testDoc
	err := s.FindOne(context.Background(), "docs", bson.M{"email": "none"}, &got)
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}

func TestMemoryStore_UniqueIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.EnsureIndexes(ctx, []Index{{Collection: "docs", Keys: []string{"email"}, Unique: true}}); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	if _, err := s.Insert(ctx, "docs", &testDoc{Email: "a@x.com"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := s.Insert(ctx, "docs", &testDoc{Email: "a@x.com"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	n, _ := s.Count(ctx, "docs", nil)
	if n != 1 {
		t.Errorf("expected 1 document, got %d", n)
	}
}

func TestMemoryStore_FindMany_SortDescWithTiebreak(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		d := &testDoc{ID: primitive.NewObjectID(), Kind: "k", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		ids = append(ids, d.ID)
		s.Insert(ctx, "docs", d)
	}
	// Same timestamp as the newest: ordering falls back to _id.
	tie := &testDoc{ID: primitive.NewObjectID(), Kind: "k", CreatedAt: base.Add(2 * time.Hour)}
	s.Insert(ctx, "docs", tie)

	var got []*testDoc
	err := s.FindMany(ctx, "docs", bson.M{"kind": "k"}, FindOptions{
		Sort: []SortField{{Field: "created_at", Desc: true}, {Field: "_id", Desc: true}},
	}, &got)
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	want := []primitive.ObjectID{tie.ID, ids[2], ids[1], ids[0]}
	if len(got) != len(want) {
		t.Fatalf("expected %d docs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i].Hex(), got[i].ID.Hex())
		}
	}
}

func TestMemoryStore_FindMany_SkipLimitValueSlice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		s.Insert(ctx, "docs", &testDoc{ID: primitive.NewObjectID()})
	}
	var got []testDoc
	err := s.FindMany(ctx, "docs", nil, FindOptions{Sort: []SortField{{Field: "_id"}}, Skip: 3, Limit: 10}, &got)
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 docs, got %d", len(got))
	}
}

func TestMemoryStore_UpdateByID_SetPushGuard(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, _ := s.Insert(ctx, "docs", &testDoc{Email: "a@x.com", Kind: "pending"})

	err := s.UpdateByID(ctx, "docs", id, Update{
		Set:   bson.M{"kind": kind("done")},
		Push:  bson.M{"tags": "lab-1"},
		Guard: bson.M{"kind": kind("pending")},
	})
	if err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}

	var got testDoc
	s.FindOne(ctx, "docs", bson.M{"_id": id}, &got)
	if got.Kind != "done" {
		t.Errorf("expected kind=done, got %s", got.Kind)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "lab-1" {
		t.Errorf("expected pushed tag, got %v", got.Tags)
	}

	// The guard no longer holds, so the second update must not apply.
	err = s.UpdateByID(ctx, "docs", id, Update{
		Set:   bson.M{"kind": kind("reopened")},
		Guard: bson.M{"kind": kind("pending")},
	})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	s.FindOne(ctx, "docs", bson.M{"_id": id}, &got)
	if got.Kind != "done" {
		t.Errorf("expected kind to stay done, got %s", got.Kind)
	}
}

func TestMemoryStore_UpdateByID_UnknownID(t *testing.T) {
	s := NewMemoryStore()
	err := s.UpdateByID(context.Background(), "docs", primitive.NewObjectID(), Update{Set: bson.M{"kind": "x"}})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestMemoryStore_Count(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Insert(ctx, "docs", &testDoc{Kind: "doctor"})
	s.Insert(ctx, "docs", &testDoc{Kind: "doctor"})
	s.Insert(ctx, "docs", &testDoc{Kind: "patient"})

	n, err := s.Count(ctx, "docs", bson.M{"kind": kind("doctor")})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestHealthHandler_Healthy(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := HealthHandler(NewMemoryStore())(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
