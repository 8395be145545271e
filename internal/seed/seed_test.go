package seed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/mediconsult/mediconsult/internal/domain/identity"
	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
	"github.com/mediconsult/mediconsult/internal/platform/credential"
	"github.com/mediconsult/mediconsult/internal/platform/docstore"
)

func newDirectory(t *testing.T) *identity.Service {
	t.Helper()
	store := docstore.NewMemoryStore()
	if err := store.EnsureIndexes(context.Background(), identity.Indexes); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return identity.NewService(identity.NewUserRepo(store), credential.NewHasher(bcrypt.MinCost), zerolog.Nop())
}

var defaultConfig = Config{AdminEmail: "admin@mediconsult.com", AdminPassword: "admin123", SampleDoctors: true}

func TestEnsureSeedData(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	res, err := EnsureSeedData(ctx, dir, defaultConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(res.Created) != 3 || len(res.Skipped) != 0 {
		t.Errorf("expected 3 created, got %+v", res)
	}

	if _, err := dir.Authenticate(ctx, "admin@mediconsult.com", "admin123", auth.RoleAdmin); err != nil {
		t.Errorf("expected admin login to work: %v", err)
	}
	sarah, err := dir.Authenticate(ctx, "cardio@mediconsult.com", "doctor123", auth.RoleDoctor)
	if err != nil {
		t.Fatalf("expected sample doctor login to work: %v", err)
	}
	if sarah.Specialization != "Cardiologist" || sarah.ConsultationFee != 100 || sarah.IsAvailable == nil || !*sarah.IsAvailable {
		t.Errorf("unexpected sample doctor %+v", sarah)
	}
}

func TestEnsureSeedData_Idempotent(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	EnsureSeedData(ctx, dir, defaultConfig, zerolog.Nop())
	res, err := EnsureSeedData(ctx, dir, defaultConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if len(res.Created) != 0 || len(res.Skipped) != 3 {
		t.Errorf("expected everything skipped, got %+v", res)
	}

	admins, _ := dir.CountUsers(ctx, auth.RoleAdmin)
	if admins != 1 {
		t.Errorf("expected exactly one admin, got %d", admins)
	}
}

func TestEnsureSeedData_Concurrent(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := EnsureSeedData(ctx, dir, defaultConfig, zerolog.Nop()); err != nil {
				t.Errorf("seed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := dir.CountUsers(ctx, ""); n != 3 {
		t.Errorf("expected 3 users, got %d", n)
	}
}

func TestEnsureSeedData_NoSampleDoctors(t *testing.T) {
	dir := newDirectory(t)
	cfg := defaultConfig
	cfg.SampleDoctors = false

	res, err := EnsureSeedData(context.Background(), dir, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0] != "admin@mediconsult.com" {
		t.Errorf("expected only the admin, got %+v", res)
	}
}

func TestEnsureSeedData_MissingAdmin(t *testing.T) {
	if _, err := EnsureSeedData(context.Background(), newDirectory(t), Config{}, zerolog.Nop()); err == nil {
		t.Error("expected an error without admin credentials")
	}
}

// racingDirectory reports the email as free but loses the insert.
type racingDirectory struct{}

func (racingDirectory) GetByEmail(context.Context, string) (*identity.User, error) {
	return nil, apperr.NotFound("user")
}

func (racingDirectory) Register(context.Context, identity.RegisterRequest) (primitive.ObjectID, error) {
	return primitive.NilObjectID, apperr.ErrDuplicateEmail
}

func TestEnsureSeedData_LostRaceIsSkipped(t *testing.T) {
	res, err := EnsureSeedData(context.Background(), racingDirectory{}, defaultConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(res.Created) != 0 || len(res.Skipped) != 3 {
		t.Errorf("expected all skipped, got %+v", res)
	}
}

type brokenDirectory struct{ racingDirectory }

var errStore = errors.New("store down")

func (brokenDirectory) GetByEmail(context.Context, string) (*identity.User, error) {
	return nil, errStore
}

func TestEnsureSeedData_StoreError(t *testing.T) {
	_, err := EnsureSeedData(context.Background(), brokenDirectory{}, defaultConfig, zerolog.Nop())
	if !errors.Is(err, errStore) {
		t.Errorf("expected store error, got %v", err)
	}
}
