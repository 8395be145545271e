package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediconsult/mediconsult/internal/config"
	"github.com/mediconsult/mediconsult/internal/domain/consultation"
	"github.com/mediconsult/mediconsult/internal/domain/identity"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
	"github.com/mediconsult/mediconsult/internal/platform/docstore"
	"github.com/mediconsult/mediconsult/internal/seed"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "test",
		StoreDriver:       config.StoreMemory,
		SessionSigningKey: strings.Repeat("ab", 32),
		SessionTTL:        time.Hour,
		BcryptCost:        4,
		CORSOrigins:       []string{"http://localhost:3000"},
		RateLimitRPS:      1000,
		RateLimitBurst:    1000,
		SeedAdminEmail:    "admin@mediconsult.com",
		SeedAdminPassword: "admin123",
		SeedSampleDoctors: true,
	}
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	if err := store.EnsureIndexes(ctx, allIndexes()); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	revocations := auth.NewMemoryRevocationStore(0)
	t.Cleanup(revocations.Close)

	e, users, err := newServer(cfg, zerolog.Nop(), store, revocations)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if _, err := seed.EnsureSeedData(ctx, users, seedConfig(cfg), zerolog.Nop()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return e
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo, email, password string) identity.LoginResponse {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/v1/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp identity.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp
}

func TestServer_Health(t *testing.T) {
	e := newTestServer(t)

	for _, path := range []string{"/health", "/health/db"} {
		rec := do(e, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: expected a request id header", path)
		}
	}
}

func TestServer_PublicAndProtectedRoutes(t *testing.T) {
	e := newTestServer(t)

	if rec := do(e, http.MethodGet, "/api/v1/specializations", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected public specializations, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/doctors", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/admin/stats", "garbage", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a bad token, got %d", rec.Code)
	}
}

func TestServer_ConsultationRoundTrip(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1/auth/register", "",
		`{"name":"Alice","email":"alice@x.com","password":"pw123","confirm_password":"pw123","role":"patient","phone":"+1","patient":{"age":30,"gender":"Female"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	alice := login(t, e, "alice@x.com", "pw123")
	sarah := login(t, e, "cardio@mediconsult.com", "doctor123")
	if sarah.Session.Role != auth.RoleDoctor {
		t.Fatalf("expected seeded doctor, got %+v", sarah.Session)
	}

	rec = do(e, http.MethodPost, "/api/v1/patient/consultations", alice.Token,
		`{"doctor_id":"`+sarah.Session.UserID+`","symptoms":"chest pain","medical_history":"hypertension"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = do(e, http.MethodGet, "/api/v1/doctor/consultations/pending", sarah.Token, "")
	if !strings.Contains(rec.Body.String(), `"patient_name":"Alice"`) {
		t.Errorf("expected Alice in the queue, got %s", rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/api/v1/doctor/consultations/"+created["id"]+"/respond", sarah.Token,
		`{"diagnosis":"angina","status":"completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("respond: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodPost, "/api/v1/doctor/consultations/"+created["id"]+"/respond", sarah.Token,
		`{"status":"pending"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 moving backwards, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1/consultations/"+created["id"], alice.Token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"diagnosis":"angina"`) {
		t.Errorf("expected completed consultation, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/api/v1/admin/stats", alice.Token, ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient on admin route, got %d", rec.Code)
	}
}

func TestServer_LogoutRevokesToken(t *testing.T) {
	e := newTestServer(t)
	admin := login(t, e, "admin@mediconsult.com", "admin123")

	if rec := do(e, http.MethodGet, "/api/v1/admin/stats", admin.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/v1/auth/logout", admin.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/admin/stats", admin.Token, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestAllIndexes(t *testing.T) {
	indexes := allIndexes()
	var uniqueEmail bool
	for _, idx := range indexes {
		if idx.Collection == identity.UsersCollection && idx.Unique && len(idx.Keys) == 1 && idx.Keys[0] == "email" {
			uniqueEmail = true
		}
	}
	if !uniqueEmail {
		t.Error("expected a unique index on users.email")
	}
	if want := len(identity.Indexes) + len(consultation.Indexes); len(indexes) != want {
		t.Errorf("expected %d indexes, got %d", want, len(indexes))
	}
}
