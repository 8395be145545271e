package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
)

type Handler struct {
	svc         *Service
	issuer      *auth.TokenIssuer
	revocations auth.RevocationStore
}

func NewHandler(svc *Service, issuer *auth.TokenIssuer, revocations auth.RevocationStore) *Handler {
	return &Handler{svc: svc, issuer: issuer, revocations: revocations}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/specializations", h.ListSpecializations)

	// Any logged-in user
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/session", h.Session)
	api.PUT("/auth/password", h.ChangePassword)
	api.GET("/doctors", h.ListDoctors)

	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	doctor.PUT("/availability", h.SetAvailability)
}

type registerBody struct {
	RegisterRequest
	ConfirmPassword string `json:"confirm_password"`
}

// Register creates a patient or doctor account. Admin accounts are only
// created by seeding.
func (h *Handler) Register(c echo.Context) error {
	var body registerBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Role != auth.RolePatient && body.Role != auth.RoleDoctor {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be patient or doctor")
	}
	if strings.TrimSpace(body.Phone) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	if body.ConfirmPassword != "" && body.ConfirmPassword != body.Password {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	id, err := h.svc.Register(c.Request().Context(), body.RegisterRequest)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"id":      id.Hex(),
		"message": "User registered successfully",
	})
}

type loginBody struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role,omitempty"`
}

// LoginResponse carries the bearer token and the session it opens.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Session   auth.Session `json:"session"`
}

func (h *Handler) Login(c echo.Context) error {
	var body loginBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	u, err := h.svc.Authenticate(c.Request().Context(), body.Email, body.Password, body.Role)
	if err != nil {
		return apperr.HTTPError(err)
	}

	id := u.Identity()
	token, claims, err := h.issuer.Issue(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Session:   id.Session(),
	})
}

// Logout revokes the presented token until it would have expired.
func (h *Handler) Logout(c echo.Context) error {
	claims, ok := auth.TokenFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	if err := h.revocations.Revoke(c.Request().Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable").SetInternal(err)
	}
	return c.JSON(http.StatusOK, auth.Session{})
}

func (h *Handler) Session(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, id.Session())
}

type changePasswordBody struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var body changePasswordBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangePassword(c.Request().Context(), id, body.OldPassword, body.NewPassword); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("specialization"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	if doctors == nil {
		doctors = []*User{}
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) ListSpecializations(c echo.Context) error {
	return c.JSON(http.StatusOK, Specializations)
}

type availabilityBody struct {
	Available bool `json:"available"`
}

func (h *Handler) SetAvailability(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var body availabilityBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SetAvailability(c.Request().Context(), id, body.Available); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"available": body.Available})
}
