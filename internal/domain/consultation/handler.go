package consultation

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
)

// Handler serves the consultation routes shared by every role. Role-specific
// flows live in the dashboard package.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/consultations", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	g.GET("/:id", h.Get)
	g.GET("/:id/lab-reports", h.ListLabReports)
}

// ParseID reads an ObjectID path parameter.
func ParseID(c echo.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	cons, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) ListLabReports(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}
	reports, err := h.svc.ListLabReports(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if reports == nil {
		reports = []*LabReport{}
	}
	return c.JSON(http.StatusOK, reports)
}
