package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediconsult/mediconsult/internal/domain/consultation"
	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
	"github.com/mediconsult/mediconsult/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	patient.GET("/doctors", h.FindDoctors)
	patient.GET("/consultations", h.History)
	patient.POST("/consultations", h.NewConsultation)
	patient.POST("/consultations/:id/follow-up", h.Reconsult)
	patient.POST("/consultations/:id/lab-reports", h.AttachLabReport)

	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/consultations/pending", h.PendingQueue)
	doctor.POST("/consultations/:id/respond", h.Respond)
	doctor.POST("/consultations/:id/lab-reports", h.AttachLabReport)
	doctor.GET("/patients", h.PatientHistory)
	doctor.GET("/overview", h.Overview)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/stats", h.Stats)
	admin.GET("/users", h.Users)
}

func (h *Handler) FindDoctors(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	cards, err := h.svc.FindDoctors(c.Request().Context(), actor, c.QueryParam("specialization"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cards)
}

func (h *Handler) NewConsultation(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	var form ConsultationForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id, err := h.svc.NewConsultation(c.Request().Context(), actor, form)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"id":      id.Hex(),
		"message": "Consultation request submitted successfully",
	})
}

func (h *Handler) Reconsult(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := consultation.ParseID(c, "id")
	if err != nil {
		return err
	}
	var form FollowUpForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	newID, err := h.svc.Reconsult(c.Request().Context(), actor, id, form.Symptoms)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"id":      newID.Hex(),
		"message": "Follow-up consultation requested",
	})
}

func (h *Handler) History(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	history, err := h.svc.History(c.Request().Context(), actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) AttachLabReport(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := consultation.ParseID(c, "id")
	if err != nil {
		return err
	}
	var form LabReportForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	report, err := h.svc.AttachLabReport(c.Request().Context(), actor, id, form)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, report)
}

func (h *Handler) PendingQueue(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	queue, err := h.svc.PendingQueue(c.Request().Context(), actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, queue)
}

func (h *Handler) Respond(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	id, err := consultation.ParseID(c, "id")
	if err != nil {
		return err
	}
	var form ResponseForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Respond(c.Request().Context(), actor, id, form); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Consultation updated successfully"})
}

func (h *Handler) PatientHistory(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	groups, err := h.svc.PatientHistory(c.Request().Context(), actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) Overview(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	ov, err := h.svc.Overview(c.Request().Context(), actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, ov)
}

func (h *Handler) Stats(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Users(c echo.Context) error {
	actor, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	role := auth.Role(c.QueryParam("role"))
	users, total, err := h.svc.Users(c.Request().Context(), actor, role, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	resp := pagination.NewResponse(users, total, pg.Limit, pg.Offset).
		WithLinks(c.Request().URL.Path, c.QueryParams())
	return c.JSON(http.StatusOK, resp)
}
