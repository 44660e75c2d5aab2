package appointment

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/auth"
	"github.com/medledger/medledger/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Create)
	api.GET("/appointments/:id", h.Get)
	api.POST("/appointments/:id/confirm", h.Confirm)
	api.POST("/appointments/:id/complete", h.Complete)
	api.POST("/appointments/:id/cancel", h.Cancel)
	api.GET("/patients/:patient_id/appointments", h.ListByPatient)
	api.GET("/doctors/:doctor_id/appointments", h.ListByDoctor)
}

type createRequest struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	err := h.svc.Create(c.Request().Context(), actor, req.ID, req.PatientID, req.DoctorID, req.ScheduledAt, req.Reason)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *Handler) Confirm(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Confirm(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type completeRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) Complete(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Complete(c.Request().Context(), actor, c.Param("id"), req.Notes); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Cancel(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Cancel(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Get(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	a, err := h.svc.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	page := pagination.FromContext(c)
	actor := auth.IdentityFromContext(c.Request().Context())
	appts, err := h.svc.ListByPatient(c.Request().Context(), actor, c.Param("patient_id"), page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, page.Wrap(appts, len(appts)))
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	page := pagination.FromContext(c)
	actor := auth.IdentityFromContext(c.Request().Context())
	appts, err := h.svc.ListByDoctor(c.Request().Context(), actor, c.Param("doctor_id"), page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, page.Wrap(appts, len(appts)))
}
