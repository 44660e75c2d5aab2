package prescription

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
	api.POST("/prescriptions", h.Create)
	api.GET("/prescriptions/:id", h.Get)
	api.POST("/prescriptions/:id/fill", h.Fill)
	api.POST("/prescriptions/:id/cancel", h.Cancel)
	api.POST("/prescriptions/:id/expire", h.MarkExpired)
	api.GET("/prescriptions/:id/verify", h.Verify)
	api.GET("/patients/:patient_id/prescriptions", h.ListByPatient)
}

type createRequest struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	DoctorID     string    `json:"doctor_id"`
	Medication   string    `json:"medication"`
	Dosage       string    `json:"dosage"`
	Instructions string    `json:"instructions"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	err := h.svc.Create(c.Request().Context(), actor, req.ID, req.PatientID, req.DoctorID,
		req.Medication, req.Dosage, req.Instructions, req.ExpiresAt)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *Handler) Fill(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Fill(c.Request().Context(), actor, c.Param("id")); err != nil {
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

func (h *Handler) MarkExpired(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.MarkExpired(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Get(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Verify(c echo.Context) error {
	ok := h.svc.Verify(c.Request().Context(), c.Param("id"), c.QueryParam("token"))
	return c.JSON(http.StatusOK, map[string]bool{"valid": ok})
}

func (h *Handler) ListByPatient(c echo.Context) error {
	page := pagination.FromContext(c)
	actor := auth.IdentityFromContext(c.Request().Context())
	rxs, err := h.svc.ListByPatient(c.Request().Context(), actor, c.Param("patient_id"), page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if rxs == nil {
		rxs = []*Prescription{}
	}
	return c.JSON(http.StatusOK, page.Wrap(rxs, len(rxs)))
}
