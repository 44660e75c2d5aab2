package consent

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/consents", h.Grant)
	api.POST("/consents/:id/revoke", h.Revoke)
	api.GET("/consents/:id", h.Get)
	api.GET("/consents/:id/active", h.IsActive)
	api.GET("/patients/:patient_id/consents", h.ListByPatient)
}

type grantRequest struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	Grantee    string    `json:"grantee"`
	Scope      string    `json:"scope"`
	Purpose    string    `json:"purpose"`
	ValidUntil time.Time `json:"valid_until"`
}

func (h *Handler) Grant(c echo.Context) error {
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	err := h.svc.Grant(c.Request().Context(), actor, req.ID, req.PatientID, req.Grantee, req.Scope, req.Purpose, req.ValidUntil)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *Handler) Revoke(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Revoke(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Get(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	consent, err := h.svc.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, consent)
}

func (h *Handler) IsActive(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	active, err := h.svc.IsActive(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"active": active})
}

func (h *Handler) ListByPatient(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	consents, err := h.svc.ListByPatient(c.Request().Context(), actor, c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if consents == nil {
		consents = []*Consent{}
	}
	return c.JSON(http.StatusOK, consents)
}
