package claim

import (
	"net/http"

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
	api.POST("/claims", h.Submit)
	api.GET("/claims", h.ListByStatus)
	api.GET("/claims/:id", h.Get)
	api.POST("/claims/:id/verify", h.Verify)
	api.POST("/claims/:id/approve", h.Approve)
	api.POST("/claims/:id/reject", h.Reject)
	api.POST("/claims/:id/pay", h.Pay)
	api.GET("/patients/:patient_id/claims", h.ListByPatient)
}

type submitRequest struct {
	ID            string   `json:"id"`
	PolicyNumber  string   `json:"policy_number"`
	PatientID     string   `json:"patient_id"`
	ProviderID    string   `json:"provider_id"`
	ClaimedAmount int64    `json:"claimed_amount"`
	DocumentRefs  []string `json:"document_refs"`
}

func (h *Handler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	err := h.svc.Submit(c.Request().Context(), actor, req.ID, req.PolicyNumber, req.PatientID, req.ProviderID, req.ClaimedAmount, req.DocumentRefs)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *Handler) Verify(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Verify(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type approveRequest struct {
	ApprovedAmount int64 `json:"approved_amount"`
}

func (h *Handler) Approve(c echo.Context) error {
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Approve(c.Request().Context(), actor, c.Param("id"), req.ApprovedAmount); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Reject(c echo.Context) error {
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Reject(c.Request().Context(), actor, c.Param("id"), req.Reason); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Pay(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Pay(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Get(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	claim, err := h.svc.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	page := pagination.FromContext(c)
	actor := auth.IdentityFromContext(c.Request().Context())
	claims, err := h.svc.ListByPatient(c.Request().Context(), actor, c.Param("patient_id"), page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if claims == nil {
		claims = []*Claim{}
	}
	return c.JSON(http.StatusOK, page.Wrap(claims, len(claims)))
}

func (h *Handler) ListByStatus(c echo.Context) error {
	status := Status(c.QueryParam("status"))
	if status == "" {
		status = StatusSubmitted
	}
	page := pagination.FromContext(c)
	actor := auth.IdentityFromContext(c.Request().Context())
	claims, err := h.svc.ListByStatus(c.Request().Context(), actor, status, page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if claims == nil {
		claims = []*Claim{}
	}
	return c.JSON(http.StatusOK, page.Wrap(claims, len(claims)))
}
