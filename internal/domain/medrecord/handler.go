package medrecord

import (
	"encoding/json"
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
	api.POST("/records", h.Create)
	api.GET("/records/:id", h.Get)
	api.PUT("/records/:id/metadata", h.UpdateMetadata)
	api.DELETE("/records/:id", h.Delete)
	api.GET("/patients/:patient_id/records", h.ListByPatient)
}

type createRequest struct {
	ID          string          `json:"id"`
	PatientID   string          `json:"patient_id"`
	DoctorID    string          `json:"doctor_id"`
	RecordType  string          `json:"record_type"`
	ContentHash string          `json:"content_hash"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	err := h.svc.Create(c.Request().Context(), actor, req.ID, req.PatientID, req.DoctorID, req.RecordType, req.ContentHash, req.Metadata)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": req.ID})
}

type metadataRequest struct {
	Metadata json.RawMessage `json:"metadata"`
}

func (h *Handler) UpdateMetadata(c echo.Context) error {
	var req metadataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.UpdateMetadata(c.Request().Context(), actor, c.Param("id"), req.Metadata); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Get(c echo.Context) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	rec, err := h.svc.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	page := pagination.FromContext(c)
	actor := auth.IdentityFromContext(c.Request().Context())
	recs, err := h.svc.ListByPatient(c.Request().Context(), actor, c.Param("patient_id"), page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if recs == nil {
		recs = []*Record{}
	}
	return c.JSON(http.StatusOK, page.Wrap(recs, len(recs)))
}
