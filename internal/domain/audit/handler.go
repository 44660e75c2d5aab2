package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medledger/medledger/internal/ledger"
)

// Handler exposes the trail read-only. There is no write endpoint; entries
// are created inside the entity stores' own mutations.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit", h.ListRecent)
	api.GET("/audit/:id", h.Get)
	api.GET("/audit/target/:target", h.ListByTarget)
}

func (h *Handler) Get(c echo.Context) error {
	rec, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListRecent(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := h.svc.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if recs == nil {
		recs = []*Record{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (h *Handler) ListByTarget(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := h.svc.ListByTarget(c.Request().Context(), c.Param("target"), limit)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if recs == nil {
		recs = []*Record{}
	}
	return c.JSON(http.StatusOK, recs)
}
