package doctor

import (
	"context"
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
	api.POST("/doctors", h.Register)
	api.GET("/doctors", h.List)
	api.GET("/doctors/:id", h.Get)
	api.POST("/doctors/:id/verify", h.Verify)
	api.POST("/doctors/:id/reject", h.Reject)
	api.POST("/doctors/:id/revoke", h.Revoke)
	api.POST("/doctors/:id/reviews", h.AddReview)
	api.GET("/doctors/:id/reviews", h.ListReviews)
}

type registerRequest struct {
	ID            string `json:"id"`
	Identity      string `json:"identity"`
	Name          string `json:"name"`
	Specialty     string `json:"specialty"`
	LicenseNumber string `json:"license_number"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	err := h.svc.Register(c.Request().Context(), actor, req.ID, req.Identity, req.Name, req.Specialty, req.LicenseNumber)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *Handler) Verify(c echo.Context) error {
	return h.applyTransition(c, h.svc.Verify)
}

func (h *Handler) Reject(c echo.Context) error {
	return h.applyTransition(c, h.svc.Reject)
}

func (h *Handler) Revoke(c echo.Context) error {
	return h.applyTransition(c, h.svc.Revoke)
}

func (h *Handler) applyTransition(c echo.Context, fn func(ctx context.Context, actor, id string) error) error {
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := fn(c.Request().Context(), actor, c.Param("id")); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) AddReview(c echo.Context) error {
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.AddReview(c.Request().Context(), actor, c.Param("id"), req.Rating, req.Comment); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) Get(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	page := pagination.FromContext(c)
	doctors, err := h.svc.List(c.Request().Context(), page.Limit, page.Offset)
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if doctors == nil {
		doctors = []*Doctor{}
	}
	return c.JSON(http.StatusOK, page.Wrap(doctors, len(doctors)))
}

func (h *Handler) ListReviews(c echo.Context) error {
	reviews, err := h.svc.ListReviews(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	if reviews == nil {
		reviews = []*Review{}
	}
	return c.JSON(http.StatusOK, reviews)
}
