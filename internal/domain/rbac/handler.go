package rbac

import (
	"net/http"

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
	api.POST("/roles/grant", h.Grant)
	api.POST("/roles/revoke", h.Revoke)
	api.GET("/roles/check", h.Check)
	api.GET("/roles/identity/:identity", h.RolesOf)
}

type roleRequest struct {
	Role     string `json:"role"`
	Identity string `json:"identity"`
}

func (h *Handler) Grant(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.GrantRole(c.Request().Context(), actor, Role(req.Role), req.Identity); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Revoke(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.RevokeRole(c.Request().Context(), actor, Role(req.Role), req.Identity); err != nil {
		return echo.NewHTTPError(ledger.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Check(c echo.Context) error {
	role := Role(c.QueryParam("role"))
	identity := c.QueryParam("identity")
	has, err := h.svc.HasRole(c.Request().Context(), role, identity)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"has_role": has})
}

func (h *Handler) RolesOf(c echo.Context) error {
	roles, err := h.svc.RolesOf(c.Request().Context(), c.Param("identity"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if roles == nil {
		roles = []Role{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"identity": c.Param("identity"), "roles": roles})
}
