package preferences

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/scribe/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleClinician))
	g.GET("/menu", h.Menu)
	g.GET("/me/preferences", h.Get)
	g.POST("/me/menu-items", h.AddMenuItem)
	g.DELETE("/me/menu-items", h.RemoveMenuItem)
	g.POST("/me/sub-menus", h.AddSubMenu)
	g.POST("/me/starred", h.ToggleStar)
	g.PUT("/me/credential", h.SetCredential)
	g.DELETE("/me/credential", h.ClearCredential)
}

func apiError(status int, code, message string) *echo.HTTPError {
	return echo.NewHTTPError(status, map[string]string{"code": code, "message": message})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apiError(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownList):
		return apiError(http.StatusBadRequest, "invalid_input", err.Error())
	}
	return apiError(http.StatusInternalServerError, "internal", err.Error())
}

func userID(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) Menu(c echo.Context) error {
	groups, err := h.svc.Menu(c.Request().Context(), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type itemRequest struct {
	List string `json:"list"`
	Item string `json:"item"`
}

func (h *Handler) AddMenuItem(c echo.Context) error {
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return apiError(http.StatusBadRequest, "invalid_input", err.Error())
	}
	p, err := h.svc.AddMenuItem(c.Request().Context(), userID(c), req.List, req.Item)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RemoveMenuItem(c echo.Context) error {
	req := itemRequest{List: c.QueryParam("list"), Item: c.QueryParam("item")}
	if req.List == "" {
		if err := c.Bind(&req); err != nil {
			return apiError(http.StatusBadRequest, "invalid_input", err.Error())
		}
	}
	p, err := h.svc.RemoveMenuItem(c.Request().Context(), userID(c), req.List, req.Item)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type subMenuRequest struct {
	Parent string `json:"parent"`
	Name   string `json:"name"`
}

func (h *Handler) AddSubMenu(c echo.Context) error {
	var req subMenuRequest
	if err := c.Bind(&req); err != nil {
		return apiError(http.StatusBadRequest, "invalid_input", err.Error())
	}
	p, err := h.svc.AddSubMenu(c.Request().Context(), userID(c), req.Parent, req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ToggleStar(c echo.Context) error {
	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return apiError(http.StatusBadRequest, "invalid_input", err.Error())
	}
	p, starred, err := h.svc.ToggleStar(c.Request().Context(), userID(c), req.List, req.Item)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"starred": starred, "preferences": p})
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (h *Handler) SetCredential(c echo.Context) error {
	var req credentialRequest
	if err := c.Bind(&req); err != nil {
		return apiError(http.StatusBadRequest, "invalid_input", err.Error())
	}
	p, err := h.svc.SetCredential(c.Request().Context(), userID(c), req.APIKey)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ClearCredential(c echo.Context) error {
	if _, err := h.svc.ClearCredential(c.Request().Context(), userID(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
