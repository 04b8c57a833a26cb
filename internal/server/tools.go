package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/legalmcp/internal/capability"
	"github.com/mohammad-safakhou/legalmcp/internal/dispatch"
)

// Tools is the dispatch surface served over HTTP.
type Tools interface {
	Catalogue() *capability.Registry
	Has(name string) bool
	Call(ctx context.Context, name string, args map[string]any) dispatch.Envelope
}

// ToolsHandler exposes the tool catalogue and tool calls.
type ToolsHandler struct {
	Tools  Tools
	Logger *log.Logger
}

func (h *ToolsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("/call", h.call)
}

type listResponse struct {
	Checksum string                `json:"checksum"`
	Tools    []capability.ToolCard `json:"tools"`
}

func (h *ToolsHandler) list(c echo.Context) error {
	cat := h.Tools.Catalogue()
	etag := `"` + cat.Checksum() + `"`
	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	if match := c.Request().Header.Get("If-None-Match"); match != "" {
		for _, candidate := range strings.Split(match, ",") {
			candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
			if candidate == etag || candidate == "*" {
				return c.NoContent(http.StatusNotModified)
			}
		}
	}
	return c.JSON(http.StatusOK, listResponse{Checksum: cat.Checksum(), Tools: cat.Cards()})
}

type callRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// call answers 200 with the envelope for known tools (including tool-level
// errors) and 404 with the method_not_found envelope for unknown ones.
func (h *ToolsHandler) call(c echo.Context) error {
	var req callRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	env := h.Tools.Call(c.Request().Context(), req.Name, req.Arguments)
	if !h.Tools.Has(req.Name) {
		return c.JSON(http.StatusNotFound, env)
	}
	return c.JSON(http.StatusOK, env)
}
