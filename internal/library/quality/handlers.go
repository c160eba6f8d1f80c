package quality

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides read-only HTTP handlers for the quality catalogue.
type Handlers struct{}

// NewHandlers creates new quality handlers.
func NewHandlers() *Handlers {
	return &Handlers{}
}

// RegisterRoutes registers the quality routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListQualities)
	g.GET("/definitions", h.ListDefinitions)
	g.GET("/resolve", h.Resolve)
}

// ListQualities returns the predefined quality ladder.
// GET /api/v1/qualities
func (h *Handlers) ListQualities(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedQualities)
}

// ListDefinitions returns the stock per-quality size limits.
// GET /api/v1/qualities/definitions
func (h *Handlers) ListDefinitions(c echo.Context) error {
	return c.JSON(http.StatusOK, DefaultDefinitions())
}

// Resolve maps a parsed source and resolution to a quality.
// GET /api/v1/qualities/resolve?source=web-dl&resolution=1080p
func (h *Handlers) Resolve(c echo.Context) error {
	source := c.QueryParam("source")
	resolution := ParseResolution(c.QueryParam("resolution"))
	if source == "" && resolution == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "source or resolution is required")
	}
	q, ok := Resolve(source, resolution)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no matching quality")
	}
	return c.JSON(http.StatusOK, q)
}
