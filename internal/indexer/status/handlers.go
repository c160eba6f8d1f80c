package status

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for indexer status.
type Handlers struct {
	service *Service
}

// NewHandlers creates new indexer status handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the indexer status routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/status", h.List)
	g.GET("/status/stats", h.Stats)
	g.GET("/:id/status", h.Get)
	g.POST("/:id/failure", h.RecordFailure)
	g.POST("/:id/success", h.RecordSuccess)
}

// FailureInput is the body of a failure report.
type FailureInput struct {
	IndexerName string `json:"indexerName"`
	Error       string `json:"error"`
}

// List returns the health of every tracked indexer.
// GET /api/v1/indexers/status
func (h *Handlers) List(c echo.Context) error {
	health, err := h.service.GetAllHealth(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, health)
}

// Stats returns aggregate indexer status counts.
// GET /api/v1/indexers/status/stats
func (h *Handlers) Stats(c echo.Context) error {
	stats, err := h.service.GetStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// Get returns the health of a single indexer.
// GET /api/v1/indexers/:id/status
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	health, err := h.service.GetHealth(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, health)
}

// RecordFailure records a failed indexer operation.
// POST /api/v1/indexers/:id/failure
func (h *Handlers) RecordFailure(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var input FailureInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var opErr error
	if input.Error != "" {
		opErr = errors.New(input.Error)
	}
	st, err := h.service.RecordFailure(c.Request().Context(), id, input.IndexerName, opErr)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

// RecordSuccess clears an indexer's failure state.
// POST /api/v1/indexers/:id/success
func (h *Handlers) RecordSuccess(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.service.RecordSuccess(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
