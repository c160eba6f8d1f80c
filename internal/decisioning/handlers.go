package decisioning

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/decisionengine/internal/indexer/types"
)

// Handlers provides HTTP handlers for release evaluation.
type Handlers struct {
	engine  *Engine
	tracker *GrabTracker
	store   *Store
}

// NewHandlers creates decision handlers. tracker and store may be nil.
func NewHandlers(engine *Engine, tracker *GrabTracker, store *Store) *Handlers {
	return &Handlers{engine: engine, tracker: tracker, store: store}
}

// RegisterRoutes registers the decision routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Evaluate)
	g.GET("/specifications", h.Specifications)
	g.GET("/pending", h.Pending)
	g.POST("/grabs", h.Grab)
	g.DELETE("/grabs/:itemId/:unitId", h.ReleaseGrab)
	g.GET("/history", h.History)
}

// EvaluateInput is the body of an evaluation request.
type EvaluateInput struct {
	Source   Source              `json:"source"`
	Releases []types.ReleaseInfo `json:"releases"`
}

// GrabInput claims units ahead of a download attempt.
type GrabInput struct {
	ItemID  int64   `json:"itemId"`
	UnitIDs []int64 `json:"unitIds"`
}

// Evaluate runs a batch of releases through the engine.
// POST /api/v1/decisions
func (h *Handlers) Evaluate(c echo.Context) error {
	var input EvaluateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if input.Source == "" {
		input.Source = SourceSearch
	}
	if !input.Source.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown source %q", input.Source))
	}

	batch, err := h.engine.Evaluate(c.Request().Context(), input.Releases, SearchContext{Source: input.Source})
	if err != nil {
		if errors.Is(err, ErrPolicyUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, batch)
}

// Specifications lists the registered specification names in evaluation order.
// GET /api/v1/decisions/specifications
func (h *Handlers) Specifications(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Specifications())
}

// Pending lists units grabbed recently enough to hold back further releases.
// GET /api/v1/decisions/pending
func (h *Handlers) Pending(c echo.Context) error {
	if h.tracker == nil {
		return c.JSON(http.StatusOK, []PendingGrab{})
	}
	return c.JSON(http.StatusOK, h.tracker.Pending())
}

// Grab claims all of the given units, or none when any is already held.
// POST /api/v1/decisions/grabs
func (h *Handlers) Grab(c echo.Context) error {
	if h.tracker == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "grab tracking is disabled")
	}
	var input GrabInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if input.ItemID == 0 || len(input.UnitIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "itemId and unitIds are required")
	}

	keys := make([]UnitKey, len(input.UnitIDs))
	for i, id := range input.UnitIDs {
		keys[i] = UnitKey{ItemID: input.ItemID, UnitID: id}
	}
	if !h.tracker.TryAcquireAll(keys) {
		return echo.NewHTTPError(http.StatusConflict, "one or more units were grabbed recently")
	}
	return c.NoContent(http.StatusCreated)
}

// ReleaseGrab forgets a grab, e.g. after the download failed.
// DELETE /api/v1/decisions/grabs/:itemId/:unitId
func (h *Handlers) ReleaseGrab(c echo.Context) error {
	if h.tracker == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "grab tracking is disabled")
	}
	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid itemId")
	}
	unitID, err := strconv.ParseInt(c.Param("unitId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid unitId")
	}
	h.tracker.Release(UnitKey{ItemID: itemID, UnitID: unitID})
	return c.NoContent(http.StatusNoContent)
}

// History returns recorded decisions, optionally for a single batch.
// GET /api/v1/decisions/history?limit=&batchId=
func (h *Handlers) History(c echo.Context) error {
	if h.store == nil {
		return c.JSON(http.StatusOK, []LogEntry{})
	}
	ctx := c.Request().Context()

	if batchID := c.QueryParam("batchId"); batchID != "" {
		entries, err := h.store.Batch(ctx, batchID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, entries)
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	entries, err := h.store.Recent(ctx, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}
