package policy

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for the stored policy.
type Handlers struct {
	store *Store
}

// NewHandlers creates policy handlers.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the policy routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Get)
	g.PUT("", h.Import)
	g.POST("/validate", h.Validate)
	g.GET("/revisions", h.Revisions)
}

// PolicyResponse is the active policy and the revision it came from.
type PolicyResponse struct {
	Revision *Revision `json:"revision"`
	Policy   *Document `json:"policy"`
}

// ValidationResult reports whether a document is a usable policy.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Get returns the active policy.
// GET /api/v1/policy
func (h *Handlers) Get(c echo.Context) error {
	ctx := c.Request().Context()
	rev, err := h.store.Current(ctx)
	if err != nil {
		return storeError(err)
	}
	doc, err := h.store.Load(ctx)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, PolicyResponse{Revision: rev, Policy: doc})
}

// Import replaces the active policy. The body may be JSON, YAML or TOML,
// selected by the format query parameter or the Content-Type header.
// PUT /api/v1/policy
func (h *Handlers) Import(c echo.Context) error {
	doc, err := decodeBody(c)
	if err != nil {
		return err
	}
	source := c.QueryParam("source")
	if source == "" {
		source = "api"
	}

	rev, err := h.store.Import(c.Request().Context(), doc, source)
	if err != nil {
		if errors.Is(err, ErrInvalidPolicy) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rev)
}

// Validate checks a policy document without storing it.
// POST /api/v1/policy/validate
func (h *Handlers) Validate(c echo.Context) error {
	doc, err := decodeBody(c)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusBadRequest {
			return c.JSON(http.StatusOK, ValidationResult{Valid: false, Error: fmt.Sprint(he.Message)})
		}
		return err
	}
	if err := doc.Validate(); err != nil {
		return c.JSON(http.StatusOK, ValidationResult{Valid: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, ValidationResult{Valid: true})
}

// Revisions lists past imports, newest first.
// GET /api/v1/policy/revisions
func (h *Handlers) Revisions(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	revs, err := h.store.Revisions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if revs == nil {
		revs = []*Revision{}
	}
	return c.JSON(http.StatusOK, revs)
}

func decodeBody(c echo.Context) (*Document, error) {
	format, err := requestFormat(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	}
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc, err := Decode(data, format)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return doc, nil
}

func requestFormat(c echo.Context) (Format, error) {
	if f := c.QueryParam("format"); f != "" {
		return FormatFromPath("policy." + f)
	}
	ct := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.Contains(ct, "yaml"):
		return FormatYAML, nil
	case strings.Contains(ct, "toml"):
		return FormatTOML, nil
	}
	return FormatJSON, nil
}

func storeError(err error) error {
	if errors.Is(err, ErrNoPolicy) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
