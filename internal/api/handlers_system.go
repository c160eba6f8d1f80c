package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/decisionengine/internal/config"
	"github.com/slipstream/decisionengine/internal/policy"
)

// StatusResponse summarises the running service.
type StatusResponse struct {
	Version        string           `json:"version"`
	StartTime      string           `json:"startTime"`
	Uptime         string           `json:"uptime"`
	Specifications []string         `json:"specifications"`
	PolicyRevision *policy.Revision `json:"policyRevision,omitempty"`
	PendingGrabs   int              `json:"pendingGrabs"`
	Workers        int              `json:"workers"`
	SchemaVersion  int64            `json:"schemaVersion"`
}

func (s *Server) healthCheck(c echo.Context) error {
	if err := s.db.Conn().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus returns version, uptime and policy information.
// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	resp := StatusResponse{
		Version:        config.Version,
		StartTime:      s.startTime.Format(time.RFC3339),
		Uptime:         time.Since(s.startTime).Round(time.Second).String(),
		Specifications: s.engine.Specifications(),
		PendingGrabs:   len(s.grabTracker.Pending()),
		Workers:        s.cfg.Decision.Workers,
	}

	version, err := s.db.SchemaVersion(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp.SchemaVersion = version

	rev, err := s.policyStore.Current(c.Request().Context())
	switch {
	case err == nil:
		resp.PolicyRevision = rev
	case !errors.Is(err, policy.ErrNoPolicy):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
