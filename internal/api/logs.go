package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/decisionengine/internal/logger"
)

// LogsHandlers serves the rotated log file.
type LogsHandlers struct {
	dir string
}

// NewLogsHandlers creates log handlers for the log directory dir.
func NewLogsHandlers(dir string) *LogsHandlers {
	return &LogsHandlers{dir: dir}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/download", h.DownloadLogFile)
}

// DownloadLogFile serves the current log file for download.
// GET /api/v1/system/logs/download
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	logPath := filepath.Join(h.dir, logger.FileName)
	if _, err := os.Stat(logPath); errors.Is(err, fs.ErrNotExist) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(logPath, logger.FileName)
}
