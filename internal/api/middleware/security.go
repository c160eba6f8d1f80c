// Package middleware holds echo middleware shared by the API routes.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityConfig configures SecurityHeaders.
type SecurityConfig struct {
	// NoCachePrefixes lists path prefixes whose responses must never be cached.
	NoCachePrefixes []string
}

// DefaultSecurityConfig disables caching for the API and the health check.
var DefaultSecurityConfig = SecurityConfig{
	NoCachePrefixes: []string{"/api", "/health"},
}

// SecurityHeaders returns SecurityHeadersWithConfig with DefaultSecurityConfig.
func SecurityHeaders() echo.MiddlewareFunc {
	return SecurityHeadersWithConfig(DefaultSecurityConfig)
}

// SecurityHeadersWithConfig sets hardening headers on every response. The
// service serves JSON only, so nothing may be framed or loaded from it.
func SecurityHeadersWithConfig(cfg SecurityConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			path := c.Request().URL.Path
			for _, prefix := range cfg.NoCachePrefixes {
				if strings.HasPrefix(path, prefix) {
					h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
					h.Set("Pragma", "no-cache")
					break
				}
			}

			return next(c)
		}
	}
}
