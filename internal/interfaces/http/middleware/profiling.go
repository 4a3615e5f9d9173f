package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
)

// profilingLabelResource names the API resource a request targets
const profilingLabelResource = "resource"

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	Enabled   bool
	SkipPaths []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/healthz", "/ready"},
	}
}

// ProfilingWithConfig attaches pprof labels to the request so Pyroscope
// profiles can be filtered by route, method and resource:
//
//	route:    "/api/v1/invoices/:id/settle"
//	method:   "POST"
//	resource: "invoices"
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}

		telemetry.WithProfilingLabels(c.Request.Context(), extractProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func extractProfilingLabels(c *gin.Context) map[string]string {
	route := c.FullPath()
	labels := telemetry.RouteLabels(route, c.Request.Method)
	if resource := extractResourceFromRoute(route); resource != "" {
		labels[profilingLabelResource] = resource
	}
	return labels
}

// extractResourceFromRoute returns the first static segment after the API prefix.
// Example: "/api/v1/clients/:id/account" -> "clients"
func extractResourceFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "*") {
			continue
		}
		return part
	}
	return ""
}

// isVersionSegment checks if a path segment is an API version (v1, v2, etc.)
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
