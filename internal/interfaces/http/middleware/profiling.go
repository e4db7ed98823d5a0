package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/margincraft/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig controls which requests run under pprof labels.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths lists exact paths excluded from labeling.
	SkipPaths []string
	// SkipPathPrefixes lists path prefixes excluded from labeling.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig excludes health and metrics endpoints.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/healthz", "/ready", "/metrics"},
	}
}

// Profiling labels each request's goroutines for continuous profiling
// with the default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig runs the rest of the handler chain under pprof
// labels so CPU samples can be sliced by controller, route, method and
// company in the profiler UI. Labels use the route pattern rather than
// the raw path to keep cardinality bounded.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	return func(c *gin.Context) {
		if profilingSkipped(cfg, c.Request.URL.Path) {
			c.Next()
			return
		}

		labels := requestProfilingLabels(c)
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingSkipped(cfg ProfilingConfig, path string) bool {
	for _, skip := range cfg.SkipPaths {
		if path == skip {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func requestProfilingLabels(c *gin.Context) map[string]string {
	route := c.FullPath()
	return telemetry.HTTPRequestLabels(
		routeController(route),
		route,
		c.Request.Method,
		profilingCompanyID(c),
	)
}

// routeController picks the resource segment out of a route pattern.
// "/api/v1/promotions/:id/analysis" yields "promotions".
func routeController(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "" || part == "api":
		case isVersionSegment(part):
		case strings.HasPrefix(part, ":") || strings.HasPrefix(part, "{"):
		default:
			return part
		}
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// profilingCompanyID prefers the authenticated claim and falls back to
// the X-Company-ID header used by unauthenticated development setups.
func profilingCompanyID(c *gin.Context) string {
	if id := c.GetString(JWTCompanyIDKey); id != "" {
		return id
	}
	return c.GetHeader("X-Company-ID")
}
