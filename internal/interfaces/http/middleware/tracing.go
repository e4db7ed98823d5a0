package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Header-sourced attribute values are untrusted, so they are bounded and
// validated before landing in span attributes.
const (
	MaxRequestIDLength = 128
	MaxCompanyIDLength = 64
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig configures the request tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns the standard setup.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "margincraft-backend",
		Enabled:     true,
	}
}

// Tracing returns the tracing middleware with defaults.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig opens a server span per request via otelgin. Spans
// are named "METHOD /route/pattern". The span stays open for the rest of
// the chain, so SpanErrorMarker and TracingAttributeInjector must be
// registered after this middleware to see a recording span.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector tags the active span with the request
// identity. Tagging happens on the way out of the chain, so the span
// picks up the company and device that auth resolved further in.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(identityAttributes(c)...)
		}
	}
}

// SpanErrorMarker marks the request span failed on 4xx/5xx responses.
// Place it after the tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, statusLabel(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

func statusLabel(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "Internal Server Error"
	case status == http.StatusUnauthorized:
		return "Unauthorized"
	case status == http.StatusForbidden:
		return "Forbidden"
	case status == http.StatusNotFound:
		return "Not Found"
	default:
		return "Client Error"
	}
}

func identityAttributes(c *gin.Context) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if requestID := traceRequestID(c); requestID != "" {
		attrs = append(attrs, attribute.String("request_id", requestID))
	}
	if companyID := traceCompanyID(c); companyID != "" {
		attrs = append(attrs, attribute.String("company_id", companyID))
	}
	if deviceID := c.GetString(JWTDeviceIDKey); deviceID != "" {
		attrs = append(attrs, attribute.String("device_id", deviceID))
	}
	return attrs
}

// traceRequestID prefers the id minted by the RequestID middleware and
// falls back to the inbound header, truncated to a sane length.
func traceRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	id := c.GetHeader("X-Request-ID")
	if len(id) > MaxRequestIDLength {
		id = id[:MaxRequestIDLength]
	}
	return id
}

// traceCompanyID prefers the authenticated company from JWT claims. The
// X-Company-ID header is accepted only when it parses as a UUID, since
// header values land verbatim in trace attributes.
func traceCompanyID(c *gin.Context) string {
	if id := c.GetString(JWTCompanyIDKey); id != "" {
		return id
	}
	header := c.GetHeader("X-Company-ID")
	if header != "" && len(header) <= MaxCompanyIDLength && uuidPattern.MatchString(header) {
		return header
	}
	return ""
}
