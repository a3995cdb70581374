package middleware

import (
	"net/http"

	"tempvoice/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// TracingMiddleware opens a server span per request, continuing any trace
// context the caller propagated. Spans are named after the route template.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		parent := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracing.TraceHTTPRequest(parent, c.Request.Method, route)
		defer span.End()
		span.SetAttributes(semconv.HTTPClientIPKey.String(c.ClientIP()))

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		if subject, ok := c.Get(subjectKey); ok {
			span.SetAttributes(attribute.String("auth.subject", subject.(string)))
		}

		switch last := c.Errors.Last(); {
		case last != nil:
			tracing.RecordError(ctx, last.Err)
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
