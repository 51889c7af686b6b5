package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/avocetlabs/fledge-backend/internal/platform/ctxutil"
)

const requestIDHeader = "X-Request-ID"

// TraceRequests assigns every request an ID, honoring one supplied by the
// caller, and stashes it with the active trace ID so downstream code and the
// error envelope can reference both.
func TraceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		td := &ctxutil.TraceData{RequestID: requestID}
		if span := trace.SpanContextFromContext(c.Request.Context()); span.HasTraceID() {
			td.TraceID = span.TraceID().String()
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}
