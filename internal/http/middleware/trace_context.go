package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// AttachTraceContext stamps every request with a request id and a trace id.
// Client-supplied ids are kept; otherwise the trace id comes from the active
// otel span, falling back to a random uuid.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			RequestID: firstNonEmpty(c.GetHeader(HeaderRequestID)),
			TraceID:   firstNonEmpty(c.GetHeader(HeaderTraceID), spanTraceID(c)),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))

		h := c.Writer.Header()
		h.Set(HeaderTraceID, td.TraceID)
		h.Set(HeaderRequestID, td.RequestID)
		c.Next()
	}
}

func spanTraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// firstNonEmpty returns the first non-blank candidate, or a fresh uuid.
func firstNonEmpty(candidates ...string) string {
	for _, s := range candidates {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return uuid.NewString()
}
