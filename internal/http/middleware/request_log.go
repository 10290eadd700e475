package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// RequestLogger writes one line per request: error for 5xx, warn for 4xx,
// debug otherwise.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		fields = append(fields, traceFields(c)...)
		fields = append(fields, principalFields(c)...)

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

func traceFields(c *gin.Context) []interface{} {
	td := ctxutil.GetTraceData(c.Request.Context())
	if td == nil {
		return nil
	}
	return []interface{}{"trace_id", td.TraceID, "request_id", td.RequestID}
}

func principalFields(c *gin.Context) []interface{} {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		return nil
	}
	out := []interface{}{"principal", string(rd.PrincipalType), "user_id", rd.UserID.String()}
	if rd.IsAgent() {
		out = append(out, "agent_id", rd.AgentID.String(), "owner_id", rd.OwnerUserID.String())
	}
	return out
}
