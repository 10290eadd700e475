package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /sse/stream
// Each connection subscribes to the caller's own channel; analysis status
// for content they authored arrives there.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	client := h.hub.NewSSEClient(uid)
	defer h.hub.CloseClient(client)
	h.hub.AddChannel(client, realtime.UserChannel(uid.String()))
	h.log.Debug("SSE stream open", "user_id", uid, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
