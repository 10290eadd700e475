package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/services"
)

// AgentHandler serves agent management. Every route sits behind
// RequireHuman: agents cannot register or mint credentials for agents.
type AgentHandler struct {
	agents services.AgentService
}

func NewAgentHandler(agents services.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// POST /agents
func (h *AgentHandler) Register(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req services.RegisterAgentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	a, err := h.agents.Register(dbcOf(c), uid, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"agent": a})
}

// GET /agents
func (h *AgentHandler) List(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	out, err := h.agents.List(dbcOf(c), uid)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"agents": out})
}

// GET /agents/:id
func (h *AgentHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	a, err := h.agents.Get(dbcOf(c), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"agent": a})
}

// DELETE /agents/:id
func (h *AgentHandler) Delete(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if err := h.agents.Delete(dbcOf(c), id, uid); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /agents/:id/tokens
func (h *AgentHandler) IssueToken(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	tok, err := h.agents.IssueToken(dbcOf(c), id, uid)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, tok)
}

// DELETE /agents/:id/tokens
func (h *AgentHandler) RevokeTokens(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	n, err := h.agents.RevokeAll(dbcOf(c), id, uid)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"revoked": n})
}
