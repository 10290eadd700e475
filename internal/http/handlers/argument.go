package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/services"
)

type ArgumentHandler struct {
	arguments services.ArgumentService
}

func NewArgumentHandler(arguments services.ArgumentService) *ArgumentHandler {
	return &ArgumentHandler{arguments: arguments}
}

// GET /content/:type/:id/adus
func (h *ArgumentHandler) ADUs(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	m, err := h.arguments.Map(dbcOf(c), c.Param("type"), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, m)
}

// GET /content/:type/:id/analysis
func (h *ArgumentHandler) Analysis(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	v, err := h.arguments.Analysis(dbcOf(c), c.Param("type"), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, v)
}

// GET /claims/:id?limit=
func (h *ArgumentHandler) Claim(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	v, err := h.arguments.Claim(dbcOf(c), id, limit)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, v)
}
