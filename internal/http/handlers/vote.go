package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/services"
)

type VoteHandler struct {
	votes services.VoteService
}

func NewVoteHandler(votes services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// PUT /votes/:target_type/:target_id
// body: { "value": 1 | -1 }
func (h *VoteHandler) Cast(c *gin.Context) {
	var req struct {
		Value *int `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	if req.Value == nil || (*req.Value != 1 && *req.Value != -1) {
		response.RespondError(c, domain.Validation("vote", "value", "value must be 1 or -1"))
		return
	}
	h.cast(c, *req.Value)
}

// DELETE /votes/:target_type/:target_id
func (h *VoteHandler) Retract(c *gin.Context) {
	h.cast(c, 0)
}

func (h *VoteHandler) cast(c *gin.Context, value int) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	targetID, err := pathID(c, "target_id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.votes.Cast(dbcOf(c), uid, c.Param("target_type"), targetID, value)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}
