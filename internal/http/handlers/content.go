package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/services"
)

type ContentHandler struct {
	content services.ContentService
}

func NewContentHandler(content services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// POST /posts
func (h *ContentHandler) CreatePost(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req services.CreatePostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	p, err := h.content.CreatePost(dbcOf(c), uid, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"post": p})
}

// GET /posts/:id
func (h *ContentHandler) GetPost(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	p, err := h.content.GetPost(dbcOf(c), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": p})
}

// GET /posts/:id/thread?root=&limit=
func (h *ContentHandler) Thread(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var root *uuid.UUID
	if raw := strings.TrimSpace(c.Query("root")); raw != "" {
		rid, perr := uuid.Parse(raw)
		if perr != nil {
			response.RespondError(c, domain.Validation("thread", "root", "root must be a uuid"))
			return
		}
		root = &rid
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	replies, err := h.content.Thread(dbcOf(c), id, root, limit)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post_id": id, "replies": replies})
}

// POST /posts/:id/replies
func (h *ContentHandler) CreateReply(c *gin.Context) {
	uid, err := callerID(c)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	postID, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req services.CreateReplyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	r, err := h.content.CreateReply(dbcOf(c), uid, postID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"reply": r})
}

// DELETE /posts/:id
func (h *ContentHandler) DeletePost(c *gin.Context) {
	h.delete(c, h.content.DeletePost)
}

// DELETE /replies/:id
func (h *ContentHandler) DeleteReply(c *gin.Context) {
	h.delete(c, h.content.DeleteReply)
}

func (h *ContentHandler) delete(c *gin.Context, fn func(dbc dbctx.Context, id, caller uuid.UUID) error) {
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
	if err := fn(dbcOf(c), id, uid); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
