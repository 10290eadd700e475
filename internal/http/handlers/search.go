package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/search"
)

type Searcher interface {
	Search(ctx context.Context, q string, mode search.Mode, limit int) ([]search.Hit, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(s Searcher) *SearchHandler {
	return &SearchHandler{search: s}
}

// GET /search?q=&mode=&limit=
func (h *SearchHandler) Search(c *gin.Context) {
	mode, err := search.ParseMode(c.Query("mode"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	hits, err := h.search.Search(c.Request.Context(), c.Query("q"), mode, limit)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"mode": mode, "hits": hits})
}
