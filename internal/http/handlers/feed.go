package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/feed"
	"github.com/yungbote/agora-backend/internal/http/response"
)

type FeedPager interface {
	GetPage(ctx context.Context, q feed.Query) (*feed.Page, error)
}

type FeedHandler struct {
	engine FeedPager
}

func NewFeedHandler(engine FeedPager) *FeedHandler {
	return &FeedHandler{engine: engine}
}

// GET /feed?sort=&limit=&cursor=
func (fh *FeedHandler) GetFeed(c *gin.Context) {
	sort, err := feed.ParseSort(c.Query("sort"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	page, err := fh.engine.GetPage(c.Request.Context(), feed.Query{
		Sort:   sort,
		Limit:  limit,
		Cursor: c.Query("cursor"),
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"sort":        sort,
		"items":       page.Items,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
	})
}
