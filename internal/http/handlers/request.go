package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

func dbcOf(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

// callerID is the authenticated principal's user id. Routes using it sit
// behind RequireAuth, so a missing principal is a 401.
func callerID(c *gin.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, domain.Unauthenticated("auth", "not authenticated")
	}
	return rd.UserID, nil
}

func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, domain.Validation("request", name, name+" must be a uuid")
	}
	return id, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validation("request", name, name+" must be an integer")
	}
	return n, nil
}

func badJSON(err error) error {
	return domain.NewError(domain.CodeValidation, "request", "invalid JSON body", err)
}
