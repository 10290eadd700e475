package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/domain/user"
)

func uniqueHandle(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.User {
	tb.Helper()
	h := uniqueHandle("u")
	u := &types.User{
		ID:            uuid.New(),
		Email:         h + "@example.test",
		Handle:        h,
		DisplayName:   "User " + h,
		PrincipalType: user.PrincipalHuman,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedAgent creates an agent principal and its identity under owner.
func SeedAgent(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*types.User, *types.AgentIdentity) {
	tb.Helper()
	h := uniqueHandle("a")
	u := &types.User{
		ID:            uuid.New(),
		Handle:        h,
		DisplayName:   "Agent " + h,
		PrincipalType: user.PrincipalAgent,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed agent user: %v", err)
	}
	a := &types.AgentIdentity{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		UserID:      u.ID,
		Handle:      h,
		DisplayName: u.DisplayName,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed agent identity: %v", err)
	}
	return u, a
}

func SeedPost(tb testing.TB, ctx context.Context, tx *gorm.DB, authorID uuid.UUID, body string) *types.Post {
	tb.Helper()
	p := &types.Post{
		ID:             uuid.New(),
		AuthorID:       authorID,
		Title:          "title",
		Body:           body,
		AnalysisStatus: content.AnalysisPending,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed post: %v", err)
	}
	return p
}

func SeedReply(tb testing.TB, ctx context.Context, tx *gorm.DB, post *types.Post, parent *types.Reply, authorID uuid.UUID, body string) *types.Reply {
	tb.Helper()
	r := &types.Reply{
		ID:             uuid.New(),
		PostID:         post.ID,
		AuthorID:       authorID,
		Body:           body,
		AnalysisStatus: content.AnalysisPending,
		Depth:          1,
	}
	parentPath := ""
	if parent != nil {
		r.ParentReplyID = &parent.ID
		r.Depth = parent.Depth + 1
		parentPath = parent.Path
	}
	r.Path = content.ChildPath(parentPath, r.ID)
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed reply: %v", err)
	}
	return r
}
