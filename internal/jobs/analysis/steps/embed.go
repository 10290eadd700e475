package steps

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/analysis"
)

type EmbedDeps struct {
	Embeddings repos.EmbeddingRepo
	AI         analysis.Client
}

// EmbedContent stores the content-space vector of the unit's body. A vector
// already computed from the same hash is kept.
func EmbedContent(ctx context.Context, deps EmbedDeps, u *types.ContentUnit) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	have, err := deps.Embeddings.GetHash(dbc, u.Type, u.ID)
	if err != nil {
		return false, errors.MarkTransient(errors.Wrap(err, "load content embedding"))
	}
	if have == u.ContentHash {
		return false, nil
	}
	vecs, err := deps.AI.Embed(ctx, analysis.SpaceContent, []string{u.Body})
	if err != nil {
		return false, err
	}
	v := pgvector.NewVector(vecs[0])
	if err := deps.Embeddings.Upsert(dbc, &types.ContentEmbedding{
		ContentType: u.Type,
		ContentID:   u.ID,
		ContentHash: u.ContentHash,
		Embedding:   &v,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return false, errors.MarkTransient(errors.Wrap(err, "store content embedding"))
	}
	return true, nil
}
