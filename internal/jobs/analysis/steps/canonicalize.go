package steps

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/argument"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/analysis"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type CanonicalizeDeps struct {
	Log       *logger.Logger
	Tx        aggregates.TxRunner
	ADUs      repos.ADURepo
	Canonical repos.CanonicalRepo
	AI        analysis.Client
	Threshold float64
	TopK      int
}

type CanonicalizeOutput struct {
	Linked  int
	Created int
	// Mapping holds the claim of every claim-type ADU of the unit, including
	// ones mapped by an earlier run.
	Mapping map[uuid.UUID]uuid.UUID
}

var errAlreadyMapped = errors.New("adu mapped concurrently")

// Canonicalize maps each unmapped claim-type ADU onto the best matching
// canonical claim, or makes it the representative of a new one. ADUs are
// processed in order so a later ADU can join a claim an earlier one created.
func Canonicalize(ctx context.Context, deps CanonicalizeDeps, adus []*types.ADU) (CanonicalizeOutput, error) {
	if deps.Threshold <= 0 {
		deps.Threshold = argument.DefaultSimilarityThreshold
	}
	if deps.TopK <= 0 {
		deps.TopK = 5
	}
	dbc := dbctx.Context{Ctx: ctx}

	var claims []*types.ADU
	ids := make([]uuid.UUID, 0, len(adus))
	for _, a := range adus {
		if argument.IsClaimType(a.ADUType) {
			claims = append(claims, a)
			ids = append(ids, a.ID)
		}
	}
	out := CanonicalizeOutput{Mapping: map[uuid.UUID]uuid.UUID{}}
	if len(claims) == 0 {
		return out, nil
	}
	mapped, err := deps.Canonical.MappedADUIDs(dbc, ids)
	if err != nil {
		return out, errors.MarkTransient(errors.Wrap(err, "load mappings"))
	}
	for k, v := range mapped {
		out.Mapping[k] = v
	}

	var todo []*types.ADU
	var texts []string
	for _, a := range claims {
		if _, ok := mapped[a.ID]; !ok {
			todo = append(todo, a)
			texts = append(texts, a.Text)
		}
	}
	if len(todo) == 0 {
		return out, nil
	}
	vecs, err := deps.AI.Embed(ctx, analysis.SpaceClaim, texts)
	if err != nil {
		return out, err
	}

	for i, a := range todo {
		vec := vecs[i]
		if err := deps.ADUs.SetEmbedding(dbc, a.ID, vec); err != nil {
			return out, errors.MarkTransient(errors.Wrap(err, "store claim embedding"))
		}
		cands, err := deps.Canonical.Nearest(dbc, vec, deps.TopK)
		if err != nil {
			return out, errors.MarkTransient(errors.Wrap(err, "nearest claims"))
		}
		best, ok := argument.BestMatch(cands)
		if ok && argument.Matches(best.Similarity, deps.Threshold) {
			var inserted bool
			err = deps.Tx.InTx(ctx, func(txc dbctx.Context) error {
				var err error
				inserted, err = deps.Canonical.Link(txc, &types.CanonicalMapping{
					ADUID:            a.ID,
					CanonicalClaimID: best.ClaimID,
					Similarity:       best.Similarity,
				})
				if err != nil || !inserted {
					return err
				}
				return deps.Canonical.RecomputeCounts(txc, best.ClaimID)
			})
			if err != nil {
				return out, errors.MarkTransient(errors.Wrap(err, "link claim"))
			}
			if !inserted {
				if err := adoptConcurrentMapping(dbc, deps, a.ID, &out); err != nil {
					return out, err
				}
				continue
			}
			out.Mapping[a.ID] = best.ClaimID
			out.Linked++
			continue
		}

		claim := &types.CanonicalClaim{
			ID:                  uuid.New(),
			RepresentativeText:  a.Text,
			ClaimType:           a.ADUType,
			RepresentativeADUID: a.ID,
			ADUCount:            1,
			DiscussionCount:     1,
			AvgSimilarity:       1.0,
		}
		err = deps.Tx.InTx(ctx, func(txc dbctx.Context) error {
			if err := deps.Canonical.Create(txc, claim, vec); err != nil {
				return err
			}
			inserted, err := deps.Canonical.Link(txc, &types.CanonicalMapping{
				ADUID:            a.ID,
				CanonicalClaimID: claim.ID,
				Similarity:       1.0,
			})
			if err != nil {
				return err
			}
			if !inserted {
				return errAlreadyMapped
			}
			return nil
		})
		if errors.Is(err, errAlreadyMapped) {
			if err := adoptConcurrentMapping(dbc, deps, a.ID, &out); err != nil {
				return out, err
			}
			continue
		}
		if err != nil {
			return out, errors.MarkTransient(errors.Wrap(err, "create claim"))
		}
		out.Mapping[a.ID] = claim.ID
		out.Created++
	}
	return out, nil
}

// adoptConcurrentMapping records the claim another run mapped aduID to. It is
// counted as neither linked nor created here.
func adoptConcurrentMapping(dbc dbctx.Context, deps CanonicalizeDeps, aduID uuid.UUID, out *CanonicalizeOutput) error {
	deps.Log.Debug("adu mapped by a concurrent run", "adu_id", aduID)
	mapped, err := deps.Canonical.MappedADUIDs(dbc, []uuid.UUID{aduID})
	if err != nil {
		return errors.MarkTransient(errors.Wrap(err, "reload mapping"))
	}
	if claimID, ok := mapped[aduID]; ok {
		out.Mapping[aduID] = claimID
	}
	return nil
}
