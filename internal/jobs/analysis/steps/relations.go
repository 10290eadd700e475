package steps

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/argument"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/analysis"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// DefaultContextMaxADUs caps how many ADUs from surrounding content are sent
// along with the unit's own ADUs.
const DefaultContextMaxADUs = 20

type RelationsDeps struct {
	Log        *logger.Logger
	ADUs       repos.ADURepo
	Relations  repos.RelationRepo
	AI         analysis.Client
	ContextMax int
}

type RelationsInput struct {
	Unit *types.ContentUnit
	ADUs []*types.ADU
}

type RelationsOutput struct {
	ContextADUs int
	Detected    int
	Inserted    int64
	Dropped     int
	// Relations are the accepted edges, persisted or already present.
	Relations []*types.ArgumentRelation
}

// ContextADUs returns the ADUs a reply argues against: the explicitly
// targeted ADU first, then the live ADUs of the parent reply (or of the post
// for a top-level reply). Posts have no context.
func ContextADUs(dbc dbctx.Context, adus repos.ADURepo, u *types.ContentUnit, max int) ([]*types.ADU, error) {
	if u.Type != content.TypeReply || max <= 0 {
		return nil, nil
	}
	var out []*types.ADU
	seen := map[uuid.UUID]bool{}
	add := func(a *types.ADU) {
		if a == nil || seen[a.ID] || len(out) >= max {
			return
		}
		if a.SourceType == u.Type && a.SourceID == u.ID {
			return
		}
		seen[a.ID] = true
		out = append(out, a)
	}

	if u.TargetADUID != nil {
		a, err := adus.GetByID(dbc, *u.TargetADUID)
		if err != nil {
			return nil, err
		}
		add(a)
	}
	parentType, parentID := content.TypePost, u.PostID
	if u.ParentReplyID != nil {
		parentType, parentID = content.TypeReply, *u.ParentReplyID
	}
	parent, err := adus.ListLive(dbc, parentType, parentID)
	if err != nil {
		return nil, err
	}
	for _, a := range parent {
		add(a)
	}
	return out, nil
}

func embeddingOf(a *types.ADU) []float32 {
	if a.Embedding == nil {
		return nil
	}
	return a.Embedding.Slice()
}

// DetectRelations asks the service for support/attack edges among the unit's
// ADUs and its context, keeping only edges with at least one endpoint in the
// unit. Unknown ids and self-loops are dropped.
func DetectRelations(ctx context.Context, deps RelationsDeps, in RelationsInput) (RelationsOutput, error) {
	if deps.ContextMax <= 0 {
		deps.ContextMax = DefaultContextMaxADUs
	}
	out := RelationsOutput{}
	if len(in.ADUs) == 0 {
		return out, nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	ctxADUs, err := ContextADUs(dbc, deps.ADUs, in.Unit, deps.ContextMax)
	if err != nil {
		return out, errors.MarkTransient(errors.Wrap(err, "load context adus"))
	}
	out.ContextADUs = len(ctxADUs)

	own := make(map[string]bool, len(in.ADUs))
	known := make(map[string]uuid.UUID, len(in.ADUs)+len(ctxADUs))
	inputs := make([]analysis.RelationInput, 0, len(in.ADUs)+len(ctxADUs))
	for _, a := range in.ADUs {
		id := a.ID.String()
		own[id] = true
		known[id] = a.ID
		inputs = append(inputs, analysis.RelationInput{ID: id, Text: a.Text, Embedding: embeddingOf(a)})
	}
	for _, a := range ctxADUs {
		id := a.ID.String()
		known[id] = a.ID
		inputs = append(inputs, analysis.RelationInput{ID: id, Text: a.Text, Embedding: embeddingOf(a)})
	}
	if len(inputs) < 2 {
		return out, nil
	}

	edges, err := deps.AI.DetectRelations(ctx, inputs)
	if err != nil {
		return out, err
	}
	out.Detected = len(edges)

	type key struct {
		s, t uuid.UUID
		typ  string
	}
	dedup := map[key]bool{}
	for _, e := range edges {
		src, okS := known[e.SourceID]
		dst, okT := known[e.TargetID]
		typ := strings.ToLower(strings.TrimSpace(e.Type))
		if !okS || !okT || src == dst || !argument.ValidRelationType(typ) || !(own[e.SourceID] || own[e.TargetID]) {
			out.Dropped++
			continue
		}
		k := key{src, dst, typ}
		if dedup[k] {
			continue
		}
		dedup[k] = true
		out.Relations = append(out.Relations, &types.ArgumentRelation{
			ID:           uuid.New(),
			SourceADUID:  src,
			TargetADUID:  dst,
			RelationType: typ,
			Confidence:   e.Confidence,
		})
	}
	if out.Dropped > 0 {
		deps.Log.Warn("dropped invalid relation edges", "content_id", in.Unit.ID, "count", out.Dropped)
	}
	if len(out.Relations) == 0 {
		return out, nil
	}
	n, err := deps.Relations.InsertBatch(dbc, out.Relations)
	if err != nil {
		return out, errors.MarkTransient(errors.Wrap(err, "persist relations"))
	}
	out.Inserted = n
	return out, nil
}
