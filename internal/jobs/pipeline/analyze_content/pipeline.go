package analyze_content

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/jobs/analysis/steps"
	jobrt "github.com/yungbote/agora-backend/internal/jobs/runtime"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/services"
)

// timed runs fn as one named pipeline step and records its outcome.
func timed[T any](step string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.Current().ObserveStep(step, status, time.Since(start))
	return out, err
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var payload services.AnalyzePayload
	if err := jc.DecodePayload(&payload); err != nil {
		jc.Progress("validate")
		return err
	}
	if !content.ValidType(payload.ContentType) || payload.ContentID == uuid.Nil {
		jc.Progress("validate")
		return errors.MarkPermanent(errors.Newf("invalid payload: type=%q id=%s", payload.ContentType, payload.ContentID))
	}
	ctx := jc.Ctx
	dbc := dbctx.Context{Ctx: ctx}
	log := p.log.With("content_type", payload.ContentType, "content_id", payload.ContentID, "job_id", jc.Job.ID)

	jc.Progress("load")
	unit, err := p.units.Get(dbc, payload.ContentType, payload.ContentID)
	if err != nil {
		return errors.MarkTransient(errors.Wrap(err, "load content"))
	}
	if unit == nil || unit.Deleted {
		jc.Succeed("skipped", map[string]any{"reason": "content missing or deleted"})
		return nil
	}
	// The body is authoritative; the payload hash may be stale after an edit.
	unit.ContentHash = content.Hash(unit.Body)
	if !unit.NeedsAnalysis() {
		jc.Succeed("skipped", map[string]any{"reason": "up to date", "content_hash": unit.ContentHash})
		return nil
	}

	jc.Progress("processing")
	if _, err := p.units.SetAnalysisStatus(dbc, unit.Type, unit.ID, content.AnalysisProcessing, "", nil); err != nil {
		return errors.MarkTransient(errors.Wrap(err, "mark processing"))
	}
	p.notify.AnalysisStatus(ctx, unit.AuthorID, unit.Type, unit.ID, content.AnalysisProcessing, "")

	jc.Progress("extract")
	extracted, err := timed("extract", func() (steps.ExtractOutput, error) {
		return steps.ExtractADUs(ctx, steps.ExtractDeps{Log: log, Tx: p.tx, ADUs: p.adus, AI: p.ai, Canonical: p.canonical}, steps.ExtractInput{Unit: unit})
	})
	if err != nil {
		return err
	}

	jc.Progress("canonicalize")
	canon, err := timed("canonicalize", func() (steps.CanonicalizeOutput, error) {
		return steps.Canonicalize(ctx, steps.CanonicalizeDeps{
			Log:       log,
			Tx:        p.tx,
			ADUs:      p.adus,
			Canonical: p.canonical,
			AI:        p.ai,
			Threshold: p.cfg.SimilarityThreshold,
			TopK:      p.cfg.CanonicalTopK,
		}, extracted.ADUs)
	})
	if err != nil {
		return err
	}

	jc.Progress("relations")
	rels, err := timed("relations", func() (steps.RelationsOutput, error) {
		return steps.DetectRelations(ctx, steps.RelationsDeps{
			Log:        log,
			ADUs:       p.adus,
			Relations:  p.relations,
			AI:         p.ai,
			ContextMax: p.cfg.ContextMaxADUs,
		}, steps.RelationsInput{Unit: unit, ADUs: extracted.ADUs})
	})
	if err != nil {
		return err
	}
	if p.graph.Enabled() {
		if err := p.graph.MirrorUnit(ctx, extracted.ADUs, canon.Mapping, rels.Relations); err != nil {
			log.Warn("graph mirror failed (continuing)", "error", err)
		}
	}

	jc.Progress("embed")
	embedded, err := timed("embed", func() (bool, error) {
		return steps.EmbedContent(ctx, steps.EmbedDeps{Embeddings: p.embeddings, AI: p.ai}, unit)
	})
	if err != nil {
		return err
	}

	jc.Progress("complete")
	if err := p.units.MarkAnalyzed(dbc, unit.Type, unit.ID, unit.ContentHash); err != nil {
		return errors.MarkTransient(errors.Wrap(err, "mark analyzed"))
	}
	p.notify.AnalysisStatus(ctx, unit.AuthorID, unit.Type, unit.ID, content.AnalysisCompleted, "")
	jc.Succeed("done", map[string]any{
		"content_type":      unit.Type,
		"content_id":        unit.ID.String(),
		"content_hash":      unit.ContentHash,
		"adus":              len(extracted.ADUs),
		"adus_reused":       extracted.Reused,
		"adus_revived":      extracted.Revived,
		"adus_superseded":   extracted.Superseded,
		"parents_dropped":   extracted.DroppedParents,
		"claims_linked":     canon.Linked,
		"claims_created":    canon.Created,
		"context_adus":      rels.ContextADUs,
		"relations_found":   rels.Detected,
		"relations_new":     rels.Inserted,
		"relations_dropped": rels.Dropped,
		"content_embedded":  embedded,
	})
	return nil
}

// OnDeadLetter marks the content failed unless its current body has been
// analysed by another run. The content stays visible with its failure reason.
func (p *Pipeline) OnDeadLetter(jc *jobrt.Context, reason string) {
	var payload services.AnalyzePayload
	if err := jc.DecodePayload(&payload); err != nil || !content.ValidType(payload.ContentType) {
		return
	}
	dbc := dbctx.Context{Ctx: context.WithoutCancel(jc.Ctx)}
	unit, err := p.units.Get(dbc, payload.ContentType, payload.ContentID)
	if err != nil || unit == nil || !unit.NeedsAnalysis() {
		return
	}
	if _, err := p.units.SetAnalysisStatus(dbc, unit.Type, unit.ID, content.AnalysisFailed, reason, nil); err != nil {
		p.log.Warn("mark failed", "content_id", unit.ID, "error", err)
		return
	}
	p.notify.AnalysisStatus(dbc.Ctx, unit.AuthorID, unit.Type, unit.ID, content.AnalysisFailed, reason)
}

var _ jobrt.DeadLetterHook = (*Pipeline)(nil)
