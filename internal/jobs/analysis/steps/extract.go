package steps

import (
	"context"
	"strings"
	"time"

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

type ExtractDeps struct {
	Log  *logger.Logger
	Tx   aggregates.TxRunner
	ADUs repos.ADURepo
	AI   analysis.Client

	// Canonical, when set, has its claim counts refreshed after a batch
	// changes liveness.
	Canonical repos.CanonicalRepo
}

type ExtractInput struct {
	Unit *types.ContentUnit
}

type ExtractOutput struct {
	ADUs       []*types.ADU
	Reused     bool
	Revived    int64
	Superseded int64
	// DroppedParents counts parent indices that were out of range or not
	// earlier than their child.
	DroppedParents int
}

// ExtractADUs makes sure the ADUs of the unit's current body exist. A batch
// already stored for (source, hash) is reused, so retries never call the
// service twice for the same body.
func ExtractADUs(ctx context.Context, deps ExtractDeps, in ExtractInput) (ExtractOutput, error) {
	u := in.Unit
	dbc := dbctx.Context{Ctx: ctx}
	existing, err := deps.ADUs.ListBySourceHash(dbc, u.Type, u.ID, u.ContentHash)
	if err != nil {
		return ExtractOutput{}, errors.MarkTransient(errors.Wrap(err, "load adus"))
	}
	if len(existing) > 0 {
		return reuseBatch(ctx, deps, u, existing)
	}

	results, err := deps.AI.ExtractADUs(ctx, []analysis.ExtractItem{{ID: u.ID.String(), Text: u.Body}})
	if err != nil {
		return ExtractOutput{}, err
	}
	var extracted []analysis.ExtractedADU
	for _, r := range results {
		if r.ID == u.ID.String() {
			extracted = r.ADUs
			break
		}
	}

	// Keep only well-formed spans; kept[i] is the batch position of
	// extracted[i], or -1 when dropped.
	kept := make([]int, len(extracted))
	rows := make([]*types.ADU, 0, len(extracted))
	for i, e := range extracted {
		kept[i] = -1
		t := strings.ToLower(strings.TrimSpace(e.Type))
		text := strings.TrimSpace(e.Text)
		if !argument.ValidADUType(t) || text == "" {
			deps.Log.Warn("dropping malformed adu", "content_id", u.ID, "index", i, "type", e.Type)
			continue
		}
		kept[i] = len(rows)
		rows = append(rows, &types.ADU{
			ID:         uuid.New(),
			SourceType: u.Type,
			SourceID:   u.ID,
			SourceHash: u.ContentHash,
			Position:   len(rows),
			ADUType:    t,
			Text:       text,
			SpanStart:  e.SpanStart,
			SpanEnd:    e.SpanEnd,
			Confidence: e.Confidence,
			CreatedAt:  time.Now().UTC(),
		})
	}

	out := ExtractOutput{}
	err = deps.Tx.InTx(ctx, func(txc dbctx.Context) error {
		n, err := deps.ADUs.SupersedeOlder(txc, u.Type, u.ID, u.ContentHash, time.Now().UTC())
		if err != nil {
			return err
		}
		out.Superseded = n
		if n > 0 && deps.Canonical != nil {
			if err := deps.Canonical.RecomputeForSource(txc, u.Type, u.ID); err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		if err := deps.ADUs.InsertBatch(txc, rows); err != nil {
			return err
		}
		// A concurrent run may have inserted the same keys first, so the ids
		// assigned above are not authoritative. Re-read by position.
		stored, err := deps.ADUs.ListBySourceHash(txc, u.Type, u.ID, u.ContentHash)
		if err != nil {
			return err
		}
		byPos := make(map[int]*types.ADU, len(stored))
		for _, a := range stored {
			byPos[a.Position] = a
		}

		for i, e := range extracted {
			if kept[i] < 0 || e.ParentIndex == nil {
				continue
			}
			child := byPos[kept[i]]
			if child == nil || child.ADUType == argument.TypeMajorClaim {
				continue
			}
			p := *e.ParentIndex
			if p < 0 || p >= i || kept[p] < 0 {
				out.DroppedParents++
				deps.Log.Warn("dropping invalid parent index", "content_id", u.ID, "index", i, "parent_index", p)
				continue
			}
			parent := byPos[kept[p]]
			if parent == nil || child.ParentADUID != nil {
				continue
			}
			if err := deps.ADUs.SetParent(txc, child.ID, parent.ID); err != nil {
				return err
			}
			pid := parent.ID
			child.ParentADUID = &pid
		}
		out.ADUs = stored
		return nil
	})
	if err != nil {
		return ExtractOutput{}, errors.MarkTransient(errors.Wrap(err, "persist adus"))
	}
	return out, nil
}

// reuseBatch returns a stored batch. A body edited back to an earlier version
// finds its batch superseded; that batch becomes live again and every other
// hash is superseded in its place.
func reuseBatch(ctx context.Context, deps ExtractDeps, u *types.ContentUnit, existing []*types.ADU) (ExtractOutput, error) {
	out := ExtractOutput{ADUs: existing, Reused: true}
	stale := false
	for _, a := range existing {
		if a.SupersededAt != nil {
			stale = true
			break
		}
	}
	if !stale {
		return out, nil
	}
	err := deps.Tx.InTx(ctx, func(txc dbctx.Context) error {
		n, err := deps.ADUs.SupersedeOlder(txc, u.Type, u.ID, u.ContentHash, time.Now().UTC())
		if err != nil {
			return err
		}
		out.Superseded = n
		if out.Revived, err = deps.ADUs.Revive(txc, u.Type, u.ID, u.ContentHash); err != nil {
			return err
		}
		if deps.Canonical != nil {
			return deps.Canonical.RecomputeForSource(txc, u.Type, u.ID)
		}
		return nil
	})
	if err != nil {
		return ExtractOutput{}, errors.MarkTransient(errors.Wrap(err, "revive adus"))
	}
	for _, a := range existing {
		a.SupersededAt = nil
	}
	return out, nil
}
