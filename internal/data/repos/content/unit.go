package content

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// UnitRepo is the type-agnostic view of posts and replies used by the
// analysis pipeline.
type UnitRepo interface {
	Get(dbc dbctx.Context, contentType string, id uuid.UUID) (*types.ContentUnit, error)
	// SetAnalysisStatus moves the unit to status unless it is already in one of
	// the disallowed statuses. It reports whether a row changed.
	SetAnalysisStatus(dbc dbctx.Context, contentType string, id uuid.UUID, status, reason string, disallowed []string) (bool, error)
	MarkAnalyzed(dbc dbctx.Context, contentType string, id uuid.UUID, hash string) error
}

type unitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnitRepo(db *gorm.DB, baseLog *logger.Logger) UnitRepo {
	return &unitRepo{db: db, log: baseLog.With("repo", "UnitRepo")}
}

func tableFor(contentType string) (string, error) {
	switch contentType {
	case content.TypePost:
		return "post", nil
	case content.TypeReply:
		return "reply", nil
	}
	return "", fmt.Errorf("unknown content type %q", contentType)
}

// Get returns soft-deleted units too (Deleted=true) so callers can tell
// "gone" apart from "never existed" (nil).
func (r *unitRepo) Get(dbc dbctx.Context, contentType string, id uuid.UUID) (*types.ContentUnit, error) {
	switch contentType {
	case content.TypePost:
		var p types.Post
		err := dbc.DB(r.db).Unscoped().Where("id = ?", id).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return content.UnitFromPost(&p), nil
	case content.TypeReply:
		var rp types.Reply
		err := dbc.DB(r.db).Unscoped().Where("id = ?", id).First(&rp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return content.UnitFromReply(&rp), nil
	}
	return nil, fmt.Errorf("unknown content type %q", contentType)
}

func (r *unitRepo) SetAnalysisStatus(dbc dbctx.Context, contentType string, id uuid.UUID, status, reason string, disallowed []string) (bool, error) {
	table, err := tableFor(contentType)
	if err != nil {
		return false, err
	}
	q := dbc.DB(r.db).Table(table).Where("id = ?", id)
	if len(disallowed) > 0 {
		q = q.Where("analysis_status NOT IN ?", disallowed)
	}
	res := q.Updates(map[string]interface{}{
		"analysis_status": status,
		"analysis_error":  reason,
		"updated_at":      time.Now().UTC(),
	})
	return res.RowsAffected > 0, res.Error
}

func (r *unitRepo) MarkAnalyzed(dbc dbctx.Context, contentType string, id uuid.UUID, hash string) error {
	table, err := tableFor(contentType)
	if err != nil {
		return err
	}
	return dbc.DB(r.db).Table(table).
		Where("id = ? AND content_hash = ?", id, hash).
		Updates(map[string]interface{}{
			"analysis_status": content.AnalysisCompleted,
			"analysis_error":  "",
			"analyzed_hash":   hash,
			"updated_at":      time.Now().UTC(),
		}).Error
}
