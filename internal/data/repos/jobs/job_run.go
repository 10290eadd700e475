package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agora-backend/internal/domain"
	jobstatus "github.com/yungbote/agora-backend/internal/domain/jobs"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error)
	// ClaimByID claims one specific job if it is due. It returns nil when the
	// job is missing, settled, not yet due or held by a live worker.
	ClaimByID(dbc dbctx.Context, id uuid.UUID, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (bool, error)
	ListDeadLetters(dbc dbctx.Context, limit int) ([]*types.JobRun, error)
	Requeue(dbc dbctx.Context, id uuid.UUID) (bool, error)
	RequeueDeadLetters(dbc dbctx.Context, olderThan time.Time, maxRequeues int, limit int) (int64, error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextRunnable locks one runnable job with SKIP LOCKED so concurrent
// workers never claim the same row. Runnable means queued and due, failed with
// attempts left and due, or running with a heartbeat older than staleRunning
// (the worker that held it crashed).
func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error) {
	return r.claim(dbc, staleRunning, uuid.Nil)
}

func (r *jobRunRepo) ClaimByID(dbc dbctx.Context, id uuid.UUID, staleRunning time.Duration) (*types.JobRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.claim(dbc, staleRunning, id)
}

func (r *jobRunRepo) claim(dbc dbctx.Context, staleRunning time.Duration, id uuid.UUID) (*types.JobRun, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if id != uuid.Nil {
			q = q.Where("id = ?", id)
		}
		qErr := q.Where(`(
				(
					status = ? AND (run_after IS NULL OR run_after <= ?)
				)
				OR (
					status = ? AND attempts < max_attempts AND (run_after IS NULL OR run_after <= ?)
				)
				OR (
					status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?
				)
			)`, jobstatus.StatusQueued, now, jobstatus.StatusFailed, now, jobstatus.StatusRunning, staleCutoff).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		if err := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       jobstatus.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}
		job.Status = jobstatus.StatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.JobRun{}).Where("id = ?", id).Updates(updates).Error
}

func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := dbc.DB(r.db).Model(&types.JobRun{}).Where("id = ?", id)
	if len(disallowedStatuses) > 0 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return dbc.DB(r.db).Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobstatus.StatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

func (r *jobRunRepo) HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (bool, error) {
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return false, nil
	}
	var count int64
	err := dbc.DB(r.db).Model(&types.JobRun{}).
		Where("entity_type = ? AND entity_id = ? AND job_type = ? AND status IN ?",
			entityType, entityID, jobType, []string{jobstatus.StatusQueued, jobstatus.StatusRunning}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *jobRunRepo) ListDeadLetters(dbc dbctx.Context, limit int) ([]*types.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.JobRun
	err := dbc.DB(r.db).
		Where("status = ?", jobstatus.StatusDeadLetter).
		Order("dead_lettered_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Requeue moves one dead-lettered job back to queued with a fresh attempt
// budget. It returns false when the job is not dead-lettered.
func (r *jobRunRepo) Requeue(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobstatus.StatusDeadLetter).
		Updates(requeueUpdates())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) RequeueDeadLetters(dbc dbctx.Context, olderThan time.Time, maxRequeues int, limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	sub := dbc.DB(r.db).Model(&types.JobRun{}).
		Select("id").
		Where("status = ? AND dead_lettered_at < ? AND requeues < ?", jobstatus.StatusDeadLetter, olderThan, maxRequeues).
		Order("dead_lettered_at ASC").
		Limit(limit)
	res := dbc.DB(r.db).Model(&types.JobRun{}).
		Where("id IN (?)", sub).
		Updates(requeueUpdates())
	return res.RowsAffected, res.Error
}

func requeueUpdates() map[string]interface{} {
	return map[string]interface{}{
		"status":           jobstatus.StatusQueued,
		"stage":            "queued",
		"attempts":         0,
		"run_after":        nil,
		"dead_lettered_at": nil,
		"requeues":         gorm.Expr("requeues + 1"),
		"updated_at":       time.Now().UTC(),
	}
}

func (r *jobRunRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := dbc.DB(r.db).Model(&types.JobRun{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
