package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/agora-backend/internal/data/aggregates"
	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/domain/content"
	jobstatus "github.com/yungbote/agora-backend/internal/domain/jobs"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// JobTypeAnalyzeContent runs the argument-analysis pipeline for one unit.
const JobTypeAnalyzeContent = "analyze_content"

// AnalyzePayload is the analyze_content job payload.
type AnalyzePayload struct {
	ContentType string    `json:"content_type"`
	ContentID   uuid.UUID `json:"content_id"`
	ContentHash string    `json:"content_hash"`
	TraceID     string    `json:"trace_id,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Dispatcher hands a committed job to an external orchestrator. The DB worker
// claims queued rows on its own, so dispatch is optional.
type Dispatcher interface {
	Dispatch(dbc dbctx.Context, job *types.JobRun) error
}

type JobService interface {
	EnqueueAnalysis(dbc dbctx.Context, ownerUserID uuid.UUID, contentType string, contentID uuid.UUID, hash string) (*types.JobRun, error)
	// Reanalyze enqueues analysis for an existing unit unless one is already
	// queued or running. It reports whether a job was created.
	Reanalyze(dbc dbctx.Context, contentType string, contentID uuid.UUID) (*types.JobRun, bool, error)
	ListDeadLetters(dbc dbctx.Context, limit int) ([]*types.JobRun, error)
	RetryDeadLetter(dbc dbctx.Context, id uuid.UUID) error
	RequeueDeadLetters(dbc dbctx.Context, olderThan time.Duration, limit int) (int64, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
}

type JobConfig struct {
	MaxAttempts int
	// MaxRequeues bounds bulk requeue so a poison job cannot cycle forever.
	MaxRequeues int
}

type jobService struct {
	log        *logger.Logger
	repo       repos.JobRunRepo
	units      repos.UnitRepo
	dispatcher Dispatcher
	cfg        JobConfig
}

func NewJobService(baseLog *logger.Logger, repo repos.JobRunRepo, units repos.UnitRepo, dispatcher Dispatcher, cfg JobConfig) JobService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxRequeues <= 0 {
		cfg.MaxRequeues = 3
	}
	return &jobService{
		log:        baseLog.With("service", "JobService"),
		repo:       repo,
		units:      units,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

func (s *jobService) EnqueueAnalysis(dbc dbctx.Context, ownerUserID uuid.UUID, contentType string, contentID uuid.UUID, hash string) (*types.JobRun, error) {
	const op = "jobs.enqueue"
	if !content.ValidType(contentType) {
		return nil, types.Validation(op, "content_type", "unknown content type")
	}
	payload := AnalyzePayload{ContentType: contentType, ContentID: contentID, ContentHash: hash}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		payload.TraceID = td.TraceID
		payload.RequestID = td.RequestID
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, op, err)
	}
	id := contentID
	job := &types.JobRun{
		OwnerUserID: ownerUserID,
		JobType:     JobTypeAnalyzeContent,
		EntityType:  contentType,
		EntityID:    &id,
		Status:      jobstatus.StatusQueued,
		Stage:       "queued",
		MaxAttempts: s.cfg.MaxAttempts,
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
	}
	if _, err := s.repo.Create(dbc, []*types.JobRun{job}); err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if s.dispatcher != nil && dbc.Tx == nil {
		if err := s.dispatcher.Dispatch(dbc, job); err != nil {
			// the row stays queued; the DB worker will pick it up
			s.log.Warn("dispatch failed", "job_id", job.ID, "error", err)
		}
	}
	return job, nil
}

func (s *jobService) Reanalyze(dbc dbctx.Context, contentType string, contentID uuid.UUID) (*types.JobRun, bool, error) {
	const op = "jobs.reanalyze"
	if !content.ValidType(contentType) {
		return nil, false, types.Validation(op, "content_type", "unknown content type")
	}
	u, err := s.units.Get(dbc, contentType, contentID)
	if err != nil {
		return nil, false, aggregates.MapError(op, err)
	}
	if u == nil || u.Deleted {
		return nil, false, types.NotFound(op, contentType)
	}
	busy, err := s.repo.HasRunnableForEntity(dbc, contentType, contentID, JobTypeAnalyzeContent)
	if err != nil {
		return nil, false, aggregates.MapError(op, err)
	}
	if busy {
		return nil, false, nil
	}
	job, err := s.EnqueueAnalysis(dbc, u.AuthorID, contentType, contentID, u.ContentHash)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) ListDeadLetters(dbc dbctx.Context, limit int) ([]*types.JobRun, error) {
	out, err := s.repo.ListDeadLetters(dbc, limit)
	if err != nil {
		return nil, aggregates.MapError("jobs.dead_letters", err)
	}
	return out, nil
}

func (s *jobService) RetryDeadLetter(dbc dbctx.Context, id uuid.UUID) error {
	ok, err := s.repo.Requeue(dbc, id)
	if err != nil {
		return aggregates.MapError("jobs.retry", err)
	}
	if !ok {
		return types.NotFound("jobs.retry", "dead-lettered job")
	}
	s.log.Info("dead letter requeued", "job_id", id)
	return nil
}

func (s *jobService) RequeueDeadLetters(dbc dbctx.Context, olderThan time.Duration, limit int) (int64, error) {
	if olderThan < 0 {
		return 0, types.Validation("jobs.requeue", "older_than", "older_than must not be negative")
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := s.repo.RequeueDeadLetters(dbc, cutoff, s.cfg.MaxRequeues, limit)
	if err != nil {
		return 0, aggregates.MapError("jobs.requeue", err)
	}
	if n > 0 {
		s.log.Info("dead letters requeued", "count", n, "older_than", olderThan.String())
	}
	return n, nil
}

func (s *jobService) Get(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	jobs, err := s.repo.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, aggregates.MapError("jobs.get", err)
	}
	if len(jobs) == 0 {
		return nil, types.NotFound("jobs.get", "job")
	}
	return jobs[0], nil
}

// DecodeAnalyzePayload parses a job payload, tolerating whitespace in the type.
func DecodeAnalyzePayload(raw []byte) (AnalyzePayload, error) {
	var p AnalyzePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	p.ContentType = strings.ToLower(strings.TrimSpace(p.ContentType))
	return p, nil
}
