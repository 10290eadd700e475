package runtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	jobstatus "github.com/yungbote/agora-backend/internal/domain/jobs"
	"github.com/yungbote/agora-backend/internal/observability"
	"github.com/yungbote/agora-backend/internal/pkg/ctxutil"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/httpx"
)

// RetryPolicy decides when a failed attempt runs again.
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 30 * time.Second, Max: 30 * time.Minute}
}

// Delay is the wait before attempt+1 (attempt is the one-based attempt that
// just failed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return httpx.Backoff(attempt-1, p.Base, p.Max)
}

// DeadLetterNotifier is told about jobs that will not be retried.
type DeadLetterNotifier interface {
	JobDeadLettered(ctx context.Context, job *types.JobRun, reason string)
}

/*
Context is the execution handle for one claimed job run. Pipelines report
progress and terminate through it and never touch job_run directly.
*/
type Context struct {
	Ctx    context.Context
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Notify DeadLetterNotifier
	Policy RetryPolicy

	now     func() time.Time
	done    bool
	payload json.RawMessage
}

func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, notify DeadLetterNotifier, policy RetryPolicy) *Context {
	if policy.Base <= 0 {
		policy = DefaultRetryPolicy()
	}
	c := &Context{
		Ctx:    ctx,
		Job:    job,
		Repo:   repo,
		Notify: notify,
		Policy: policy,
		now:    time.Now,
	}
	if job != nil {
		c.payload = json.RawMessage(job.Payload)
	}
	c.applyTraceData()
	return c
}

func (c *Context) applyTraceData() {
	if c.Ctx == nil || len(c.payload) == 0 {
		return
	}
	var td struct {
		TraceID   string `json:"trace_id"`
		RequestID string `json:"request_id"`
	}
	if json.Unmarshal(c.payload, &td) != nil {
		return
	}
	td.TraceID = strings.TrimSpace(td.TraceID)
	td.RequestID = strings.TrimSpace(td.RequestID)
	if td.TraceID == "" && td.RequestID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: td.TraceID, RequestID: td.RequestID})
}

// Payload returns the raw job payload.
func (c *Context) Payload() []byte { return c.payload }

// DecodePayload unmarshals the job payload into v.
func (c *Context) DecodePayload(v any) error {
	if len(c.payload) == 0 {
		return errors.MarkPermanent(errors.New("empty payload"))
	}
	if err := json.Unmarshal(c.payload, v); err != nil {
		return errors.MarkPermanent(errors.Wrap(err, "decode payload"))
	}
	return nil
}

// Done reports whether Succeed or Fail already settled this run.
func (c *Context) Done() bool { return c.done }

// dbc detaches from cancellation so a run settled during shutdown still
// records its outcome.
func (c *Context) dbc() dbctx.Context {
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return dbctx.Context{Ctx: context.WithoutCancel(ctx)}
}

func (c *Context) jobID() uuid.UUID {
	if c.Job == nil {
		return uuid.Nil
	}
	return c.Job.ID
}

// Progress records the current stage and refreshes the heartbeat.
func (c *Context) Progress(stage string) {
	if c == nil || c.Job == nil {
		return
	}
	now := c.now().UTC()
	if c.Repo != nil {
		_, _ = c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.jobID(), []string{jobstatus.StatusDeadLetter, jobstatus.StatusSucceeded}, map[string]interface{}{
			"stage":        stage,
			"heartbeat_at": now,
		})
	}
	c.Job.Stage = stage
	c.Job.HeartbeatAt = &now
}

// Succeed settles the run and stores result as JSON.
func (c *Context) Succeed(stage string, result any) {
	if c == nil || c.Job == nil || c.done {
		return
	}
	c.done = true
	now := c.now().UTC()
	res := datatypes.JSON([]byte(`{}`))
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	if c.Repo != nil {
		_, _ = c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.jobID(), []string{jobstatus.StatusDeadLetter}, map[string]interface{}{
			"status":       jobstatus.StatusSucceeded,
			"stage":        stage,
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
		})
	}
	c.Job.Status = jobstatus.StatusSucceeded
	c.Job.Stage = stage
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	observability.Current().IncJobOutcome(c.Job.JobType, jobstatus.StatusSucceeded)
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsTransient(err) {
		return true
	}
	return types.IsCode(err, types.CodeTransientUpstream) && !errors.Is(err, errors.ErrPermanent)
}

// Fail settles the attempt. A retryable error with attempts left schedules
// another attempt after the policy delay; anything else dead-letters the job.
// It reports whether the failure was terminal.
func (c *Context) Fail(stage string, err error) bool {
	if c == nil || c.Job == nil || c.done {
		return false
	}
	c.done = true
	now := c.now().UTC()
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	if len(msg) > 2000 {
		msg = msg[:2000]
	}

	if Retryable(err) && c.Job.Attempts < c.Job.MaxAttempts {
		runAfter := now.Add(c.Policy.Delay(c.Job.Attempts))
		if c.Repo != nil {
			_, _ = c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.jobID(), []string{jobstatus.StatusDeadLetter}, map[string]interface{}{
				"status":        jobstatus.StatusFailed,
				"stage":         stage,
				"error":         msg,
				"last_error_at": now,
				"run_after":     runAfter,
				"locked_at":     nil,
			})
		}
		c.Job.Status = jobstatus.StatusFailed
		c.Job.Stage = stage
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.RunAfter = &runAfter
		c.Job.LockedAt = nil
		observability.Current().IncJobOutcome(c.Job.JobType, jobstatus.StatusFailed)
		return false
	}

	if c.Repo != nil {
		_, _ = c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.jobID(), []string{jobstatus.StatusSucceeded}, map[string]interface{}{
			"status":           jobstatus.StatusDeadLetter,
			"stage":            stage,
			"error":            msg,
			"last_error_at":    now,
			"dead_lettered_at": now,
			"locked_at":        nil,
		})
	}
	c.Job.Status = jobstatus.StatusDeadLetter
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.DeadLetteredAt = &now
	c.Job.LockedAt = nil
	observability.Current().IncJobOutcome(c.Job.JobType, jobstatus.StatusDeadLetter)
	if c.Notify != nil {
		c.Notify.JobDeadLettered(c.Ctx, c.Job, msg)
	}
	return true
}
