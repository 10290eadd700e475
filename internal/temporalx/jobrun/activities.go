package jobrun

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

// JobRunner executes one claimed job; *worker.Worker implements it.
type JobRunner interface {
	RunJob(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
}

type Activities struct {
	Log    *logger.Logger
	Jobs   repos.JobRunRepo
	Runner JobRunner
}

// Execute claims the job and runs one attempt. When the job cannot be
// claimed it reports the current row so the workflow can wait or stop.
func (a *Activities) Execute(ctx context.Context, jobID string) (ExecuteResult, error) {
	res := ExecuteResult{JobID: jobID}
	id, err := uuid.Parse(jobID)
	if err != nil || id == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("invalid job id", "invalid_input", err)
	}

	stop := heartbeat(ctx)
	defer stop()

	job, err := a.Runner.RunJob(ctx, id)
	if err != nil {
		return res, err
	}
	if job != nil {
		res.Claimed = true
	} else {
		rows, err := a.Jobs.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{id})
		if err != nil {
			return res, err
		}
		if len(rows) == 0 {
			a.Log.Warn("job row missing", "job_id", id)
			return res, nil
		}
		job = rows[0]
	}
	res.Status = job.Status
	res.Stage = job.Stage
	res.RunAfter = job.RunAfter
	return res, nil
}

func heartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
