package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	jobstatus "github.com/yungbote/agora-backend/internal/domain/jobs"
)

const (
	pollInterval      = 30 * time.Second
	maxWait           = 15 * time.Minute
	continueTickLimit = 500
)

// Workflow drives one job run to a terminal state. Retry timing comes from
// the job row (run_after), not from Temporal retry policies, so the DB worker
// and the workflow agree on when the next attempt is due.
func Workflow(ctx workflow.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return temporal.NewNonRetryableApplicationError("missing job id", "invalid_input", nil)
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	for tick := 1; ; tick++ {
		var out ExecuteResult
		if err := workflow.ExecuteActivity(ctx, ActivityExecute, jobID).Get(ctx, &out); err != nil {
			return err
		}
		switch out.Status {
		case jobstatus.StatusSucceeded:
			return nil
		case jobstatus.StatusDeadLetter:
			return temporal.NewNonRetryableApplicationError(fmt.Sprintf("job dead-lettered (stage=%s)", out.Stage), "dead_letter", nil)
		case "":
			return temporal.NewNonRetryableApplicationError("job not found", "not_found", nil)
		}
		if err := workflow.Sleep(ctx, nextWait(ctx, out.RunAfter)); err != nil {
			return err
		}
		if tick >= continueTickLimit {
			return workflow.NewContinueAsNewError(ctx, Workflow, jobID)
		}
	}
}

func nextWait(ctx workflow.Context, runAfter *time.Time) time.Duration {
	if runAfter == nil || runAfter.IsZero() {
		return pollInterval
	}
	d := runAfter.Sub(workflow.Now(ctx))
	if d <= 0 {
		return time.Second
	}
	if d > maxWait {
		return maxWait
	}
	return d
}
