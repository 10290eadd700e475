package temporalx

import (
	"go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/temporalx/jobrun"
)

// Dispatcher starts one workflow per job run. The workflow id is derived from
// the job id, so dispatching the same job twice is a no-op.
type Dispatcher struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewDispatcher(baseLog *logger.Logger, tc temporalsdkclient.Client, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{log: baseLog.With("component", "TemporalDispatcher"), tc: tc, taskQueue: cfg.TaskQueue}
}

func WorkflowID(job *types.JobRun) string { return "job-" + job.ID.String() }

func (d *Dispatcher) Dispatch(dbc dbctx.Context, job *types.JobRun) error {
	if d == nil || d.tc == nil || job == nil {
		return nil
	}
	run, err := d.tc.ExecuteWorkflow(dbc.Ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                       WorkflowID(job),
		TaskQueue:                d.taskQueue,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, jobrun.WorkflowName, job.ID.String())
	if err != nil {
		return err
	}
	d.log.Debug("job dispatched", "job_id", job.ID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
