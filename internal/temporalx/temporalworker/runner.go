package temporalworker

import (
	"context"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/agora-backend/internal/data/repos"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/logger"
	"github.com/yungbote/agora-backend/internal/temporalx"
	"github.com/yungbote/agora-backend/internal/temporalx/jobrun"
)

const startMaxWait = time.Minute

// Runner polls the analysis task queue and executes job runs through the
// same JobRunner the DB worker uses.
type Runner struct {
	log         *logger.Logger
	tc          temporalsdkclient.Client
	cfg         temporalx.Config
	jobs        repos.JobRunRepo
	runner      jobrun.JobRunner
	concurrency int
}

func NewRunner(baseLog *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, jobs repos.JobRunRepo, runner jobrun.JobRunner, concurrency int) (*Runner, error) {
	if tc == nil {
		return nil, errors.New("temporal client is not configured")
	}
	if jobs == nil || runner == nil {
		return nil, errors.New("temporal worker missing deps")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "agora"
	}
	if cfg.TaskQueue == "" {
		cfg.TaskQueue = "agora-analysis"
	}
	return &Runner{
		log:         baseLog.With("component", "TemporalWorker"),
		tc:          tc,
		cfg:         cfg,
		jobs:        jobs,
		runner:      runner,
		concurrency: concurrency,
	}, nil
}

// Start begins polling and returns once the worker is running. The worker
// stops when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	deadline := time.Now().Add(startMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) {
			if !r.cfg.AutoRegisterNamespace {
				return errors.Wrapf(startErr, "temporal namespace not found (namespace=%s)", r.cfg.Namespace)
			}
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if time.Now().After(deadline) {
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		time.Sleep(time.Duration(attempt) * 250 * time.Millisecond)
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	acts := &jobrun.Activities{Log: r.log, Jobs: r.jobs, Runner: r.runner}
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: jobrun.ActivityExecute})
	return w
}
