package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/agora-backend/internal/data/repos"
	types "github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/jobs/runtime"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	// StaleRunning is how long a running job may go without a heartbeat
	// before another worker reclaims it.
	StaleRunning time.Duration
	Retry        runtime.RetryPolicy
	// AutoRequeueAfter requeues dead letters older than this once; 0 disables.
	AutoRequeueAfter time.Duration
	MaxAutoRequeues  int
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 2 * time.Minute
	}
	if c.Retry.Base <= 0 {
		c.Retry = runtime.DefaultRetryPolicy()
	}
	if c.MaxAutoRequeues <= 0 {
		c.MaxAutoRequeues = 1
	}
	return c
}

type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   runtime.DeadLetterNotifier
	cfg      Config
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify runtime.DeadLetterNotifier, cfg Config) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg.withDefaults(),
	}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(gctx, workerID)
			return nil
		})
	}
	if w.cfg.AutoRequeueAfter > 0 {
		g.Go(func() error {
			w.requeueLoop(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// drain while there is work so a backlog doesn't wait a tick per job
			for ctx.Err() == nil {
				claimed, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !claimed {
					break
				}
			}
		}
	}
}

func (w *Worker) requeueLoop(ctx context.Context) {
	interval := w.cfg.AutoRequeueAfter / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-w.cfg.AutoRequeueAfter)
			n, err := w.repo.RequeueDeadLetters(dbctx.Context{Ctx: ctx}, cutoff, w.cfg.MaxAutoRequeues, 100)
			if err != nil {
				w.log.Warn("auto requeue failed", "error", err)
				continue
			}
			if n > 0 {
				w.log.Info("dead letters auto-requeued", "count", n)
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job was
// claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.execute(ctx, job)
	return true, nil
}

// RunJob claims and executes one specific job. It returns the job as settled
// by this attempt, or nil when the job was not claimable.
func (w *Worker) RunJob(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	job, err := w.repo.ClaimByID(dbctx.Context{Ctx: ctx}, id, w.cfg.StaleRunning)
	if err != nil || job == nil {
		return nil, err
	}
	w.execute(ctx, job)
	return job, nil
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	jc := runtime.NewContext(ctx, job, w.repo, w.notify, w.cfg.Retry)
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("No handler registered for job_type")
		jc.Fail("dispatch", errors.MarkPermanent(&missingHandlerError{JobType: job.JobType}))
		return
	}

	stop := w.heartbeat(ctx, job)
	defer stop()

	runErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job handler panic", "panic", r)
				err = errors.MarkPermanent(&panicError{Val: r})
			}
		}()
		return h.Run(jc)
	}()

	if jc.Done() {
		return
	}
	if runErr == nil {
		jc.Succeed("done", nil)
		return
	}
	terminal := jc.Fail(job.Stage, runErr)
	if terminal {
		log.Warn("job dead-lettered", "stage", job.Stage, "error", runErr)
		if hook, ok := h.(runtime.DeadLetterHook); ok {
			hook.OnDeadLetter(jc, job.Error)
		}
		return
	}
	log.Info("job scheduled for retry", "stage", job.Stage, "error", runErr)
}

// heartbeat keeps the claim fresh while the handler runs.
func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	hctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: hctx}, job.ID); err != nil && hctx.Err() == nil {
					w.log.Warn("heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
