package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/agora-backend/internal/domain"
	jobstatus "github.com/yungbote/agora-backend/internal/domain/jobs"
	"github.com/yungbote/agora-backend/internal/jobs/runtime"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
	"github.com/yungbote/agora-backend/internal/pkg/errors"
	"github.com/yungbote/agora-backend/internal/platform/logger"
)

type fakeRepo struct {
	mu      sync.Mutex
	queue   []*types.JobRun
	updates map[uuid.UUID]map[string]interface{}
}

func newFakeRepo(jobs ...*types.JobRun) *fakeRepo {
	return &fakeRepo{queue: jobs, updates: map[uuid.UUID]map[string]interface{}{}}
}

func (f *fakeRepo) Create(_ dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	return jobs, nil
}
func (f *fakeRepo) GetByIDs(dbctx.Context, []uuid.UUID) ([]*types.JobRun, error) { return nil, nil }

func (f *fakeRepo) ClaimNextRunnable(dbctx.Context, time.Duration) (*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, nil
	}
	j := f.queue[0]
	f.queue = f.queue[1:]
	j.Status = jobstatus.StatusRunning
	j.Attempts++
	return j, nil
}

func (f *fakeRepo) ClaimByID(_ dbctx.Context, id uuid.UUID, _ time.Duration) (*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, j := range f.queue {
		if j.ID == id {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			j.Status = jobstatus.StatusRunning
			j.Attempts++
			return j, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, u map[string]interface{}) error {
	_, err := f.UpdateFieldsUnlessStatus(dbctx.Context{}, id, nil, u)
	return err
}

func (f *fakeRepo) UpdateFieldsUnlessStatus(_ dbctx.Context, id uuid.UUID, _ []string, u map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.updates[id]
	if cur == nil {
		cur = map[string]interface{}{}
		f.updates[id] = cur
	}
	for k, v := range u {
		cur[k] = v
	}
	return true, nil
}

func (f *fakeRepo) Heartbeat(dbctx.Context, uuid.UUID) error { return nil }
func (f *fakeRepo) HasRunnableForEntity(dbctx.Context, string, uuid.UUID, string) (bool, error) {
	return false, nil
}
func (f *fakeRepo) ListDeadLetters(dbctx.Context, int) ([]*types.JobRun, error) { return nil, nil }
func (f *fakeRepo) Requeue(dbctx.Context, uuid.UUID) (bool, error)              { return false, nil }
func (f *fakeRepo) RequeueDeadLetters(dbctx.Context, time.Time, int, int) (int64, error) {
	return 0, nil
}
func (f *fakeRepo) CountByStatus(dbctx.Context) (map[string]int64, error) { return nil, nil }

func (f *fakeRepo) status(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, _ := f.updates[id]["status"].(string)
	return s
}

type handlerFunc struct {
	typ      string
	run      func(jc *runtime.Context) error
	deadMsgs []string
}

func (h *handlerFunc) Type() string                  { return h.typ }
func (h *handlerFunc) Run(jc *runtime.Context) error { return h.run(jc) }
func (h *handlerFunc) OnDeadLetter(_ *runtime.Context, reason string) {
	h.deadMsgs = append(h.deadMsgs, reason)
}

type recordingNotifier struct{ jobs []uuid.UUID }

func (n *recordingNotifier) JobDeadLettered(_ context.Context, job *types.JobRun, _ string) {
	n.jobs = append(n.jobs, job.ID)
}

func newJob(attempts int) *types.JobRun {
	return &types.JobRun{ID: uuid.New(), JobType: "test", Status: jobstatus.StatusQueued, Attempts: attempts, MaxAttempts: 5, Payload: []byte(`{}`)}
}

func setup(t *testing.T, h *handlerFunc, jobs ...*types.JobRun) (*Worker, *fakeRepo, *recordingNotifier) {
	t.Helper()
	reg := runtime.NewRegistry()
	if err := reg.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	repo := newFakeRepo(jobs...)
	n := &recordingNotifier{}
	return NewWorker(logger.Nop(), repo, reg, n, Config{}), repo, n
}

func TestRunOnceSucceeds(t *testing.T) {
	job := newJob(0)
	w, repo, _ := setup(t, &handlerFunc{typ: "test", run: func(*runtime.Context) error { return nil }}, job)
	claimed, err := w.RunOnce(context.Background())
	if err != nil || !claimed {
		t.Fatalf("claimed: want=true got=%v err=%v", claimed, err)
	}
	if got := repo.status(job.ID); got != jobstatus.StatusSucceeded {
		t.Fatalf("status: want=%s got=%s", jobstatus.StatusSucceeded, got)
	}
	claimed, _ = w.RunOnce(context.Background())
	if claimed {
		t.Fatalf("empty queue: want=false")
	}
}

func TestTransientFailureSchedulesRetryWithBackoff(t *testing.T) {
	job := newJob(1) // claim makes this attempt 2
	h := &handlerFunc{typ: "test", run: func(*runtime.Context) error {
		return errors.MarkTransient(errors.New("503"))
	}}
	w, repo, n := setup(t, h, job)
	before := time.Now().UTC()
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := repo.status(job.ID); got != jobstatus.StatusFailed {
		t.Fatalf("status: want=failed got=%s", got)
	}
	runAfter := repo.updates[job.ID]["run_after"].(time.Time)
	if d := runAfter.Sub(before); d < 60*time.Second || d > 61*time.Second {
		t.Fatalf("backoff after attempt 2: want~=60s got=%v", d)
	}
	if len(n.jobs) != 0 || len(h.deadMsgs) != 0 {
		t.Fatalf("retry must not dead-letter")
	}
}

func TestExhaustedAttemptsDeadLetter(t *testing.T) {
	job := newJob(4)
	h := &handlerFunc{typ: "test", run: func(*runtime.Context) error {
		return errors.MarkTransient(errors.New("timeout"))
	}}
	w, repo, n := setup(t, h, job)
	_, _ = w.RunOnce(context.Background())
	if got := repo.status(job.ID); got != jobstatus.StatusDeadLetter {
		t.Fatalf("status: want=dead_letter got=%s", got)
	}
	if len(n.jobs) != 1 || len(h.deadMsgs) != 1 {
		t.Fatalf("dead-letter hooks: notifier=%d handler=%d", len(n.jobs), len(h.deadMsgs))
	}
}

func TestPermanentFailureDeadLettersImmediately(t *testing.T) {
	job := newJob(0)
	h := &handlerFunc{typ: "test", run: func(*runtime.Context) error {
		return errors.MarkPermanent(errors.New("bad dims"))
	}}
	w, repo, _ := setup(t, h, job)
	_, _ = w.RunOnce(context.Background())
	if got := repo.status(job.ID); got != jobstatus.StatusDeadLetter {
		t.Fatalf("status: want=dead_letter got=%s", got)
	}
}

func TestPanicIsContained(t *testing.T) {
	job := newJob(0)
	h := &handlerFunc{typ: "test", run: func(*runtime.Context) error { panic("boom") }}
	w, repo, _ := setup(t, h, job)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := repo.status(job.ID); got != jobstatus.StatusDeadLetter {
		t.Fatalf("status: want=dead_letter got=%s", got)
	}
	if len(h.deadMsgs) != 1 {
		t.Fatalf("panic should reach dead-letter hook")
	}
}

func TestMissingHandlerDeadLetters(t *testing.T) {
	job := newJob(0)
	job.JobType = "unknown"
	w, repo, _ := setup(t, &handlerFunc{typ: "test", run: func(*runtime.Context) error { return nil }}, job)
	_, _ = w.RunOnce(context.Background())
	if got := repo.status(job.ID); got != jobstatus.StatusDeadLetter {
		t.Fatalf("status: want=dead_letter got=%s", got)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := runtime.DefaultRetryPolicy()
	cases := map[int]time.Duration{1: 30 * time.Second, 2: time.Minute, 3: 2 * time.Minute, 10: 30 * time.Minute}
	for attempt, want := range cases {
		if got := p.Delay(attempt); got != want {
			t.Fatalf("attempt %d: want=%v got=%v", attempt, want, got)
		}
	}
}
