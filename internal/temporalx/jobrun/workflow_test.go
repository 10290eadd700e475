package jobrun

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	jobstatus "github.com/yungbote/agora-backend/internal/domain/jobs"
)

func stubExecute(context.Context, string) (ExecuteResult, error) { return ExecuteResult{}, nil }

func newEnv() *testsuite.TestWorkflowEnvironment {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(stubExecute, activity.RegisterOptions{Name: ActivityExecute})
	return env
}

func TestWorkflowWaitsForRetryThenSucceeds(t *testing.T) {
	env := newEnv()
	id := uuid.NewString()
	runAfter := env.Now().Add(2 * time.Minute)
	env.OnActivity(ActivityExecute, mock.Anything, id).
		Return(ExecuteResult{JobID: id, Claimed: true, Status: jobstatus.StatusFailed, Stage: "extract", RunAfter: &runAfter}, nil).Once()
	env.OnActivity(ActivityExecute, mock.Anything, id).
		Return(ExecuteResult{JobID: id, Claimed: true, Status: jobstatus.StatusSucceeded, Stage: "done"}, nil).Once()

	env.ExecuteWorkflow(Workflow, id)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestWorkflowFailsOnDeadLetter(t *testing.T) {
	env := newEnv()
	id := uuid.NewString()
	env.OnActivity(ActivityExecute, mock.Anything, id).
		Return(ExecuteResult{JobID: id, Claimed: true, Status: jobstatus.StatusDeadLetter, Stage: "extract"}, nil).Once()

	env.ExecuteWorkflow(Workflow, id)

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestWorkflowRejectsEmptyID(t *testing.T) {
	env := newEnv()
	env.ExecuteWorkflow(Workflow, "  ")
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
