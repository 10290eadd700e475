package jobrun

import "time"

const (
	WorkflowName    = "job_run"
	ActivityExecute = "job_run_execute"
)

// ExecuteResult is the job state after one execute activity.
type ExecuteResult struct {
	JobID string `json:"job_id"`
	// Claimed is false when the job was not due or another worker held it.
	Claimed  bool       `json:"claimed"`
	Status   string     `json:"status"`
	Stage    string     `json:"stage,omitempty"`
	RunAfter *time.Time `json:"run_after,omitempty"`
}
