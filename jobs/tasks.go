package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationSweep runs monthly depreciation for every tenant.
	TaskDepreciationSweep = "fixedassets:depreciation_sweep"
	// TaskGLIntegrity scans recent journal entries for imbalances.
	TaskGLIntegrity = "ledger:gl_integrity"
)

// DepreciationSweepPayload selects the month to depreciate, formatted 2006-01.
// An empty month means the month before the job runs.
type DepreciationSweepPayload struct {
	Month string `json:"month,omitempty"`
}

// GLIntegrityPayload bounds how far back the integrity scan looks.
type GLIntegrityPayload struct {
	SinceDays int `json:"since_days"`
}

// NewDepreciationSweepTask builds a sweep task. A task for an explicit month carries
// a deterministic id so enqueueing the same month twice is rejected by the queue.
func NewDepreciationSweepTask(month string) (*asynq.Task, error) {
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(5)}
	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, fmt.Errorf("jobs: month must be YYYY-MM: %w", err)
		}
		opts = append(opts, asynq.TaskID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(TaskDepreciationSweep+":"+month)).String()))
	}
	body, err := json.Marshal(DepreciationSweepPayload{Month: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationSweep, body, opts...), nil
}

// NewGLIntegrityTask builds an integrity scan task.
func NewGLIntegrityTask(sinceDays int) (*asynq.Task, error) {
	body, err := json.Marshal(GLIntegrityPayload{SinceDays: sinceDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
