package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const defaultIntegrityDays = 35

// IntegrityChecker finds unbalanced journal entries.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, since time.Time) ([]journals.Imbalance, error)
}

// GLIntegrityJob scans recent journal entries and counts imbalances.
type GLIntegrityJob struct {
	Checker IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob initialises the integrity handler.
func NewGLIntegrityJob(checker IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Checker: checker, Logger: logger, Metrics: metrics, clock: func() time.Time { return time.Now().UTC() }}
}

// Handle executes the scan. Imbalances are logged by the checker and exported as
// a metric; they do not fail the task.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Checker == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("gl integrity: payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.SinceDays <= 0 {
		payload.SinceDays = defaultIntegrityDays
	}

	tracker := j.Metrics.Track(TaskGLIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	found, err := j.Run(ctx, j.clock().AddDate(0, 0, -payload.SinceDays))
	if err != nil {
		return err
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("gl integrity check executed", slog.String("job", TaskGLIntegrity), slog.Int("since_days", payload.SinceDays), slog.Int("imbalances", len(found)))
	return nil
}

// Run checks entries dated on or after since.
func (j *GLIntegrityJob) Run(ctx context.Context, since time.Time) ([]journals.Imbalance, error) {
	found, err := j.Checker.CheckIntegrity(ctx, since)
	if err != nil {
		return nil, err
	}
	j.Metrics.AddImbalances(len(found))
	return found, nil
}
