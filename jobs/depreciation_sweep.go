package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/fixedassets"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const sweepLockTTL = 30 * time.Minute

// DepreciationRunner runs one tenant month.
type DepreciationRunner interface {
	ActiveTenants(ctx context.Context) ([]int64, error)
	RunMonth(ctx context.Context, tenantID int64, month time.Time, actorID int64) (fixedassets.RunResult, error)
}

// SweepLocker hands out the cross-worker sweep lock.
type SweepLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// DepreciationSweepJob depreciates every tenant with active assets for one month.
type DepreciationSweepJob struct {
	Runner  DepreciationRunner
	Locker  SweepLocker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDepreciationSweepJob initialises the sweep handler.
func NewDepreciationSweepJob(runner DepreciationRunner, locker SweepLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepreciationSweepJob {
	return &DepreciationSweepJob{
		Runner:  runner,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SweepResult counts tenant outcomes of one sweep.
type SweepResult struct {
	Posted  int
	Skipped int
	Failed  int
}

// Handle executes the sweep. Months already posted or with nothing to depreciate
// are skipped. Failures that a rerun may fix (locked period, missing mapping,
// infrastructure) make the task retry; the rest end it without retry.
func (j *DepreciationSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Runner == nil {
		return errors.New("depreciation sweep: handler not configured")
	}
	var payload DepreciationSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("depreciation sweep: payload: %v: %w", err, asynq.SkipRetry)
	}
	month, err := j.month(payload.Month)
	if err != nil {
		return fmt.Errorf("depreciation sweep: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskDepreciationSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("month", month.Format("2006-01")))
	if j.Locker != nil {
		lock, err := j.Locker.Acquire(ctx, shared.DepreciationSweepLockKey(month), sweepLockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			logger.Info("depreciation sweep already running elsewhere")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release sweep lock", slog.Any("error", err))
			}
		}()
	}

	result, err := j.Sweep(ctx, month)
	logger.Info("depreciation sweep finished",
		slog.Int("posted", result.Posted),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return err
}

// Sweep runs the month for every active tenant and reports the outcome.
func (j *DepreciationSweepJob) Sweep(ctx context.Context, month time.Time) (SweepResult, error) {
	var result SweepResult
	tenants, err := j.Runner.ActiveTenants(ctx)
	if err != nil {
		return result, err
	}
	var retryable, permanent []error
	for _, tenantID := range tenants {
		logger := j.logger().With(slog.Int64("tenant_id", tenantID), slog.String("month", month.Format("2006-01")))
		run, err := j.Runner.RunMonth(ctx, tenantID, month, 0)
		var postErr *fixedassets.LedgerPostError
		switch {
		case err == nil:
			result.Posted++
			logger.Info("depreciation posted", slog.Int64("run_id", run.RunID), slog.String("total", run.Total.String()))
		case errors.Is(err, shared.ErrDuplicateRun), errors.Is(err, shared.ErrNothingToDepreciate):
			result.Skipped++
			logger.Info("depreciation skipped", slog.String("reason", err.Error()))
		case errors.As(err, &postErr) && !postErr.Retryable && !db.IsRetryable(err):
			result.Failed++
			permanent = append(permanent, fmt.Errorf("tenant %d: %w", tenantID, err))
			logger.Error("depreciation posting failed", slog.Int64("run_id", postErr.RunID), slog.Any("error", err))
		case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidState):
			result.Failed++
			permanent = append(permanent, fmt.Errorf("tenant %d: %w", tenantID, err))
			logger.Error("depreciation failed", slog.Any("error", err))
		default:
			result.Failed++
			retryable = append(retryable, fmt.Errorf("tenant %d: %w", tenantID, err))
			logger.Warn("depreciation failed, will retry", slog.Any("error", err))
		}
	}
	switch {
	case len(retryable) > 0:
		return result, errors.Join(retryable...)
	case len(permanent) > 0:
		return result, fmt.Errorf("%w: %w", errors.Join(permanent...), asynq.SkipRetry)
	}
	return result, nil
}

func (j *DepreciationSweepJob) month(raw string) (time.Time, error) {
	if raw == "" {
		return fixedassets.FirstOfMonth(j.now()).AddDate(0, -1, 0), nil
	}
	month, err := time.Parse("2006-01", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return month, nil
}

func (j *DepreciationSweepJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}

func (j *DepreciationSweepJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
