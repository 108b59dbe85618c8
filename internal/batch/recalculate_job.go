package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/pkg/apperrors"
)

const defaultWorkers = 4

type ActiveLoanLister interface {
	ListActiveLoanIDs(ctx context.Context) ([]int64, error)
}

type ScheduleRecalculator interface {
	RecalculateSchedule(ctx context.Context, loanID int64) (*loan.ScheduleSnapshot, error)
}

// RecalculateSchedulesJob rebuilds and stores the schedule of every active
// loan. Loans whose final balance reaches zero are closed by the service.
type RecalculateSchedulesJob struct {
	loans        ActiveLoanLister
	recalculator ScheduleRecalculator
	workers      int
	logger       *slog.Logger
}

func NewRecalculateSchedulesJob(
	loans ActiveLoanLister,
	recalculator ScheduleRecalculator,
	workers int,
	logger *slog.Logger,
) *RecalculateSchedulesJob {
	if loans == nil || recalculator == nil || logger == nil {
		panic("RecalculateSchedulesJob dependencies cannot be nil")
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &RecalculateSchedulesJob{
		loans:        loans,
		recalculator: recalculator,
		workers:      workers,
		logger:       logger.With("job", "RecalculateSchedules"),
	}
}

type runStats struct {
	processed atomic.Int32
	closed    atomic.Int32
	skipped   atomic.Int32
	failed    atomic.Int32
}

func (j *RecalculateSchedulesJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting schedule recalculation job.")

	activeLoanIDs, err := j.loans.ListActiveLoanIDs(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get active loan IDs, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to get active loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched active loan IDs.", slog.Int("count", len(activeLoanIDs)))

	if len(activeLoanIDs) == 0 {
		j.logger.InfoContext(ctx, "No active loans found to process.", slog.Duration("duration", time.Since(startTime)))
		return nil
	}

	jobs := make(chan int64)
	var stats runStats
	var wg sync.WaitGroup
	for i := 0; i < min(j.workers, len(activeLoanIDs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for loanID := range jobs {
				j.recalculate(ctx, loanID, &stats)
			}
		}()
	}

dispatch:
	for _, loanID := range activeLoanIDs {
		select {
		case <-ctx.Done():
			j.logger.WarnContext(ctx, "Job context done before all loans were dispatched.", slog.Any("error", ctx.Err()))
			break dispatch
		case jobs <- loanID:
		}
	}
	close(jobs)
	wg.Wait()

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("total_active_loans", len(activeLoanIDs)),
		slog.Int("loans_processed", int(stats.processed.Load())),
		slog.Int("loans_closed", int(stats.closed.Load())),
		slog.Int("loans_skipped", int(stats.skipped.Load())),
		slog.Int("errors_encountered", int(stats.failed.Load())),
	)

	if failed := stats.failed.Load(); failed > 0 {
		summaryLog.WarnContext(ctx, "Schedule recalculation job finished with errors.")
		return fmt.Errorf("job completed with %d errors", failed)
	}
	if err := ctx.Err(); err != nil {
		summaryLog.WarnContext(ctx, "Schedule recalculation job interrupted.")
		return fmt.Errorf("job interrupted: %w", err)
	}
	summaryLog.InfoContext(ctx, "Schedule recalculation job finished successfully.")
	return nil
}

func (j *RecalculateSchedulesJob) recalculate(ctx context.Context, loanID int64, stats *runStats) {
	logCtx := j.logger.With(slog.Int64("loanID", loanID))

	snapshot, err := j.recalculator.RecalculateSchedule(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Loan not found during recalculation (potentially deleted recently?)", slog.Any("error", err))
			stats.skipped.Add(1)
			return
		}
		logCtx.ErrorContext(ctx, "Failed to recalculate schedule", slog.Any("error", err))
		stats.failed.Add(1)
		return
	}

	stats.processed.Add(1)
	if snapshot.IsSettled() {
		stats.closed.Add(1)
		logCtx.InfoContext(ctx, "Loan settled and closed.")
		return
	}
	logCtx.DebugContext(ctx, "Schedule recalculated.", slog.Int("periods", len(snapshot.Periods)))
}
