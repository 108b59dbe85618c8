package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"loan-schedule-engine/internal/domain/emi"
	"loan-schedule-engine/internal/infrastructure/monitoring"
	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"cloud.google.com/go/civil"
)

type ScheduleService interface {
	CreateLoan(ctx context.Context, params CreateLoanParams) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	PostTransaction(ctx context.Context, loanID int64, tx Transaction) (*Transaction, error)

	ListTransactions(ctx context.Context, loanID int64) ([]Transaction, error)

	GetSchedule(ctx context.Context, loanID int64) (*ScheduleSnapshot, error)

	GetDueAmounts(ctx context.Context, loanID int64, periodDueDate, asOf civil.Date) (emi.DueAmounts, error)

	RecalculateSchedule(ctx context.Context, loanID int64) (*ScheduleSnapshot, error)
}

type scheduleServiceImpl struct {
	repo      Repository
	cache     ScheduleCache
	publisher EventPublisher
	mc        mathctx.Context
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduleService wires the service. cache and publisher may be nil.
func NewScheduleService(r Repository, cache ScheduleCache, publisher EventPublisher, mc mathctx.Context, logger *slog.Logger) ScheduleService {
	return &scheduleServiceImpl{
		repo:      r,
		cache:     cache,
		publisher: publisher,
		mc:        mc,
		logger:    logger.With("component", "ScheduleService"),
		now:       time.Now,
	}
}

func (s *scheduleServiceImpl) CreateLoan(ctx context.Context, params CreateLoanParams) (*Loan, error) {
	s.logger.InfoContext(ctx, "Creating new loan", "frequency", params.Frequency, "repayments", params.NumberOfRepayments)
	l, err := NewLoan(params)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected loan terms", "error", err)
		return nil, err
	}

	if _, err := l.NewScheduleModel(s.mc); err != nil {
		s.logger.WarnContext(ctx, "Failed to build schedule for loan terms", "error", err)
		return nil, fmt.Errorf("failed to build schedule: %w", err)
	}

	created, err := s.repo.CreateLoan(ctx, l)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save loan", "error", err)
		return nil, fmt.Errorf("failed to save loan: %w", err)
	}
	s.logger.InfoContext(ctx, "Loan created successfully", "loanID", created.ID, "externalID", created.ExternalID)
	return created, nil
}

func (s *scheduleServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}
	return l, nil
}

func (s *scheduleServiceImpl) PostTransaction(ctx context.Context, loanID int64, tx Transaction) (*Transaction, error) {
	tx.LoanID = loanID
	logCtx := s.logger.With("loanID", loanID, "type", tx.Type, "transactionDate", tx.TransactionDate)
	logCtx.InfoContext(ctx, "Posting transaction")

	if err := tx.Validate(); err != nil {
		logCtx.WarnContext(ctx, "Rejected transaction", "error", err)
		return nil, err
	}

	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.IsClosed() {
		logCtx.WarnContext(ctx, "Transaction posted to a closed loan")
		return nil, fmt.Errorf("%w: loan %d", apperrors.ErrLoanClosed, loanID)
	}

	txs, err := s.repo.ListTransactions(ctx, loanID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions for loan %d: %w", loanID, err)
	}

	// The pending transaction replays after every stored one on its date,
	// which is where its database ID will put it.
	pending := tx
	pending.ID = math.MaxInt64
	model, err := BuildScheduleModel(l, append(txs, pending), s.mc)
	monitoring.RecordEngineOperation(string(tx.Type), err)
	if err != nil {
		logCtx.WarnContext(ctx, "Transaction cannot be applied to the schedule", "error", err)
		return nil, err
	}

	saved, err := s.repo.AddTransaction(ctx, &tx)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to save transaction", "error", err)
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	snapshot := NewScheduleSnapshot(loanID, model, s.now())
	if err := s.commitSchedule(ctx, l, snapshot); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, loanID); err != nil {
			logCtx.WarnContext(ctx, "Failed to invalidate cached schedule", "error", err)
		}
	}

	logCtx.InfoContext(ctx, "Transaction posted", "transactionID", saved.ID)
	return saved, nil
}

func (s *scheduleServiceImpl) ListTransactions(ctx context.Context, loanID int64) ([]Transaction, error) {
	if _, err := s.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, loanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list transactions", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to list transactions for loan %d: %w", loanID, err)
	}
	SortTransactions(txs)
	return txs, nil
}

func (s *scheduleServiceImpl) GetSchedule(ctx context.Context, loanID int64) (*ScheduleSnapshot, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, loanID)
		if err == nil {
			s.logger.DebugContext(ctx, "Schedule served from cache", "loanID", loanID)
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "Failed to read cached schedule", "loanID", loanID, "error", err)
		}
	}

	_, model, err := s.replay(ctx, loanID)
	if err != nil {
		return nil, err
	}
	snapshot := NewScheduleSnapshot(loanID, model, s.now())
	s.storeInCache(ctx, snapshot)
	return snapshot, nil
}

func (s *scheduleServiceImpl) GetDueAmounts(ctx context.Context, loanID int64, periodDueDate, asOf civil.Date) (emi.DueAmounts, error) {
	_, model, err := s.replay(ctx, loanID)
	if err != nil {
		return emi.DueAmounts{}, err
	}
	due, err := model.DueAmounts(periodDueDate, asOf)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to project due amounts", "loanID", loanID, "periodDueDate", periodDueDate, "asOf", asOf, "error", err)
		return emi.DueAmounts{}, err
	}
	return due, nil
}

func (s *scheduleServiceImpl) RecalculateSchedule(ctx context.Context, loanID int64) (snapshot *ScheduleSnapshot, err error) {
	start := time.Now()
	defer func() {
		monitoring.RecordRecalculation(err, time.Since(start))
	}()

	l, model, err := s.replay(ctx, loanID)
	if err != nil {
		return nil, err
	}

	snapshot = NewScheduleSnapshot(loanID, model, s.now())
	if err := s.commitSchedule(ctx, l, snapshot); err != nil {
		return nil, err
	}
	s.storeInCache(ctx, snapshot)

	s.logger.InfoContext(ctx, "Schedule recalculated", "loanID", loanID, "unpaidPrincipal", snapshot.UnpaidPrincipal)
	return snapshot, nil
}

func (s *scheduleServiceImpl) replay(ctx context.Context, loanID int64) (*Loan, *emi.ScheduleModel, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, loanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list transactions", "loanID", loanID, "error", err)
		return nil, nil, fmt.Errorf("failed to list transactions for loan %d: %w", loanID, err)
	}
	model, err := BuildScheduleModel(l, txs, s.mc)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to replay schedule", "loanID", loanID, "error", err)
		return nil, nil, err
	}
	return l, model, nil
}

// commitSchedule persists the snapshot, closes a settled loan and announces
// the new schedule.
func (s *scheduleServiceImpl) commitSchedule(ctx context.Context, l *Loan, snapshot *ScheduleSnapshot) error {
	if err := s.repo.SaveScheduleSnapshot(ctx, snapshot); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save schedule", "loanID", l.ID, "error", err)
		return fmt.Errorf("failed to save schedule for loan %d: %w", l.ID, err)
	}

	if !l.IsClosed() && snapshot.IsSettled() {
		if err := s.repo.UpdateLoanStatus(ctx, l.ID, StatusClosed); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close settled loan", "loanID", l.ID, "error", err)
			return fmt.Errorf("failed to close loan %d: %w", l.ID, err)
		}
		l.Status = StatusClosed
		s.logger.InfoContext(ctx, "Loan settled and closed", "loanID", l.ID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishScheduleRecalculated(ctx, NewScheduleRecalculatedEvent(snapshot)); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish schedule event", "loanID", l.ID, "error", err)
		}
	}
	return nil
}

func (s *scheduleServiceImpl) storeInCache(ctx context.Context, snapshot *ScheduleSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, snapshot); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache schedule", "loanID", snapshot.LoanID, "error", err)
	}
}
