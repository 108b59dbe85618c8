package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-schedule-engine/internal/domain/emi"
	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/infrastructure/monitoring"
	"loan-schedule-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var _ loan.Repository = (*LoanRepository)(nil)

var errMsgFormat = "%w: %w"

const (
	insertLoanSQL = `
        INSERT INTO loans (external_id, annual_interest_rate, days_in_year, days_in_month, leap_year_strategy,
            frequency, repayment_every, number_of_repayments, start_date, currency_digits, installment_multiple_of,
            status, created_at, updated_at)
        VALUES ($1::uuid, $2::numeric, $3, $4, $5, $6, $7, $8, $9::date, $10, $11, $12, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	selectLoanSQL = `
        SELECT id, external_id::text, annual_interest_rate::text, days_in_year, days_in_month, leap_year_strategy,
            frequency, repayment_every, number_of_repayments, start_date::text, currency_digits,
            installment_multiple_of, status, created_at, updated_at
        FROM loans
        WHERE id = $1`

	selectActiveLoanIDsSQL = `SELECT id FROM loans WHERE status = $1 ORDER BY id`

	updateLoanStatusSQL = `UPDATE loans SET status = $2, updated_at = NOW() WHERE id = $1`

	insertTransactionSQL = `
        INSERT INTO loan_transactions (loan_id, type, transaction_date, period_due_date, amount, rate, created_at)
        VALUES ($1, $2, $3::date, NULLIF($4, '')::date, $5::numeric, $6::numeric, NOW())
        RETURNING id, created_at`

	selectTransactionsSQL = `
        SELECT id, loan_id, type, transaction_date::text, COALESCE(period_due_date::text, ''), amount::text,
            rate::text, created_at
        FROM loan_transactions
        WHERE loan_id = $1
        ORDER BY transaction_date, id`

	deleteSchedulePeriodsSQL = `DELETE FROM loan_schedule_periods WHERE loan_id = $1`

	insertSchedulePeriodSQL = `
        INSERT INTO loan_schedule_periods (loan_id, period_number, from_date, due_date, emi, due_principal,
            due_interest, paid_principal, paid_interest, outstanding_balance, interest_periods)
        VALUES ($1, $2, $3::date, $4::date, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric,
            $10::numeric, $11::jsonb)`

	upsertScheduleSQL = `
        INSERT INTO loan_schedules (loan_id, generated_at, total_term_days, unpaid_principal, period_count)
        VALUES ($1, $2, $3, $4::numeric, $5)
        ON CONFLICT (loan_id) DO UPDATE SET
            generated_at = EXCLUDED.generated_at,
            total_term_days = EXCLUDED.total_term_days,
            unpaid_principal = EXCLUDED.unpaid_principal,
            period_count = EXCLUDED.period_count`
)

// LoanRepository stores loans, their transactions and the latest schedule
// snapshot. Decimals and dates cross the driver as text.
type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) CreateLoan(ctx context.Context, l *loan.Loan) (created *loan.Loan, err error) {
	defer observe("CreateLoan", time.Now(), &err)

	c := *l
	err = r.db.QueryRow(ctx, insertLoanSQL,
		l.ExternalID.String(), l.AnnualInterestRate.String(), l.DaysInYear.String(), l.DaysInMonth.String(),
		l.LeapYearStrategy.String(), string(l.Frequency), l.RepaymentEvery, l.NumberOfRepayments,
		l.StartDate.String(), l.CurrencyDigits, l.InstallmentMultipleOf, string(l.Status),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", c.ID)
	return &c, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (_ *loan.Loan, err error) {
	defer observe("GetLoanByID", time.Now(), &err)

	var (
		l                                                  loan.Loan
		externalID, rate, diy, dim, leap, freq, start, sts string
	)
	err = r.db.QueryRow(ctx, selectLoanSQL, loanID).Scan(
		&l.ID, &externalID, &rate, &diy, &dim, &leap, &freq, &l.RepaymentEvery, &l.NumberOfRepayments,
		&start, &l.CurrencyDigits, &l.InstallmentMultipleOf, &sts, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	l.Frequency = emi.Frequency(freq)
	l.Status = loan.LoanStatus(sts)
	if l.ExternalID, err = uuid.Parse(externalID); err != nil {
		return nil, corrupt("loans.external_id", loanID, err)
	}
	if l.AnnualInterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, corrupt("loans.annual_interest_rate", loanID, err)
	}
	if l.DaysInYear, err = emi.ParseDaysInYear(diy); err != nil {
		return nil, corrupt("loans.days_in_year", loanID, err)
	}
	if l.DaysInMonth, err = emi.ParseDaysInMonth(dim); err != nil {
		return nil, corrupt("loans.days_in_month", loanID, err)
	}
	if l.LeapYearStrategy, err = emi.ParseLeapYearStrategy(leap); err != nil {
		return nil, corrupt("loans.leap_year_strategy", loanID, err)
	}
	if l.StartDate, err = civil.ParseDate(start); err != nil {
		return nil, corrupt("loans.start_date", loanID, err)
	}
	return &l, nil
}

func (r *LoanRepository) ListActiveLoanIDs(ctx context.Context) (_ []int64, err error) {
	defer observe("ListActiveLoanIDs", time.Now(), &err)
	logCtx := r.logger.With(slog.String("operation", "ListActiveLoanIDs"))

	rows, err := r.db.Query(ctx, selectActiveLoanIDsSQL, string(loan.StatusActive))
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query active loan IDs", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query active loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loanIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan active loan ID row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning active loan ID: %w", apperrors.ErrDatabase, err)
		}
		loanIDs = append(loanIDs, id)
	}
	if err = rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating active loan ID rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating active loan IDs: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Finished getting active loan IDs", slog.Int("count", len(loanIDs)))
	return loanIDs, nil
}

func (r *LoanRepository) UpdateLoanStatus(ctx context.Context, loanID int64, status loan.LoanStatus) (err error) {
	defer observe("UpdateLoanStatus", time.Now(), &err)

	tag, err := r.db.Exec(ctx, updateLoanStatusSQL, loanID, string(status))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan status", "loan_id", loanID, "error", err)
		return translateDBError(err, r.logger)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, loanID)
	}
	r.logger.InfoContext(ctx, "Loan status updated", "loan_id", loanID, "status", status)
	return nil
}

func (r *LoanRepository) AddTransaction(ctx context.Context, tx *loan.Transaction) (_ *loan.Transaction, err error) {
	defer observe("AddTransaction", time.Now(), &err)

	saved := *tx
	err = r.db.QueryRow(ctx, insertTransactionSQL,
		tx.LoanID, string(tx.Type), tx.TransactionDate.String(), dateOrEmpty(tx.PeriodDueDate),
		tx.Amount.String(), tx.Rate.String(),
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert transaction", "loan_id", tx.LoanID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return &saved, nil
}

func (r *LoanRepository) ListTransactions(ctx context.Context, loanID int64) (_ []loan.Transaction, err error) {
	defer observe("ListTransactions", time.Now(), &err)

	rows, err := r.db.Query(ctx, selectTransactionsSQL, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query transactions", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to query transactions: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	txs := make([]loan.Transaction, 0)
	for rows.Next() {
		var (
			tx                                 loan.Transaction
			typ, txDate, dueDate, amount, rate string
		)
		if err = rows.Scan(&tx.ID, &tx.LoanID, &typ, &txDate, &dueDate, &amount, &rate, &tx.CreatedAt); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan transaction row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf("%w: failed scanning transaction: %w", apperrors.ErrDatabase, err)
		}
		tx.Type = loan.TransactionType(typ)
		if tx.TransactionDate, err = civil.ParseDate(txDate); err != nil {
			return nil, corrupt("loan_transactions.transaction_date", tx.ID, err)
		}
		if dueDate != "" {
			if tx.PeriodDueDate, err = civil.ParseDate(dueDate); err != nil {
				return nil, corrupt("loan_transactions.period_due_date", tx.ID, err)
			}
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, corrupt("loan_transactions.amount", tx.ID, err)
		}
		if tx.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, corrupt("loan_transactions.rate", tx.ID, err)
		}
		txs = append(txs, tx)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating transaction rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf("%w: error iterating transactions: %w", apperrors.ErrDatabase, err)
	}
	return txs, nil
}

// SaveScheduleSnapshot replaces the stored schedule of the loan in one
// database transaction.
func (r *LoanRepository) SaveScheduleSnapshot(ctx context.Context, s *loan.ScheduleSnapshot) (err error) {
	defer observe("SaveScheduleSnapshot", time.Now(), &err)
	logCtx := r.logger.With("loan_id", s.LoanID)

	batch := &pgx.Batch{}
	for _, p := range s.Periods {
		interestPeriods, err := json.Marshal(p.InterestPeriods)
		if err != nil {
			return fmt.Errorf("failed to encode interest periods of period %d: %w", p.Number, err)
		}
		batch.Queue(insertSchedulePeriodSQL,
			s.LoanID, p.Number, p.FromDate.String(), p.DueDate.String(), p.EMI.String(), p.DuePrincipal.String(),
			p.DueInterest.String(), p.PaidPrincipal.String(), p.PaidInterest.String(), p.OutstandingBalance.String(),
			string(interestPeriods),
		)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logCtx.ErrorContext(ctx, "Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	if _, err = tx.Exec(ctx, deleteSchedulePeriodsSQL, s.LoanID); err != nil {
		logCtx.ErrorContext(ctx, "Failed to delete previous schedule periods", "error", err)
		return fmt.Errorf("%w: failed deleting schedule periods: %w", apperrors.ErrDatabase, err)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range s.Periods {
		if _, err = results.Exec(); err != nil {
			results.Close()
			logCtx.ErrorContext(ctx, "Failed executing schedule batch insert", "error", err, "period_index", i)
			return fmt.Errorf("%w: failed inserting schedule period %d: %w", apperrors.ErrDatabase, i+1, err)
		}
	}
	if err = results.Close(); err != nil {
		logCtx.ErrorContext(ctx, "Failed closing schedule batch results", "error", err)
		return fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}

	if _, err = tx.Exec(ctx, upsertScheduleSQL,
		s.LoanID, s.GeneratedAt, s.TotalTermDays, s.UnpaidPrincipal.String(), len(s.Periods),
	); err != nil {
		logCtx.ErrorContext(ctx, "Failed to upsert schedule header", "error", err)
		return fmt.Errorf("%w: failed upserting schedule: %w", apperrors.ErrDatabase, err)
	}

	if err = tx.Commit(ctx); err != nil {
		logCtx.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	logCtx.DebugContext(ctx, "Schedule snapshot saved", "periods", len(s.Periods))
	return nil
}

func observe(queryName string, start time.Time, err *error) {
	monitoring.RecordDBQuery(queryName, *err, time.Since(start))
}

func dateOrEmpty(d civil.Date) string {
	if d == (civil.Date{}) {
		return ""
	}
	return d.String()
}

func corrupt(column string, id int64, err error) error {
	return fmt.Errorf("%w: unreadable %s for row %d: %w", apperrors.ErrDatabase, column, id, err)
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		case "23503":
			contextLogger.Warn("Database foreign key violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.ConstraintName)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
