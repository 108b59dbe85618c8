package loan

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"loan-schedule-engine/internal/domain/emi"
	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxDisbursement      TransactionType = "DISBURSEMENT"
	TxRateChange        TransactionType = "RATE_CHANGE"
	TxPrincipalPayment  TransactionType = "PRINCIPAL_PAYMENT"
	TxInterestPayment   TransactionType = "INTEREST_PAYMENT"
	TxBalanceCorrection TransactionType = "BALANCE_CORRECTION"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxDisbursement, TxRateChange, TxPrincipalPayment, TxInterestPayment, TxBalanceCorrection:
		return true
	}
	return false
}

// Transaction is a posted event that changes the schedule. PeriodDueDate is
// only set for payments, Rate only for rate changes.
type Transaction struct {
	ID              int64
	LoanID          int64
	Type            TransactionType
	TransactionDate civil.Date
	PeriodDueDate   civil.Date
	Amount          decimal.Decimal
	Rate            decimal.Decimal
	CreatedAt       time.Time
}

func (t Transaction) isPayment() bool {
	return t.Type == TxPrincipalPayment || t.Type == TxInterestPayment
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return apperrors.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", t.Type))
	}
	if !t.TransactionDate.IsValid() {
		return apperrors.NewValidationError("transactionDate", "must be a valid date")
	}
	if t.isPayment() && !t.PeriodDueDate.IsValid() {
		return apperrors.NewValidationError("periodDueDate", "is required for payments")
	}
	if !t.isPayment() && t.PeriodDueDate != (civil.Date{}) {
		return apperrors.NewValidationError("periodDueDate", "is only allowed for payments")
	}

	switch t.Type {
	case TxRateChange:
		if t.Rate.IsNegative() {
			return apperrors.NewValidationError("rate", "must not be negative")
		}
		if !t.Amount.IsZero() {
			return apperrors.NewValidationError("amount", "is not allowed for rate changes")
		}
	case TxBalanceCorrection:
		if !t.Rate.IsZero() {
			return apperrors.NewValidationError("rate", "is only allowed for rate changes")
		}
	default:
		if t.Amount.IsNegative() {
			return apperrors.NewValidationError("amount", "must not be negative")
		}
		if !t.Rate.IsZero() {
			return apperrors.NewValidationError("rate", "is only allowed for rate changes")
		}
	}
	return nil
}

// ApplyTo dispatches the transaction to the matching schedule operation.
func (t Transaction) ApplyTo(m *emi.ScheduleModel) error {
	switch t.Type {
	case TxDisbursement:
		return m.AddDisbursement(t.TransactionDate, t.Amount)
	case TxRateChange:
		return m.ChangeInterestRate(t.TransactionDate, t.Rate)
	case TxPrincipalPayment:
		return m.PayPrincipal(t.PeriodDueDate, t.TransactionDate, t.Amount)
	case TxInterestPayment:
		return m.PayInterest(t.PeriodDueDate, t.TransactionDate, t.Amount)
	case TxBalanceCorrection:
		return m.AddBalanceCorrection(t.TransactionDate, t.Amount)
	}
	return apperrors.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", t.Type))
}

// SortTransactions orders transactions for replay: by transaction date, then
// by posting order.
func SortTransactions(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		switch {
		case a.TransactionDate.Before(b.TransactionDate):
			return -1
		case a.TransactionDate.After(b.TransactionDate):
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// BuildScheduleModel generates the loan schedule and replays txs on it.
func BuildScheduleModel(l *Loan, txs []Transaction, mc mathctx.Context) (*emi.ScheduleModel, error) {
	m, err := l.NewScheduleModel(mc)
	if err != nil {
		return nil, err
	}
	ordered := slices.Clone(txs)
	SortTransactions(ordered)
	for _, tx := range ordered {
		if err := tx.ApplyTo(m); err != nil {
			return nil, fmt.Errorf("replaying %s transaction %d dated %s: %w", tx.Type, tx.ID, tx.TransactionDate, err)
		}
	}
	return m, nil
}
