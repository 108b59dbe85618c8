package loan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	CreateLoan(ctx context.Context, loan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	ListActiveLoanIDs(ctx context.Context) ([]int64, error)

	UpdateLoanStatus(ctx context.Context, loanID int64, status LoanStatus) error

	AddTransaction(ctx context.Context, tx *Transaction) (*Transaction, error)

	ListTransactions(ctx context.Context, loanID int64) ([]Transaction, error)

	SaveScheduleSnapshot(ctx context.Context, snapshot *ScheduleSnapshot) error
}

type ScheduleCache interface {
	Get(ctx context.Context, loanID int64) (*ScheduleSnapshot, error)

	Set(ctx context.Context, snapshot *ScheduleSnapshot) error

	Invalidate(ctx context.Context, loanID int64) error
}

type EventPublisher interface {
	PublishScheduleRecalculated(ctx context.Context, event ScheduleRecalculatedEvent) error
}

type ScheduleRecalculatedEvent struct {
	EventID            uuid.UUID       `json:"eventId"`
	LoanID             int64           `json:"loanId"`
	EMI                decimal.Decimal `json:"emi"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
	PeriodCount        int             `json:"periodCount"`
	OccurredAt         time.Time       `json:"occurredAt"`
}

func NewScheduleRecalculatedEvent(snapshot *ScheduleSnapshot) ScheduleRecalculatedEvent {
	e := ScheduleRecalculatedEvent{
		EventID:            uuid.New(),
		LoanID:             snapshot.LoanID,
		EMI:                decimal.Zero,
		OutstandingBalance: snapshot.UnpaidPrincipal,
		PeriodCount:        len(snapshot.Periods),
		OccurredAt:         snapshot.GeneratedAt,
	}
	if next := snapshot.NextOpenPeriod(); next != nil {
		e.EMI = next.EMI
	}
	return e
}
