package loan

import (
	"fmt"
	"time"

	"loan-schedule-engine/internal/domain/emi"
	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MaxRepayments = 600

type LoanStatus string

const (
	StatusActive LoanStatus = "ACTIVE"
	StatusClosed LoanStatus = "CLOSED"
)

type Loan struct {
	ID                    int64
	ExternalID            uuid.UUID
	AnnualInterestRate    decimal.Decimal
	DaysInYear            emi.DaysInYear
	DaysInMonth           emi.DaysInMonth
	LeapYearStrategy      emi.LeapYearStrategy
	Frequency             emi.Frequency
	RepaymentEvery        int
	NumberOfRepayments    int
	StartDate             civil.Date
	CurrencyDigits        int32
	InstallmentMultipleOf int64
	Status                LoanStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type CreateLoanParams struct {
	AnnualInterestRate    decimal.Decimal
	DaysInYear            emi.DaysInYear
	DaysInMonth           emi.DaysInMonth
	LeapYearStrategy      emi.LeapYearStrategy
	Frequency             emi.Frequency
	RepaymentEvery        int
	NumberOfRepayments    int
	StartDate             civil.Date
	CurrencyDigits        int32
	InstallmentMultipleOf int64
}

func NewLoan(p CreateLoanParams) (*Loan, error) {
	if p.NumberOfRepayments < 1 || p.NumberOfRepayments > MaxRepayments {
		return nil, apperrors.NewValidationError("numberOfRepayments", fmt.Sprintf("must be between 1 and %d", MaxRepayments))
	}
	if !p.StartDate.IsValid() {
		return nil, apperrors.NewValidationError("startDate", "must be a valid date")
	}
	if p.InstallmentMultipleOf < 0 {
		return nil, apperrors.NewValidationError("installmentMultipleOf", "must not be negative")
	}

	l := &Loan{
		ExternalID:            uuid.New(),
		AnnualInterestRate:    p.AnnualInterestRate,
		DaysInYear:            p.DaysInYear,
		DaysInMonth:           p.DaysInMonth,
		LeapYearStrategy:      p.LeapYearStrategy,
		Frequency:             p.Frequency,
		RepaymentEvery:        p.RepaymentEvery,
		NumberOfRepayments:    p.NumberOfRepayments,
		StartDate:             p.StartDate,
		CurrencyDigits:        p.CurrencyDigits,
		InstallmentMultipleOf: p.InstallmentMultipleOf,
		Status:                StatusActive,
	}
	if err := l.Terms().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	return l, nil
}

func (l *Loan) Terms() emi.Terms {
	return emi.Terms{
		AnnualRate: l.AnnualInterestRate,
		DayCount: emi.DayCount{
			DaysInYear:  l.DaysInYear,
			DaysInMonth: l.DaysInMonth,
			LeapYear:    l.LeapYearStrategy,
		},
		Frequency:      l.Frequency,
		RepaymentEvery: l.RepaymentEvery,
		CurrencyDigits: l.CurrencyDigits,
	}
}

// RepaymentPeriods generates contiguous period boundaries from StartDate.
// Monthly due dates stay anchored on the start day and are clamped to the
// end of shorter months.
func (l *Loan) RepaymentPeriods() ([]emi.PeriodBounds, error) {
	if l.RepaymentEvery < 1 {
		return nil, apperrors.InvalidScheduleInput("repayment interval %d must be at least 1", l.RepaymentEvery)
	}
	bounds := make([]emi.PeriodBounds, 0, l.NumberOfRepayments)
	from := l.StartDate
	for n := 1; n <= l.NumberOfRepayments; n++ {
		var due civil.Date
		switch l.Frequency {
		case emi.FrequencyDays:
			due = from.AddDays(l.RepaymentEvery)
		case emi.FrequencyWeeks:
			due = from.AddDays(7 * l.RepaymentEvery)
		case emi.FrequencyMonths:
			due = addMonths(l.StartDate, n*l.RepaymentEvery)
		default:
			return nil, apperrors.InvalidScheduleInput("unsupported repayment frequency %q", l.Frequency)
		}
		bounds = append(bounds, emi.PeriodBounds{FromDate: from, DueDate: due})
		from = due
	}
	return bounds, nil
}

// NewScheduleModel builds the empty schedule for the loan terms.
func (l *Loan) NewScheduleModel(mc mathctx.Context) (*emi.ScheduleModel, error) {
	bounds, err := l.RepaymentPeriods()
	if err != nil {
		return nil, err
	}
	return emi.NewScheduleModel(bounds, l.Terms(), l.InstallmentMultipleOf, mc)
}

func (l *Loan) IsClosed() bool {
	return l.Status == StatusClosed
}

func addMonths(d civil.Date, months int) civil.Date {
	first := time.Date(d.Year, d.Month+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	return civil.Date{Year: first.Year(), Month: first.Month(), Day: min(d.Day, lastDay)}
}
