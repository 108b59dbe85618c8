package loan

import (
	"time"

	"loan-schedule-engine/internal/domain/emi"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ScheduleSnapshot is the stored and cached projection of a recalculated
// schedule.
type ScheduleSnapshot struct {
	LoanID          int64            `json:"loanId"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	TotalTermDays   int              `json:"totalTermDays"`
	UnpaidPrincipal decimal.Decimal  `json:"unpaidPrincipal"`
	Periods         []PeriodSnapshot `json:"periods"`
}

type PeriodSnapshot struct {
	Number             int                      `json:"number"`
	FromDate           civil.Date               `json:"fromDate"`
	DueDate            civil.Date               `json:"dueDate"`
	EMI                decimal.Decimal          `json:"emi"`
	DuePrincipal       decimal.Decimal          `json:"duePrincipal"`
	DueInterest        decimal.Decimal          `json:"dueInterest"`
	PaidPrincipal      decimal.Decimal          `json:"paidPrincipal"`
	PaidInterest       decimal.Decimal          `json:"paidInterest"`
	OutstandingBalance decimal.Decimal          `json:"outstandingBalance"`
	InterestPeriods    []InterestPeriodSnapshot `json:"interestPeriods"`
}

type InterestPeriodSnapshot struct {
	FromDate              civil.Date      `json:"fromDate"`
	DueDate               civil.Date      `json:"dueDate"`
	BalanceChange         decimal.Decimal `json:"balanceChange"`
	OutstandingBalance    decimal.Decimal `json:"outstandingBalance"`
	RateFactor            decimal.Decimal `json:"rateFactor"`
	CalculatedDueInterest decimal.Decimal `json:"calculatedDueInterest"`
}

func NewScheduleSnapshot(loanID int64, m *emi.ScheduleModel, generatedAt time.Time) *ScheduleSnapshot {
	periods := m.Periods()
	s := &ScheduleSnapshot{
		LoanID:          loanID,
		GeneratedAt:     generatedAt,
		TotalTermDays:   m.TotalTermDays(),
		UnpaidPrincipal: m.UnpaidPrincipal(),
		Periods:         make([]PeriodSnapshot, 0, len(periods)),
	}
	for i, p := range periods {
		ps := PeriodSnapshot{
			Number:             i + 1,
			FromDate:           p.FromDate,
			DueDate:            p.DueDate,
			EMI:                p.EMI,
			DuePrincipal:       p.DuePrincipal,
			DueInterest:        p.DueInterest,
			PaidPrincipal:      p.PaidPrincipal,
			PaidInterest:       p.PaidInterest,
			OutstandingBalance: p.OutstandingBalance,
			InterestPeriods:    make([]InterestPeriodSnapshot, 0, len(p.InterestPeriods)),
		}
		for _, ip := range p.InterestPeriods {
			ps.InterestPeriods = append(ps.InterestPeriods, InterestPeriodSnapshot{
				FromDate:              ip.FromDate,
				DueDate:               ip.DueDate,
				BalanceChange:         ip.BalanceChange(),
				OutstandingBalance:    ip.OutstandingBalance,
				RateFactor:            ip.RateFactor,
				CalculatedDueInterest: ip.CalculatedDueInterest,
			})
		}
		s.Periods = append(s.Periods, ps)
	}
	return s
}

// NextOpenPeriod returns the first period with principal or interest still
// unpaid, or nil when everything is settled.
func (s *ScheduleSnapshot) NextOpenPeriod() *PeriodSnapshot {
	for i := range s.Periods {
		p := &s.Periods[i]
		if p.DuePrincipal.GreaterThan(p.PaidPrincipal) || p.DueInterest.GreaterThan(p.PaidInterest) {
			return p
		}
	}
	return nil
}

func (s *ScheduleSnapshot) TotalDuePrincipal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Periods {
		total = total.Add(p.DuePrincipal)
	}
	return total
}

// IsSettled reports whether principal was lent and all of it has been repaid.
func (s *ScheduleSnapshot) IsSettled() bool {
	if len(s.Periods) == 0 || !s.TotalDuePrincipal().IsPositive() {
		return false
	}
	return s.UnpaidPrincipal.IsZero() && s.Periods[len(s.Periods)-1].OutstandingBalance.IsZero()
}
