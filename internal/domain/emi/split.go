package emi

import (
	"slices"
	"sort"

	"loan-schedule-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// locate returns the index of the repayment period containing date. Periods
// contain [FromDate, DueDate); the final period also contains its DueDate.
func (m *ScheduleModel) locate(date civil.Date) (int, error) {
	if date.Before(m.StartDate()) || date.After(m.MaturityDate()) {
		return 0, apperrors.InvalidScheduleInput("date %s is outside the schedule %s to %s", date, m.StartDate(), m.MaturityDate())
	}
	i := sort.Search(len(m.periods), func(i int) bool { return m.periods[i].DueDate.After(date) })
	if i == len(m.periods) {
		return i - 1, nil
	}
	return i, nil
}

// splitAt makes date an interest period boundary and returns the position of
// the interest period starting at date. When date is the final due date the
// returned sub-index equals the number of interest periods and no interest
// period is created.
func (m *ScheduleModel) splitAt(date civil.Date) (period, sub int, err error) {
	period, err = m.locate(date)
	if err != nil {
		return 0, 0, err
	}
	p := &m.periods[period]
	if date == p.DueDate {
		return period, len(p.InterestPeriods), nil
	}
	sub = sort.Search(len(p.InterestPeriods), func(j int) bool { return p.InterestPeriods[j].DueDate.After(date) })
	if p.InterestPeriods[sub].FromDate == date {
		return period, sub, nil
	}
	tail := InterestPeriod{FromDate: date, DueDate: p.InterestPeriods[sub].DueDate}
	p.InterestPeriods[sub].DueDate = date
	p.InterestPeriods = slices.Insert(p.InterestPeriods, sub+1, tail)
	return period, sub + 1, nil
}

// SplitAt forces an interest period boundary at date without changing any
// balance and returns its position.
func (m *ScheduleModel) SplitAt(date civil.Date) (period, sub int, err error) {
	err = m.apply(func(w *ScheduleModel) error {
		var splitErr error
		period, sub, splitErr = w.splitAt(date)
		if splitErr != nil {
			return splitErr
		}
		if splitErr = w.refreshPeriodRateFactors(period); splitErr != nil {
			return splitErr
		}
		w.recalculateBalances()
		return nil
	})
	return period, sub, err
}

func (m *ScheduleModel) addBalanceChange(date civil.Date, disbursement, correction decimal.Decimal) (int, error) {
	pi, si, err := m.splitAt(date)
	if err != nil {
		return 0, err
	}
	p := &m.periods[pi]
	if si == len(p.InterestPeriods) {
		p.maturityDisbursement = p.maturityDisbursement.Add(disbursement)
		p.maturityCorrection = p.maturityCorrection.Add(correction)
		return pi, nil
	}
	ip := &p.InterestPeriods[si]
	ip.Disbursement = ip.Disbursement.Add(disbursement)
	ip.Correction = ip.Correction.Add(correction)
	return pi, nil
}
