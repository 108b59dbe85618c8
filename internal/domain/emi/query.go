package emi

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type DueAmounts struct {
	EMI       decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

func (d DueAmounts) Total() decimal.Decimal {
	return d.Principal.Add(d.Interest)
}

// DueAmounts projects what is owed for the period due on periodDueDate as of
// asOf. Interest accrues up to asOf; on or after the due date the full period
// amounts are returned. The model is not modified.
func (m *ScheduleModel) DueAmounts(periodDueDate, asOf civil.Date) (DueAmounts, error) {
	target, err := m.periodIndexByDue(periodDueDate)
	if err != nil {
		return DueAmounts{}, err
	}
	p := m.periods[target]
	if !asOf.Before(p.DueDate) {
		return DueAmounts{EMI: p.EMI, Principal: p.DuePrincipal, Interest: p.DueInterest}, nil
	}

	accrued := decimal.Zero
	if asOf.After(p.FromDate) {
		w := m.Clone()
		if _, _, err := w.splitAt(asOf); err != nil {
			return DueAmounts{}, err
		}
		if err := w.refreshPeriodRateFactors(target); err != nil {
			return DueAmounts{}, err
		}
		w.recalculateBalances()
		p = w.periods[target]
		for _, ip := range p.InterestPeriods {
			if ip.DueDate.After(asOf) {
				break
			}
			accrued = accrued.Add(ip.CalculatedDueInterest)
		}
	}

	interest := decimal.Max(accrued, p.PaidInterest)
	principal := p.DuePrincipal
	if target < len(m.periods)-1 {
		principal, _ = splitInstallment(p.installment, interest, p.OutstandingBalance.Add(p.DuePrincipal), p.PaidPrincipal)
	}
	return DueAmounts{EMI: p.EMI, Principal: principal, Interest: interest}, nil
}
