package emi

import (
	"loan-schedule-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// maxEMIAdjustments bounds the attempts to shrink the final period residual.
const maxEMIAdjustments = 3

// AddDisbursement adds amount to the balance from date on and recomputes the
// EMI of the period containing date and every period after it.
func (m *ScheduleModel) AddDisbursement(date civil.Date, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.InvalidScheduleInput("disbursement amount %s is negative", amount)
	}
	return m.apply(func(w *ScheduleModel) error {
		pi, err := w.addBalanceChange(date, amount, decimal.Zero)
		if err != nil {
			return err
		}
		if err := w.refreshRateFactors(pi); err != nil {
			return err
		}
		return w.calculateEMI(pi)
	})
}

// ChangeInterestRate applies annualRate from date on and recomputes the EMI
// of the period containing date and every period after it.
func (m *ScheduleModel) ChangeInterestRate(date civil.Date, annualRate decimal.Decimal) error {
	if annualRate.IsNegative() {
		return apperrors.InvalidScheduleInput("annual rate %s is negative", annualRate)
	}
	return m.apply(func(w *ScheduleModel) error {
		pi, _, err := w.splitAt(date)
		if err != nil {
			return err
		}
		w.setRate(date, annualRate)
		if err := w.refreshRateFactors(pi); err != nil {
			return err
		}
		return w.calculateEMI(pi)
	})
}

// AddBalanceCorrection moves the balance by amount from date on. A zero
// amount only forces an interest period boundary. EMIs are kept.
func (m *ScheduleModel) AddBalanceCorrection(date civil.Date, amount decimal.Decimal) error {
	return m.apply(func(w *ScheduleModel) error {
		pi, err := w.addBalanceChange(date, decimal.Zero, amount)
		if err != nil {
			return err
		}
		if err := w.refreshPeriodRateFactors(pi); err != nil {
			return err
		}
		w.recalculateBalances()
		return nil
	})
}

// PayPrincipal credits amount to the period due on periodDueDate and lowers
// the balance from transactionDate on. EMIs are kept.
func (m *ScheduleModel) PayPrincipal(periodDueDate, transactionDate civil.Date, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.InvalidScheduleInput("principal payment %s is negative", amount)
	}
	return m.apply(func(w *ScheduleModel) error {
		target, err := w.periodIndexByDue(periodDueDate)
		if err != nil {
			return err
		}
		pi, err := w.addBalanceChange(transactionDate, decimal.Zero, amount.Neg())
		if err != nil {
			return err
		}
		w.periods[target].PaidPrincipal = w.periods[target].PaidPrincipal.Add(amount)
		if err := w.refreshPeriodRateFactors(pi); err != nil {
			return err
		}
		w.recalculateBalances()
		return nil
	})
}

// PayInterest credits amount to the period due on periodDueDate. The
// transaction date becomes an interest period boundary.
func (m *ScheduleModel) PayInterest(periodDueDate, transactionDate civil.Date, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.InvalidScheduleInput("interest payment %s is negative", amount)
	}
	return m.apply(func(w *ScheduleModel) error {
		target, err := w.periodIndexByDue(periodDueDate)
		if err != nil {
			return err
		}
		pi, _, err := w.splitAt(transactionDate)
		if err != nil {
			return err
		}
		w.periods[target].PaidInterest = w.periods[target].PaidInterest.Add(amount)
		if err := w.refreshPeriodRateFactors(pi); err != nil {
			return err
		}
		w.recalculateBalances()
		return nil
	})
}

// apply runs fn against a copy of the model and keeps the result only when
// fn succeeds, so a failed operation leaves the model untouched.
func (m *ScheduleModel) apply(fn func(w *ScheduleModel) error) error {
	w := m.Clone()
	if err := fn(w); err != nil {
		return err
	}
	if err := w.checkBalances(); err != nil {
		return err
	}
	m.periods = w.periods
	m.rates = w.rates
	return nil
}

// checkBalances rejects a schedule whose principal reductions exceed the
// balance they were posted against.
func (m *ScheduleModel) checkBalances() error {
	for _, p := range m.periods {
		for _, ip := range p.InterestPeriods {
			if ip.OutstandingBalance.IsNegative() {
				return apperrors.InvalidScheduleInput("balance on %s would be %s, principal reductions exceed the outstanding balance", ip.FromDate, ip.OutstandingBalance)
			}
		}
		if b := p.credited(); b.IsNegative() {
			return apperrors.InvalidScheduleInput("balance on %s would be %s, principal reductions exceed the outstanding balance", p.DueDate, b)
		}
	}
	return nil
}

func (m *ScheduleModel) refreshRateFactors(from int) error {
	for i := from; i < len(m.periods); i++ {
		if err := m.refreshPeriodRateFactors(i); err != nil {
			return err
		}
	}
	return nil
}

func (m *ScheduleModel) refreshPeriodRateFactors(i int) error {
	p := &m.periods[i]
	periodDays := p.Days()
	monthDays := m.terms.DayCount.MonthDays(p.FromDate)
	for j := range p.InterestPeriods {
		ip := &p.InterestPeriods[j]
		rf, err := RateFactor(RateFactorParams{
			AnnualRate:         m.RateAt(ip.FromDate),
			Frequency:          m.terms.Frequency,
			RepaymentEvery:     m.terms.RepaymentEvery,
			DaysInMonth:        monthDays,
			DaysInYear:         m.terms.DayCount.YearDays(ip.FromDate, ip.DueDate),
			DaysInPeriod:       ip.Days(),
			DaysForCalculation: periodDays,
		}, m.mc)
		if err != nil {
			return err
		}
		ip.RateFactor = rf
	}
	return nil
}

func (m *ScheduleModel) periodRateFactor(i int) decimal.Decimal {
	total := decimal.Zero
	for _, ip := range m.periods[i].InterestPeriods {
		total = m.mc.Add(total, ip.RateFactor)
	}
	return total
}

// recalculateBalances walks the schedule forward and derives balances,
// interest and due amounts from the stored changes, payments and
// installments. A period never asks for more principal than is still owed,
// and the final period's EMI becomes whatever retires the remaining balance.
func (m *ScheduleModel) recalculateBalances() {
	balance := decimal.Zero
	last := len(m.periods) - 1
	for i := range m.periods {
		p := &m.periods[i]
		calculated := decimal.Zero
		for j := range p.InterestPeriods {
			ip := &p.InterestPeriods[j]
			balance = balance.Add(ip.BalanceChange())
			ip.OutstandingBalance = balance
			ip.CalculatedDueInterest = m.money(m.mc.Mul(balance, ip.RateFactor))
			calculated = calculated.Add(ip.CalculatedDueInterest)
		}
		balance = balance.Add(p.maturityDisbursement).Add(p.maturityCorrection)

		p.DueInterest = decimal.Max(calculated, p.PaidInterest)
		owed := balance.Add(p.PaidPrincipal)
		if i == last {
			p.DuePrincipal = owed
			p.EMI = p.DuePrincipal.Add(p.DueInterest)
		} else {
			p.DuePrincipal, p.EMI = splitInstallment(p.installment, p.DueInterest, owed, p.PaidPrincipal)
		}
		balance = balance.Sub(p.DuePrincipal.Sub(p.PaidPrincipal))
		p.OutstandingBalance = balance
	}
}

// splitInstallment returns the principal due from an installment and the EMI
// actually charged. owed is the principal still outstanding for the period
// including what was already paid toward it.
func splitInstallment(installment, interest, owed, paid decimal.Decimal) (principal, emi decimal.Decimal) {
	scheduled := installment.Sub(interest)
	principal = decimal.Max(decimal.Min(scheduled, owed), paid)
	if principal.LessThan(scheduled) {
		return principal, principal.Add(interest)
	}
	return principal, installment
}

// calculateEMI re-solves the installment for periods from..end. The principal
// is the balance left after every change inside period from, plus principal
// already paid toward periods from..end: those payments lowered the balance
// but still count toward their period's due principal.
func (m *ScheduleModel) calculateEMI(from int) error {
	m.recalculateBalances()
	principal := m.periods[from].credited()
	for i := from; i < len(m.periods); i++ {
		principal = principal.Add(m.periods[i].PaidPrincipal)
	}
	factors := make([]decimal.Decimal, 0, len(m.periods)-from)
	for i := from; i < len(m.periods); i++ {
		factors = append(factors, m.periodRateFactor(i))
	}
	emi, err := ComputeEMI(principal, factors, m.terms.CurrencyDigits, m.installmentMultipleOf, m.mc)
	if err != nil {
		return err
	}
	for i := from; i < len(m.periods); i++ {
		m.periods[i].installment = emi
	}
	m.recalculateBalances()
	m.adjustEMI(from)
	return nil
}

// adjustEMI spreads the difference between the final period and the regular
// EMI over the regular periods. A candidate is kept only when it shrinks the
// difference and does not turn a short final installment into a long one.
func (m *ScheduleModel) adjustEMI(from int) {
	last := len(m.periods) - 1
	regular := last - from
	if regular < 1 {
		return
	}
	for attempt := 0; attempt < maxEMIAdjustments; attempt++ {
		diff := m.periods[last].EMI.Sub(m.periods[last-1].installment)
		if diff.IsZero() {
			return
		}
		step := m.money(m.mc.Div(diff, decimal.NewFromInt(int64(regular))))
		if m.installmentMultipleOf.IsPositive() {
			step = m.mc.RoundToMultiple(step, m.installmentMultipleOf)
		}
		if step.IsZero() {
			step = m.moneyUnit()
			if diff.IsNegative() {
				step = step.Neg()
			}
		}

		candidate := m.Clone()
		emi := m.periods[last-1].installment.Add(step)
		for i := from; i < last; i++ {
			candidate.periods[i].installment = emi
		}
		candidate.recalculateBalances()

		newDiff := candidate.periods[last].EMI.Sub(candidate.periods[last-1].installment)
		if newDiff.Abs().GreaterThanOrEqual(diff.Abs()) || (diff.IsNegative() && newDiff.IsPositive()) {
			return
		}
		m.periods = candidate.periods
	}
}
