package emi

import (
	"slices"
	"sort"

	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const maxCurrencyDigits = 6

// Terms are the product terms a schedule is generated with. AnnualRate is
// the rate in force from the first period on; later changes go through
// ChangeInterestRate.
type Terms struct {
	AnnualRate     decimal.Decimal
	DayCount       DayCount
	Frequency      Frequency
	RepaymentEvery int
	CurrencyDigits int32
}

func (t Terms) Validate() error {
	if err := t.DayCount.Validate(); err != nil {
		return apperrors.InvalidScheduleInput("%v", err)
	}
	switch {
	case !t.Frequency.Valid():
		return apperrors.InvalidScheduleInput("unsupported repayment frequency %q", t.Frequency)
	case t.RepaymentEvery < 1:
		return apperrors.InvalidScheduleInput("repayment interval %d must be at least 1", t.RepaymentEvery)
	case t.CurrencyDigits < 0 || t.CurrencyDigits > maxCurrencyDigits:
		return apperrors.InvalidScheduleInput("currency digits %d out of range", t.CurrencyDigits)
	case t.AnnualRate.IsNegative():
		return apperrors.InvalidScheduleInput("annual rate %s is negative", t.AnnualRate)
	}
	return nil
}

type PeriodBounds struct {
	FromDate civil.Date
	DueDate  civil.Date
}

// InterestPeriod is a slice of a repayment period with a constant balance
// and rate. Disbursement and Correction are applied at FromDate; principal
// payments are recorded as negative corrections.
type InterestPeriod struct {
	FromDate              civil.Date
	DueDate               civil.Date
	Disbursement          decimal.Decimal
	Correction            decimal.Decimal
	OutstandingBalance    decimal.Decimal
	RateFactor            decimal.Decimal
	CalculatedDueInterest decimal.Decimal
}

func (ip InterestPeriod) BalanceChange() decimal.Decimal {
	return ip.Disbursement.Add(ip.Correction)
}

func (ip InterestPeriod) Days() int {
	return DaysBetween(ip.FromDate, ip.DueDate)
}

type RepaymentPeriod struct {
	FromDate           civil.Date
	DueDate            civil.Date
	EMI                decimal.Decimal
	DuePrincipal       decimal.Decimal
	DueInterest        decimal.Decimal
	PaidPrincipal      decimal.Decimal
	PaidInterest       decimal.Decimal
	OutstandingBalance decimal.Decimal
	InterestPeriods    []InterestPeriod

	// installment is the solved EMI. EMI reports less once the balance left
	// for the period is smaller than the installment's principal part.
	installment decimal.Decimal

	// Changes posted on the final due date. They move the closing balance
	// without opening a zero-length interest period.
	maturityDisbursement decimal.Decimal
	maturityCorrection   decimal.Decimal
}

func (p RepaymentPeriod) Days() int {
	return DaysBetween(p.FromDate, p.DueDate)
}

// OpeningBalance is the balance of the first interest period, including any
// change posted on FromDate.
func (p RepaymentPeriod) OpeningBalance() decimal.Decimal {
	return p.InterestPeriods[0].OutstandingBalance
}

func (p RepaymentPeriod) CalculatedDueInterest() decimal.Decimal {
	total := decimal.Zero
	for _, ip := range p.InterestPeriods {
		total = total.Add(ip.CalculatedDueInterest)
	}
	return total
}

// Disbursed returns everything disbursed inside the period.
func (p RepaymentPeriod) Disbursed() decimal.Decimal {
	total := p.maturityDisbursement
	for _, ip := range p.InterestPeriods {
		total = total.Add(ip.Disbursement)
	}
	return total
}

// credited returns the principal in force after every change posted inside
// the period, before the period's own due principal is deducted.
func (p RepaymentPeriod) credited() decimal.Decimal {
	last := p.InterestPeriods[len(p.InterestPeriods)-1]
	return last.OutstandingBalance.Add(p.maturityDisbursement).Add(p.maturityCorrection)
}

// Corrected returns the net of balance corrections and principal payments
// posted inside the period.
func (p RepaymentPeriod) Corrected() decimal.Decimal {
	total := p.maturityCorrection
	for _, ip := range p.InterestPeriods {
		total = total.Add(ip.Correction)
	}
	return total
}

func (p RepaymentPeriod) clone() RepaymentPeriod {
	c := p
	c.InterestPeriods = slices.Clone(p.InterestPeriods)
	return c
}

type rateChange struct {
	effective civil.Date
	rate      decimal.Decimal
}

// ScheduleModel is the mutable interest schedule of one loan. It is not safe
// for concurrent use.
type ScheduleModel struct {
	periods               []RepaymentPeriod
	terms                 Terms
	installmentMultipleOf decimal.Decimal
	rates                 []rateChange
	mc                    mathctx.Context
}

// NewScheduleModel builds an empty schedule with one interest period per
// repayment period, zero balances and zero EMI.
func NewScheduleModel(bounds []PeriodBounds, terms Terms, installmentMultipleOf int64, mc mathctx.Context) (*ScheduleModel, error) {
	if len(bounds) == 0 {
		return nil, apperrors.InvalidScheduleInput("no repayment periods")
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if installmentMultipleOf < 0 {
		return nil, apperrors.InvalidScheduleInput("installment multiple %d is negative", installmentMultipleOf)
	}
	if mc.Precision() <= terms.CurrencyDigits {
		return nil, apperrors.Computation("precision %d cannot hold %d currency digits", mc.Precision(), terms.CurrencyDigits)
	}

	periods := make([]RepaymentPeriod, 0, len(bounds))
	for i, b := range bounds {
		if !b.FromDate.IsValid() || !b.DueDate.IsValid() {
			return nil, apperrors.InvalidScheduleInput("period %d has an invalid date", i+1)
		}
		if !b.FromDate.Before(b.DueDate) {
			return nil, apperrors.InvalidScheduleInput("period %d starts %s, not before its due date %s", i+1, b.FromDate, b.DueDate)
		}
		if i > 0 && bounds[i-1].DueDate != b.FromDate {
			return nil, apperrors.InvalidScheduleInput("period %d starts %s but period %d is due %s", i+1, b.FromDate, i, bounds[i-1].DueDate)
		}
		periods = append(periods, RepaymentPeriod{
			FromDate:        b.FromDate,
			DueDate:         b.DueDate,
			InterestPeriods: []InterestPeriod{{FromDate: b.FromDate, DueDate: b.DueDate}},
		})
	}

	m := &ScheduleModel{
		periods:               periods,
		terms:                 terms,
		installmentMultipleOf: decimal.NewFromInt(installmentMultipleOf),
		rates:                 []rateChange{{effective: bounds[0].FromDate, rate: terms.AnnualRate}},
		mc:                    mc,
	}
	if err := m.refreshRateFactors(0); err != nil {
		return nil, err
	}
	m.recalculateBalances()
	return m, nil
}

func (m *ScheduleModel) Terms() Terms { return m.terms }

func (m *ScheduleModel) MathContext() mathctx.Context { return m.mc }

func (m *ScheduleModel) PeriodCount() int { return len(m.periods) }

func (m *ScheduleModel) InterestPeriodCount() int {
	n := 0
	for _, p := range m.periods {
		n += len(p.InterestPeriods)
	}
	return n
}

func (m *ScheduleModel) StartDate() civil.Date { return m.periods[0].FromDate }

func (m *ScheduleModel) MaturityDate() civil.Date { return m.periods[len(m.periods)-1].DueDate }

// TotalTermDays is the sum of all repayment period lengths.
func (m *ScheduleModel) TotalTermDays() int {
	return DaysBetween(m.StartDate(), m.MaturityDate())
}

// Periods returns a deep copy of the repayment periods.
func (m *ScheduleModel) Periods() []RepaymentPeriod {
	out := make([]RepaymentPeriod, len(m.periods))
	for i, p := range m.periods {
		out[i] = p.clone()
	}
	return out
}

// Period returns a copy of the repayment period due on dueDate.
func (m *ScheduleModel) Period(dueDate civil.Date) (RepaymentPeriod, error) {
	i, err := m.periodIndexByDue(dueDate)
	if err != nil {
		return RepaymentPeriod{}, err
	}
	return m.periods[i].clone(), nil
}

// RateAt returns the annual rate in force on date.
func (m *ScheduleModel) RateAt(date civil.Date) decimal.Decimal {
	i := sort.Search(len(m.rates), func(i int) bool { return m.rates[i].effective.After(date) })
	if i == 0 {
		return m.rates[0].rate
	}
	return m.rates[i-1].rate
}

// UnpaidPrincipal is the principal still due across all periods.
func (m *ScheduleModel) UnpaidPrincipal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range m.periods {
		total = total.Add(p.DuePrincipal.Sub(p.PaidPrincipal))
	}
	return total
}

// Clone returns an independent copy of the model.
func (m *ScheduleModel) Clone() *ScheduleModel {
	c := *m
	c.periods = m.Periods()
	c.rates = slices.Clone(m.rates)
	return &c
}

func (m *ScheduleModel) periodIndexByDue(dueDate civil.Date) (int, error) {
	i := sort.Search(len(m.periods), func(i int) bool { return !m.periods[i].DueDate.Before(dueDate) })
	if i == len(m.periods) || m.periods[i].DueDate != dueDate {
		return 0, apperrors.InvalidScheduleInput("no repayment period is due on %s", dueDate)
	}
	return i, nil
}

func (m *ScheduleModel) setRate(date civil.Date, rate decimal.Decimal) {
	i := sort.Search(len(m.rates), func(i int) bool { return !m.rates[i].effective.Before(date) })
	if i < len(m.rates) && m.rates[i].effective == date {
		m.rates[i].rate = rate
		return
	}
	m.rates = slices.Insert(m.rates, i, rateChange{effective: date, rate: rate})
}

func (m *ScheduleModel) money(d decimal.Decimal) decimal.Decimal {
	return m.mc.RoundToScale(d, m.terms.CurrencyDigits)
}

// moneyUnit is the smallest installment step: one minor currency unit, or
// the installment multiple when one is configured.
func (m *ScheduleModel) moneyUnit() decimal.Decimal {
	if m.installmentMultipleOf.IsPositive() {
		return m.installmentMultipleOf
	}
	return decimal.New(1, -m.terms.CurrencyDigits)
}
