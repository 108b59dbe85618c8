package emi

import (
	"errors"
	"strings"
	"testing"
	"time"

	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func monthlyBounds(start string, n int) []PeriodBounds {
	from := date(start)
	bounds := make([]PeriodBounds, 0, n)
	for i := 0; i < n; i++ {
		due := civil.DateOf(from.In(time.UTC).AddDate(0, 1, 0))
		bounds = append(bounds, PeriodBounds{FromDate: from, DueDate: due})
		from = due
	}
	return bounds
}

func terms360(rate string) Terms {
	return Terms{
		AnnualRate:     dec(rate),
		DayCount:       Thirty360,
		Frequency:      FrequencyMonths,
		RepaymentEvery: 1,
		CurrencyDigits: 2,
	}
}

func newMonthlyModel(t *testing.T, rate string, periods int) *ScheduleModel {
	t.Helper()
	m, err := NewScheduleModel(monthlyBounds("2024-01-01", periods), terms360(rate), 0, mathctx.Default)
	require.NoError(t, err)
	return m
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, context ...string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", strings.Join(context, " "), want, got)
}

// assertInvariants checks that principal is neither created nor lost, that
// balances carry over period boundaries and that no balance or amount due
// goes below zero.
func assertInvariants(t *testing.T, m *ScheduleModel) {
	t.Helper()
	periods := m.Periods()

	duePrincipal, moved := decimal.Zero, decimal.Zero
	for _, p := range periods {
		duePrincipal = duePrincipal.Add(p.DuePrincipal)
		moved = moved.Add(p.Disbursed()).Add(p.Corrected()).Add(p.PaidPrincipal)
	}
	assert.True(t, duePrincipal.Equal(moved), "sum of due principal %s != disbursed and corrected %s", duePrincipal, moved)

	for i := 1; i < len(periods); i++ {
		first := periods[i].InterestPeriods[0]
		want := periods[i-1].OutstandingBalance.Add(first.BalanceChange())
		assert.True(t, want.Equal(first.OutstandingBalance), "period %d opens at %s, want %s", i+1, first.OutstandingBalance, want)
	}
	for _, p := range periods {
		for j := 1; j < len(p.InterestPeriods); j++ {
			assert.True(t, p.InterestPeriods[j-1].DueDate.Before(p.InterestPeriods[j].DueDate), "interest periods must increase")
			assert.Equal(t, p.InterestPeriods[j-1].DueDate, p.InterestPeriods[j].FromDate)
		}
		assert.Equal(t, p.FromDate, p.InterestPeriods[0].FromDate)
		assert.Equal(t, p.DueDate, p.InterestPeriods[len(p.InterestPeriods)-1].DueDate)
	}
	for _, p := range periods {
		n := p.DueDate.String()
		assert.False(t, p.EMI.IsNegative(), "period %s emi %s", n, p.EMI)
		assert.False(t, p.DuePrincipal.IsNegative(), "period %s principal %s", n, p.DuePrincipal)
		assert.False(t, p.DueInterest.IsNegative(), "period %s interest %s", n, p.DueInterest)
		assert.False(t, p.OutstandingBalance.IsNegative(), "period %s balance %s", n, p.OutstandingBalance)
		for _, ip := range p.InterestPeriods {
			assert.False(t, ip.OutstandingBalance.IsNegative(), "interest period %s balance %s", ip.FromDate, ip.OutstandingBalance)
		}
	}
	assertMoney(t, "0", periods[len(periods)-1].OutstandingBalance, "final balance")
}

func TestNewScheduleModel(t *testing.T) {
	m := newMonthlyModel(t, "7", 6)

	assert.Equal(t, 6, m.PeriodCount())
	assert.Equal(t, 6, m.InterestPeriodCount())
	assert.Equal(t, date("2024-01-01"), m.StartDate())
	assert.Equal(t, date("2024-07-01"), m.MaturityDate())
	assert.Equal(t, 182, m.TotalTermDays())

	for _, p := range m.Periods() {
		assert.Len(t, p.InterestPeriods, 1)
		assertMoney(t, "0", p.EMI)
		assertMoney(t, "0", p.OutstandingBalance)
		assertMoney(t, "0.00583333333333", p.InterestPeriods[0].RateFactor)
	}
}

func TestNewScheduleModelRejectsInvalidInput(t *testing.T) {
	valid := monthlyBounds("2024-01-01", 3)

	tests := []struct {
		name     string
		bounds   []PeriodBounds
		terms    Terms
		multiple int64
	}{
		{"no periods", nil, terms360("7"), 0},
		{"gap between periods", []PeriodBounds{valid[0], valid[2]}, terms360("7"), 0},
		{"period ending before it starts", []PeriodBounds{{FromDate: date("2024-02-01"), DueDate: date("2024-01-01")}}, terms360("7"), 0},
		{"negative rate", valid, terms360("-1"), 0},
		{"negative multiple", valid, terms360("7"), -5},
		{"unknown frequency", valid, Terms{AnnualRate: dec("7"), DayCount: Thirty360, Frequency: "YEARLY", RepaymentEvery: 1, CurrencyDigits: 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduleModel(tt.bounds, tt.terms, tt.multiple, mathctx.Default)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidScheduleInput), "got %v", err)
		})
	}
}

func TestNewScheduleModelRejectsTooSmallPrecision(t *testing.T) {
	mc, err := mathctx.New(2, mathctx.HalfEven)
	require.NoError(t, err)

	_, err = NewScheduleModel(monthlyBounds("2024-01-01", 3), terms360("7"), 0, mc)
	assert.True(t, errors.Is(err, apperrors.ErrComputation))
}

func TestSplitAt(t *testing.T) {
	m := newMonthlyModel(t, "7", 3)

	t.Run("inside a period creates a boundary", func(t *testing.T) {
		period, sub, err := m.SplitAt(date("2024-02-14"))
		require.NoError(t, err)
		assert.Equal(t, 1, period)
		assert.Equal(t, 1, sub)

		p, err := m.Period(date("2024-03-01"))
		require.NoError(t, err)
		require.Len(t, p.InterestPeriods, 2)
		assert.Equal(t, date("2024-02-14"), p.InterestPeriods[0].DueDate)
		assert.Equal(t, date("2024-02-14"), p.InterestPeriods[1].FromDate)
		assertMoney(t, "0.00261494252873", p.InterestPeriods[0].RateFactor)
	})

	t.Run("existing boundary is reused", func(t *testing.T) {
		period, sub, err := m.SplitAt(date("2024-02-14"))
		require.NoError(t, err)
		assert.Equal(t, 1, period)
		assert.Equal(t, 1, sub)
		assert.Equal(t, 4, m.InterestPeriodCount())
	})

	t.Run("period start is a boundary", func(t *testing.T) {
		period, sub, err := m.SplitAt(date("2024-03-01"))
		require.NoError(t, err)
		assert.Equal(t, 2, period)
		assert.Equal(t, 0, sub)
		assert.Equal(t, 4, m.InterestPeriodCount())
	})

	t.Run("final due date is the trailing position", func(t *testing.T) {
		period, sub, err := m.SplitAt(date("2024-04-01"))
		require.NoError(t, err)
		assert.Equal(t, 2, period)
		assert.Equal(t, 1, sub)
		assert.Equal(t, 4, m.InterestPeriodCount())
	})

	t.Run("dates outside the schedule are rejected", func(t *testing.T) {
		_, _, err := m.SplitAt(date("2023-12-31"))
		assert.True(t, errors.Is(err, apperrors.ErrInvalidScheduleInput))
		_, _, err = m.SplitAt(date("2024-04-02"))
		assert.True(t, errors.Is(err, apperrors.ErrInvalidScheduleInput))
	})
}

func TestRateAt(t *testing.T) {
	m := newMonthlyModel(t, "7", 6)
	require.NoError(t, m.ChangeInterestRate(date("2024-03-15"), dec("5")))
	require.NoError(t, m.ChangeInterestRate(date("2024-05-01"), dec("4")))

	assertMoney(t, "7", m.RateAt(date("2024-01-01")))
	assertMoney(t, "7", m.RateAt(date("2024-03-14")))
	assertMoney(t, "5", m.RateAt(date("2024-03-15")))
	assertMoney(t, "5", m.RateAt(date("2024-04-30")))
	assertMoney(t, "4", m.RateAt(date("2024-06-30")))
}

func TestCloneIsIndependent(t *testing.T) {
	m := newMonthlyModel(t, "7", 3)
	require.NoError(t, m.AddDisbursement(date("2024-01-01"), dec("100")))

	c := m.Clone()
	require.NoError(t, c.AddDisbursement(date("2024-02-10"), dec("50")))
	require.NoError(t, c.ChangeInterestRate(date("2024-02-20"), dec("3")))

	assert.Equal(t, 3, m.InterestPeriodCount())
	assertMoney(t, "7", m.RateAt(date("2024-03-01")))
	assert.Equal(t, 5, c.InterestPeriodCount())
}

func TestPeriodLookup(t *testing.T) {
	m := newMonthlyModel(t, "7", 3)

	p, err := m.Period(date("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-01"), p.FromDate)

	_, err = m.Period(date("2024-02-02"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidScheduleInput))
}
