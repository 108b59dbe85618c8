package emi

import (
	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyDays   Frequency = "DAYS"
	FrequencyWeeks  Frequency = "WEEKS"
	FrequencyMonths Frequency = "MONTHS"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDays, FrequencyWeeks, FrequencyMonths:
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// RateFactorParams describes one interest interval.
//
// DaysInPeriod is the calendar length of the interval itself and
// DaysForCalculation the length of the repayment period it belongs to.
// DaysInMonth of 0 accrues daily on DaysInYear.
type RateFactorParams struct {
	AnnualRate         decimal.Decimal
	Frequency          Frequency
	RepaymentEvery     int
	DaysInMonth        int
	DaysInYear         int
	DaysInPeriod       int
	DaysForCalculation int
}

// RateFactor converts a nominal annual percentage rate into the growth factor
// of one interval. The result keeps the full precision of mc.
func RateFactor(p RateFactorParams, mc mathctx.Context) (decimal.Decimal, error) {
	if err := p.validate(); err != nil {
		return decimal.Zero, err
	}
	annual := mc.Div(p.AnnualRate, hundred)
	days := decimal.NewFromInt(int64(p.DaysInPeriod))
	yearDays := decimal.NewFromInt(int64(p.DaysInYear))

	var fraction decimal.Decimal
	switch {
	case p.Frequency == FrequencyDays, p.Frequency == FrequencyMonths && p.DaysInMonth == 0:
		return mc.Div(mc.Mul(annual, days), yearDays), nil
	case p.Frequency == FrequencyWeeks:
		fraction = mc.Mul(mc.Mul(annual, decimal.NewFromInt(7)), decimal.NewFromInt(int64(p.RepaymentEvery)))
	default:
		fraction = mc.Mul(mc.Mul(annual, decimal.NewFromInt(int64(p.RepaymentEvery))), decimal.NewFromInt(int64(p.DaysInMonth)))
	}
	fraction = mc.Div(fraction, yearDays)
	if p.DaysInPeriod == p.DaysForCalculation {
		return fraction, nil
	}
	return mc.Div(mc.Mul(fraction, days), decimal.NewFromInt(int64(p.DaysForCalculation))), nil
}

func (p RateFactorParams) validate() error {
	switch {
	case !p.Frequency.Valid():
		return apperrors.InvalidScheduleInput("unsupported repayment frequency %q", p.Frequency)
	case p.AnnualRate.IsNegative():
		return apperrors.InvalidScheduleInput("annual rate %s is negative", p.AnnualRate)
	case p.RepaymentEvery < 1:
		return apperrors.InvalidScheduleInput("repayment interval %d must be at least 1", p.RepaymentEvery)
	case p.DaysInYear <= 0:
		return apperrors.InvalidScheduleInput("days in year %d must be positive", p.DaysInYear)
	case p.DaysInPeriod < 0:
		return apperrors.InvalidScheduleInput("interval of %d days is negative", p.DaysInPeriod)
	case p.DaysForCalculation <= 0:
		return apperrors.InvalidScheduleInput("period of %d days must be positive", p.DaysForCalculation)
	case p.DaysInMonth < 0:
		return apperrors.InvalidScheduleInput("days in month %d is negative", p.DaysInMonth)
	}
	return nil
}
