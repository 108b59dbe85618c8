package emi

import (
	"loan-schedule-engine/internal/pkg/apperrors"
	"loan-schedule-engine/internal/pkg/mathctx"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// ComputeEMI returns the equal installment that retires principal over the
// periods described by rateFactors, rounded to currencyDigits and then to
// multipleOf when it is positive.
//
// With N the product of (1 + r) over all periods and fn accumulated forward
// as fn = fn*(1 + r) + 1 from the second period on, EMI = principal * N / fn.
func ComputeEMI(principal decimal.Decimal, rateFactors []decimal.Decimal, currencyDigits int32, multipleOf decimal.Decimal, mc mathctx.Context) (decimal.Decimal, error) {
	if len(rateFactors) == 0 {
		return decimal.Zero, apperrors.InvalidScheduleInput("no periods to amortize over")
	}
	if !principal.IsZero() && mathctx.Magnitude(principal)+currencyDigits > mc.Precision() {
		return decimal.Zero, apperrors.Computation("principal %s needs more than %d significant digits", principal, mc.Precision())
	}

	product := one
	fn := one
	for i, r := range rateFactors {
		growth := mc.Add(one, r)
		if !growth.IsPositive() {
			return decimal.Zero, apperrors.Computation("rate factor %s of period %d is not above -1", r, i+1)
		}
		product = mc.Mul(product, growth)
		if i > 0 {
			fn = mc.Add(mc.Mul(fn, growth), one)
		}
	}
	if !fn.IsPositive() {
		return decimal.Zero, apperrors.Computation("compounding sum %s is not positive", fn)
	}

	emi := mc.RoundToScale(mc.Mul(principal, mc.Div(product, fn)), currencyDigits)
	if multipleOf.IsPositive() {
		emi = mc.RoundToMultiple(emi, multipleOf)
	}
	return emi, nil
}
