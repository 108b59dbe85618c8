// Package mathctx provides a fixed-precision decimal context: every operation
// rounds its result to a configured number of significant digits with a
// configured rounding mode.
package mathctx

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

type RoundingMode int

const (
	HalfEven RoundingMode = iota
	HalfUp
	Down
	Up
	Ceiling
	Floor
)

const DefaultPrecision int32 = 12

var modeNames = map[RoundingMode]string{
	HalfEven: "HALF_EVEN",
	HalfUp:   "HALF_UP",
	Down:     "DOWN",
	Up:       "UP",
	Ceiling:  "CEILING",
	Floor:    "FLOOR",
}

func (m RoundingMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RoundingMode(%d)", int(m))
}

func ParseRoundingMode(s string) (RoundingMode, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == want {
			return mode, nil
		}
	}
	return HalfEven, fmt.Errorf("unknown rounding mode %q", s)
}

// Context is immutable and safe to share between goroutines.
type Context struct {
	precision int32
	mode      RoundingMode
}

var Default = Context{precision: DefaultPrecision, mode: HalfEven}

func New(precision int32, mode RoundingMode) (Context, error) {
	if precision <= 0 {
		return Context{}, fmt.Errorf("precision must be positive, got %d", precision)
	}
	if _, ok := modeNames[mode]; !ok {
		return Context{}, fmt.Errorf("unsupported rounding mode %d", int(mode))
	}
	return Context{precision: precision, mode: mode}, nil
}

func (c Context) Precision() int32    { return c.precision }
func (c Context) Mode() RoundingMode { return c.mode }

// Magnitude returns the number of digits left of the decimal point of the
// leading significant digit. 123.4 has magnitude 3, 0.0012 has magnitude -2.
func Magnitude(d decimal.Decimal) int32 {
	return int32(d.NumDigits()) + d.Exponent()
}

// Round rounds d to the context's significant digits.
func (c Context) Round(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return c.roundPlaces(d, c.precision-Magnitude(d))
}

// RoundToScale rounds d to a fixed number of decimal places with the
// context's rounding mode. Used for money amounts.
func (c Context) RoundToScale(d decimal.Decimal, places int32) decimal.Decimal {
	return c.roundPlaces(d, places)
}

// RoundToMultiple rounds d to the nearest multiple of m with the context's
// rounding mode. A non-positive m leaves d unchanged.
func (c Context) RoundToMultiple(d, m decimal.Decimal) decimal.Decimal {
	if !m.IsPositive() {
		return d
	}
	units := c.roundPlaces(c.Div(d, m), 0)
	return units.Mul(m)
}

func (c Context) Add(a, b decimal.Decimal) decimal.Decimal { return c.Round(a.Add(b)) }

func (c Context) Sub(a, b decimal.Decimal) decimal.Decimal { return c.Round(a.Sub(b)) }

func (c Context) Mul(a, b decimal.Decimal) decimal.Decimal { return c.Round(a.Mul(b)) }

// Sum adds values left to right, rounding after every step.
func (c Context) Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = c.Add(total, v)
	}
	return total
}

// Div returns a/b correctly rounded to the context's precision. It panics
// when b is zero, like decimal.Decimal.Div.
func (c Context) Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		panic("mathctx: division by zero")
	}
	if a.IsZero() {
		return decimal.Zero
	}
	// First pass only locates the quotient's magnitude.
	probe, _ := a.QuoRem(b, c.precision-Magnitude(a)+Magnitude(b)+1)
	scale := c.precision - Magnitude(probe)
	if probe.IsZero() {
		scale = c.precision - Magnitude(a) + Magnitude(b) + 1
	}
	q, r := a.QuoRem(b, scale)
	if r.IsZero() {
		return c.Round(q)
	}
	q = c.adjust(q, r, b, scale)
	// Carry from rounding up (9.99 -> 10.0) can add a digit.
	return c.Round(q)
}

// adjust rounds a truncated quotient q (scale places, remainder r) according
// to the context's mode.
func (c Context) adjust(q, r, b decimal.Decimal, scale int32) decimal.Decimal {
	negative := r.Sign()*b.Sign() < 0
	unit := decimal.New(1, -scale)
	if negative {
		unit = unit.Neg()
	}
	awayFromZero := false
	switch c.mode {
	case Down:
	case Up:
		awayFromZero = true
	case Ceiling:
		awayFromZero = !negative
	case Floor:
		awayFromZero = negative
	case HalfUp, HalfEven:
		// Compare 2|r| against |b| * 10^-scale, the distance to the next step.
		twice := r.Abs().Mul(decimal.NewFromInt(2))
		step := b.Abs().Mul(decimal.New(1, -scale))
		switch twice.Cmp(step) {
		case 1:
			awayFromZero = true
		case 0:
			awayFromZero = c.mode == HalfUp || lastDigitOdd(q, scale)
		}
	}
	if awayFromZero {
		return q.Add(unit)
	}
	return q
}

func lastDigitOdd(q decimal.Decimal, scale int32) bool {
	coef := q.Shift(scale).BigInt()
	return new(big.Int).Abs(coef).Bit(0) == 1
}

func (c Context) roundPlaces(d decimal.Decimal, places int32) decimal.Decimal {
	switch c.mode {
	case HalfUp:
		return d.Round(places)
	case Down:
		return d.RoundDown(places)
	case Up:
		return d.RoundUp(places)
	case Ceiling:
		return d.RoundCeil(places)
	case Floor:
		return d.RoundFloor(places)
	default:
		return d.RoundBank(places)
	}
}
