package emi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DaysInYear is the year length used to turn an annual rate into a daily
// one. DaysInYearActual counts 365 or 366 depending on the LeapYearStrategy.
type DaysInYear int

const (
	DaysInYearActual DaysInYear = 1
	DaysInYear360    DaysInYear = 360
	DaysInYear364    DaysInYear = 364
	DaysInYear365    DaysInYear = 365
)

// DaysInMonth is the month length used for monthly repayments.
// DaysInMonthUnspecified ignores months entirely and accrues daily.
type DaysInMonth int

const (
	DaysInMonthUnspecified DaysInMonth = 0
	DaysInMonthActual      DaysInMonth = 1
	DaysInMonth30          DaysInMonth = 30
)

type LeapYearStrategy int

const (
	// LeapYearFull counts 366 days for any interval starting in a leap year.
	LeapYearFull LeapYearStrategy = iota
	// LeapYearFeb29PeriodOnly counts 366 days only for intervals containing Feb 29.
	LeapYearFeb29PeriodOnly
)

type DayCount struct {
	DaysInYear  DaysInYear
	DaysInMonth DaysInMonth
	LeapYear    LeapYearStrategy
}

// Thirty360 is the 360/30 convention.
var Thirty360 = DayCount{DaysInYear: DaysInYear360, DaysInMonth: DaysInMonth30}

func (c DayCount) Validate() error {
	switch c.DaysInYear {
	case DaysInYearActual, DaysInYear360, DaysInYear364, DaysInYear365:
	default:
		return fmt.Errorf("unsupported days-in-year %d", c.DaysInYear)
	}
	switch c.DaysInMonth {
	case DaysInMonthUnspecified, DaysInMonthActual, DaysInMonth30:
	default:
		return fmt.Errorf("unsupported days-in-month %d", c.DaysInMonth)
	}
	if c.LeapYear != LeapYearFull && c.LeapYear != LeapYearFeb29PeriodOnly {
		return fmt.Errorf("unsupported leap year strategy %d", c.LeapYear)
	}
	return nil
}

// YearDays returns the year length for the interval [from, to).
func (c DayCount) YearDays(from, to civil.Date) int {
	if c.DaysInYear != DaysInYearActual {
		return int(c.DaysInYear)
	}
	if c.LeapYear == LeapYearFeb29PeriodOnly {
		if containsFeb29(from, to) {
			return 366
		}
		return 365
	}
	if isLeapYear(from.Year) {
		return 366
	}
	return 365
}

// MonthDays returns the month length for a repayment period starting at
// from, or 0 when the convention is unspecified.
func (c DayCount) MonthDays(from civil.Date) int {
	switch c.DaysInMonth {
	case DaysInMonth30:
		return 30
	case DaysInMonthActual:
		return daysIn(from.Year, from.Month)
	default:
		return 0
	}
}

// DaysBetween returns the number of calendar days in [from, to).
func DaysBetween(from, to civil.Date) int {
	return to.DaysSince(from)
}

func ParseDaysInYear(s string) (DaysInYear, error) {
	if strings.EqualFold(strings.TrimSpace(s), "ACTUAL") {
		return DaysInYearActual, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid days-in-year %q", s)
	}
	d := DaysInYear(n)
	switch d {
	case DaysInYear360, DaysInYear364, DaysInYear365:
		return d, nil
	}
	return 0, fmt.Errorf("unsupported days-in-year %q", s)
}

func ParseDaysInMonth(s string) (DaysInMonth, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "UNSPECIFIED":
		return DaysInMonthUnspecified, nil
	case "ACTUAL":
		return DaysInMonthActual, nil
	case "30":
		return DaysInMonth30, nil
	}
	return 0, fmt.Errorf("unsupported days-in-month %q", s)
}

func (d DaysInYear) String() string {
	if d == DaysInYearActual {
		return "ACTUAL"
	}
	return strconv.Itoa(int(d))
}

func (d DaysInMonth) String() string {
	switch d {
	case DaysInMonthUnspecified:
		return "UNSPECIFIED"
	case DaysInMonthActual:
		return "ACTUAL"
	}
	return strconv.Itoa(int(d))
}

func (s LeapYearStrategy) String() string {
	if s == LeapYearFeb29PeriodOnly {
		return "FEB_29_PERIOD_ONLY"
	}
	return "FULL"
}

func ParseLeapYearStrategy(s string) (LeapYearStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "FULL":
		return LeapYearFull, nil
	case "FEB_29_PERIOD_ONLY":
		return LeapYearFeb29PeriodOnly, nil
	}
	return 0, fmt.Errorf("unsupported leap year strategy %q", s)
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func containsFeb29(from, to civil.Date) bool {
	for y := from.Year; y <= to.Year; y++ {
		if !isLeapYear(y) {
			continue
		}
		leapDay := civil.Date{Year: y, Month: time.February, Day: 29}
		if !leapDay.Before(from) && leapDay.Before(to) {
			return true
		}
	}
	return false
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
