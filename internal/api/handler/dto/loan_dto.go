package dto

import (
	"fmt"
	"strconv"
	"time"

	"loan-schedule-engine/internal/domain/emi"
	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type CreateLoanRequest struct {
	AnnualInterestRate    string `json:"annualInterestRate" example:"7"`
	DaysInYear            string `json:"daysInYear" example:"360"`
	DaysInMonth           string `json:"daysInMonth" example:"30"`
	LeapYearStrategy      string `json:"leapYearStrategy,omitempty" example:"FULL"`
	Frequency             string `json:"frequency" example:"MONTHS"`
	RepaymentEvery        int    `json:"repaymentEvery" example:"1"`
	NumberOfRepayments    int    `json:"numberOfRepayments" example:"6"`
	StartDate             string `json:"startDate" example:"2024-01-01"`
	CurrencyDigits        int32  `json:"currencyDigits" example:"2"`
	InstallmentMultipleOf int64  `json:"installmentMultipleOf,omitempty" example:"1"`
}

func (r *CreateLoanRequest) ToParams() (loan.CreateLoanParams, error) {
	rate, err := decimal.NewFromString(r.AnnualInterestRate)
	if err != nil {
		return loan.CreateLoanParams{}, apperrors.NewValidationError("annualInterestRate", "must be a decimal number")
	}
	diy, err := emi.ParseDaysInYear(r.DaysInYear)
	if err != nil {
		return loan.CreateLoanParams{}, apperrors.NewValidationError("daysInYear", err.Error())
	}
	dim, err := emi.ParseDaysInMonth(r.DaysInMonth)
	if err != nil {
		return loan.CreateLoanParams{}, apperrors.NewValidationError("daysInMonth", err.Error())
	}
	leap, err := emi.ParseLeapYearStrategy(r.LeapYearStrategy)
	if err != nil {
		return loan.CreateLoanParams{}, apperrors.NewValidationError("leapYearStrategy", err.Error())
	}
	freq := emi.Frequency(r.Frequency)
	if !freq.Valid() {
		return loan.CreateLoanParams{}, apperrors.NewValidationError("frequency", fmt.Sprintf("unsupported frequency %q", r.Frequency))
	}
	start, err := parseDate("startDate", r.StartDate)
	if err != nil {
		return loan.CreateLoanParams{}, err
	}
	multipleOf := r.InstallmentMultipleOf
	if multipleOf == 0 {
		multipleOf = 1
	}

	return loan.CreateLoanParams{
		AnnualInterestRate:    rate,
		DaysInYear:            diy,
		DaysInMonth:           dim,
		LeapYearStrategy:      leap,
		Frequency:             freq,
		RepaymentEvery:        r.RepaymentEvery,
		NumberOfRepayments:    r.NumberOfRepayments,
		StartDate:             start,
		CurrencyDigits:        r.CurrencyDigits,
		InstallmentMultipleOf: multipleOf,
	}, nil
}

type PostTransactionRequest struct {
	Type            string `json:"type" example:"DISBURSEMENT"`
	TransactionDate string `json:"transactionDate" example:"2024-01-01"`
	PeriodDueDate   string `json:"periodDueDate,omitempty" example:"2024-02-01"`
	Amount          string `json:"amount,omitempty" example:"100"`
	Rate            string `json:"rate,omitempty" example:"4"`
}

func (r *PostTransactionRequest) ToTransaction() (loan.Transaction, error) {
	tx := loan.Transaction{
		Type:   loan.TransactionType(r.Type),
		Amount: decimal.Zero,
		Rate:   decimal.Zero,
	}

	var err error
	if tx.TransactionDate, err = parseDate("transactionDate", r.TransactionDate); err != nil {
		return loan.Transaction{}, err
	}
	if r.PeriodDueDate != "" {
		if tx.PeriodDueDate, err = parseDate("periodDueDate", r.PeriodDueDate); err != nil {
			return loan.Transaction{}, err
		}
	}
	if tx.Amount, err = parseOptionalDecimal("amount", r.Amount); err != nil {
		return loan.Transaction{}, err
	}
	if tx.Rate, err = parseOptionalDecimal("rate", r.Rate); err != nil {
		return loan.Transaction{}, err
	}
	return tx, nil
}

func parseDate(field, value string) (civil.Date, error) {
	d, err := civil.ParseDate(value)
	if err != nil {
		return civil.Date{}, apperrors.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

func parseOptionalDecimal(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperrors.NewValidationError(field, "must be a decimal number")
	}
	return d, nil
}

// ParseDueAmountsQuery reads periodDueDate and asOf; asOf defaults to today.
func ParseDueAmountsQuery(periodDueDate, asOf string, today civil.Date) (civil.Date, civil.Date, error) {
	due, err := parseDate("periodDueDate", periodDueDate)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	if asOf == "" {
		return due, today, nil
	}
	at, err := parseDate("asOf", asOf)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	return due, at, nil
}

type LoanResponse struct {
	ID                    string    `json:"id"`
	ExternalID            string    `json:"externalId"`
	AnnualInterestRate    string    `json:"annualInterestRate"`
	DaysInYear            string    `json:"daysInYear"`
	DaysInMonth           string    `json:"daysInMonth"`
	LeapYearStrategy      string    `json:"leapYearStrategy"`
	Frequency             string    `json:"frequency"`
	RepaymentEvery        int       `json:"repaymentEvery"`
	NumberOfRepayments    int       `json:"numberOfRepayments"`
	StartDate             string    `json:"startDate"`
	CurrencyDigits        int32     `json:"currencyDigits"`
	InstallmentMultipleOf int64     `json:"installmentMultipleOf"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	return LoanResponse{
		ID:                    strconv.FormatInt(l.ID, 10),
		ExternalID:            l.ExternalID.String(),
		AnnualInterestRate:    l.AnnualInterestRate.String(),
		DaysInYear:            l.DaysInYear.String(),
		DaysInMonth:           l.DaysInMonth.String(),
		LeapYearStrategy:      l.LeapYearStrategy.String(),
		Frequency:             string(l.Frequency),
		RepaymentEvery:        l.RepaymentEvery,
		NumberOfRepayments:    l.NumberOfRepayments,
		StartDate:             l.StartDate.String(),
		CurrencyDigits:        l.CurrencyDigits,
		InstallmentMultipleOf: l.InstallmentMultipleOf,
		Status:                string(l.Status),
		CreatedAt:             l.CreatedAt,
		UpdatedAt:             l.UpdatedAt,
	}
}

type TransactionResponse struct {
	ID              string    `json:"id"`
	LoanID          string    `json:"loanId"`
	Type            string    `json:"type"`
	TransactionDate string    `json:"transactionDate"`
	PeriodDueDate   string    `json:"periodDueDate,omitempty"`
	Amount          string    `json:"amount"`
	Rate            string    `json:"rate,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func NewTransactionResponse(tx *loan.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              strconv.FormatInt(tx.ID, 10),
		LoanID:          strconv.FormatInt(tx.LoanID, 10),
		Type:            string(tx.Type),
		TransactionDate: tx.TransactionDate.String(),
		Amount:          tx.Amount.String(),
		CreatedAt:       tx.CreatedAt,
	}
	if tx.PeriodDueDate != (civil.Date{}) {
		resp.PeriodDueDate = tx.PeriodDueDate.String()
	}
	if tx.Type == loan.TxRateChange {
		resp.Rate = tx.Rate.String()
	}
	return resp
}

func NewTransactionResponses(txs []loan.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		resp = append(resp, NewTransactionResponse(&txs[i]))
	}
	return resp
}

type ScheduleResponse struct {
	LoanID          string           `json:"loanId"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	TotalTermDays   int              `json:"totalTermDays"`
	UnpaidPrincipal string           `json:"unpaidPrincipal"`
	Periods         []PeriodResponse `json:"periods"`
}

type PeriodResponse struct {
	Number             int                      `json:"number"`
	FromDate           string                   `json:"fromDate"`
	DueDate            string                   `json:"dueDate"`
	EMI                string                   `json:"emi"`
	DuePrincipal       string                   `json:"duePrincipal"`
	DueInterest        string                   `json:"dueInterest"`
	PaidPrincipal      string                   `json:"paidPrincipal"`
	PaidInterest       string                   `json:"paidInterest"`
	OutstandingBalance string                   `json:"outstandingBalance"`
	InterestPeriods    []InterestPeriodResponse `json:"interestPeriods,omitempty"`
}

type InterestPeriodResponse struct {
	FromDate              string `json:"fromDate"`
	DueDate               string `json:"dueDate"`
	BalanceChange         string `json:"balanceChange"`
	OutstandingBalance    string `json:"outstandingBalance"`
	RateFactor            string `json:"rateFactor"`
	CalculatedDueInterest string `json:"calculatedDueInterest"`
}

// NewScheduleResponse renders the snapshot. Sub-periods are only included
// when withInterestPeriods is set.
func NewScheduleResponse(s *loan.ScheduleSnapshot, withInterestPeriods bool) ScheduleResponse {
	resp := ScheduleResponse{
		LoanID:          strconv.FormatInt(s.LoanID, 10),
		GeneratedAt:     s.GeneratedAt,
		TotalTermDays:   s.TotalTermDays,
		UnpaidPrincipal: s.UnpaidPrincipal.String(),
		Periods:         make([]PeriodResponse, 0, len(s.Periods)),
	}
	for _, p := range s.Periods {
		pr := PeriodResponse{
			Number:             p.Number,
			FromDate:           p.FromDate.String(),
			DueDate:            p.DueDate.String(),
			EMI:                p.EMI.String(),
			DuePrincipal:       p.DuePrincipal.String(),
			DueInterest:        p.DueInterest.String(),
			PaidPrincipal:      p.PaidPrincipal.String(),
			PaidInterest:       p.PaidInterest.String(),
			OutstandingBalance: p.OutstandingBalance.String(),
		}
		if withInterestPeriods {
			for _, ip := range p.InterestPeriods {
				pr.InterestPeriods = append(pr.InterestPeriods, InterestPeriodResponse{
					FromDate:              ip.FromDate.String(),
					DueDate:               ip.DueDate.String(),
					BalanceChange:         ip.BalanceChange.String(),
					OutstandingBalance:    ip.OutstandingBalance.String(),
					RateFactor:            ip.RateFactor.String(),
					CalculatedDueInterest: ip.CalculatedDueInterest.String(),
				})
			}
		}
		resp.Periods = append(resp.Periods, pr)
	}
	return resp
}

type DueAmountsResponse struct {
	LoanID        string `json:"loanId"`
	PeriodDueDate string `json:"periodDueDate"`
	AsOf          string `json:"asOf"`
	EMI           string `json:"emi"`
	Principal     string `json:"principal"`
	Interest      string `json:"interest"`
	Total         string `json:"total"`
}

func NewDueAmountsResponse(loanID int64, periodDueDate, asOf civil.Date, due emi.DueAmounts) DueAmountsResponse {
	return DueAmountsResponse{
		LoanID:        strconv.FormatInt(loanID, 10),
		PeriodDueDate: periodDueDate.String(),
		AsOf:          asOf.String(),
		EMI:           due.EMI.String(),
		Principal:     due.Principal.String(),
		Interest:      due.Interest.String(),
		Total:         due.Total().String(),
	}
}
