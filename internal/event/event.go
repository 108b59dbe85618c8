package event

import (
	"fmt"
	"time"

	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const RoutingKeyTransactionPosted = "loan.transaction.posted"

// LoanTransactionPostedEvent is published by upstream ledgers when money
// moves or terms change on a loan. Dates are YYYY-MM-DD, amounts are decimal
// strings.
type LoanTransactionPostedEvent struct {
	EventID   string                   `json:"eventId"`
	Timestamp time.Time                `json:"timestamp"`
	Payload   TransactionPostedPayload `json:"payload"`
}

type TransactionPostedPayload struct {
	LoanID          int64  `json:"loanId"`
	Type            string `json:"type"`
	TransactionDate string `json:"transactionDate"`
	PeriodDueDate   string `json:"periodDueDate,omitempty"`
	Amount          string `json:"amount,omitempty"`
	Rate            string `json:"rate,omitempty"`
}

func (p TransactionPostedPayload) ToTransaction() (loan.Transaction, error) {
	tx := loan.Transaction{
		LoanID: p.LoanID,
		Type:   loan.TransactionType(p.Type),
		Amount: decimal.Zero,
		Rate:   decimal.Zero,
	}

	var err error
	if tx.TransactionDate, err = civil.ParseDate(p.TransactionDate); err != nil {
		return loan.Transaction{}, apperrors.NewValidationError("transactionDate", "must be YYYY-MM-DD")
	}
	if p.PeriodDueDate != "" {
		if tx.PeriodDueDate, err = civil.ParseDate(p.PeriodDueDate); err != nil {
			return loan.Transaction{}, apperrors.NewValidationError("periodDueDate", "must be YYYY-MM-DD")
		}
	}
	if p.Amount != "" {
		if tx.Amount, err = decimal.NewFromString(p.Amount); err != nil {
			return loan.Transaction{}, apperrors.NewValidationError("amount", fmt.Sprintf("invalid decimal %q", p.Amount))
		}
	}
	if p.Rate != "" {
		if tx.Rate, err = decimal.NewFromString(p.Rate); err != nil {
			return loan.Transaction{}, apperrors.NewValidationError("rate", fmt.Sprintf("invalid decimal %q", p.Rate))
		}
	}
	return tx, nil
}
