package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"loan-schedule-engine/internal/api/handler/dto"
	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/pkg/apperrors"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
)

type LoanHandler struct {
	service loan.ScheduleService
	logger  *slog.Logger
	today   func() civil.Date
}

func NewLoanHandler(s loan.ScheduleService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
		today:   func() civil.Date { return civil.DateOf(time.Now()) },
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError

	switch {
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrInvalidScheduleInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrComputation):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, apperrors.ErrLoanClosed), errors.Is(err, apperrors.ErrAlreadyExists), errors.Is(err, apperrors.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	respondJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	})
}

func getLoanIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "loanID")
	if idStr == "" {
		return 0, fmt.Errorf("%w: loanID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: loanID must be a positive integer", apperrors.ErrInvalidArgument)
	}
	return id, nil
}

// CreateLoan registers loan terms. The schedule starts empty; principal is
// added by posting DISBURSEMENT transactions.
//
// @Summary Create a new loan
// @Description Registers repayment terms: rate, day-count conventions, frequency, number of repayments and start date.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan terms"
// @Success 201 {object} dto.LoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	params, err := req.ToParams()
	if err != nil {
		respondError(w, err)
		return
	}

	created, err := h.service.CreateLoan(r.Context(), params)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(created))
}

// GetLoan retrieves the terms and status of a loan.
//
// @Summary Retrieve loan details
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Loan details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	l, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

// PostTransaction applies a disbursement, rate change, payment or balance
// correction to the loan and recalculates its schedule.
//
// @Summary Post a loan transaction
// @Description Amount is required for money transactions, rate for RATE_CHANGE and periodDueDate for payments.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.PostTransactionRequest true "Transaction payload"
// @Success 201 {object} dto.TransactionResponse "Transaction applied"
// @Failure 400 {object} dto.ErrorResponse "Invalid payload or transaction outside the schedule"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan is closed"
// @Failure 422 {object} dto.ErrorResponse "Schedule computation failed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/transactions [post]
// @Security BearerAuth
func (h *LoanHandler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.PostTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	tx, err := req.ToTransaction()
	if err != nil {
		respondError(w, err)
		return
	}

	saved, err := h.service.PostTransaction(r.Context(), loanID, tx)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewTransactionResponse(saved))
}

// ListTransactions lists the transactions of a loan in replay order.
//
// @Summary List loan transactions
// @Tags Transactions
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {array} dto.TransactionResponse "Transactions in replay order"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/transactions [get]
// @Security BearerAuth
func (h *LoanHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewTransactionResponses(txs))
}

// GetSchedule returns the current repayment schedule.
//
// @Summary Retrieve the repayment schedule
// @Description Add include=interestPeriods to see the sub-periods of each repayment period.
// @Tags Schedule
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param include query string false "Use 'interestPeriods' to include sub-periods"
// @Success 200 {object} dto.ScheduleResponse "Schedule"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/schedule [get]
// @Security BearerAuth
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	snapshot, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	withInterestPeriods := r.URL.Query().Get("include") == "interestPeriods"
	respondJSON(w, http.StatusOK, dto.NewScheduleResponse(snapshot, withInterestPeriods))
}

// GetDueAmounts projects principal and interest owed for one period.
//
// @Summary Project amounts due for a period
// @Tags Schedule
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param periodDueDate query string true "Due date of the repayment period (YYYY-MM-DD)"
// @Param asOf query string false "Projection date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} dto.DueAmountsResponse "Due amounts"
// @Failure 400 {object} dto.ErrorResponse "Invalid dates or no period is due on periodDueDate"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/due-amounts [get]
// @Security BearerAuth
func (h *LoanHandler) GetDueAmounts(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	q := r.URL.Query()
	periodDueDate, asOf, err := dto.ParseDueAmountsQuery(q.Get("periodDueDate"), q.Get("asOf"), h.today())
	if err != nil {
		respondError(w, err)
		return
	}

	due, err := h.service.GetDueAmounts(r.Context(), loanID, periodDueDate, asOf)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewDueAmountsResponse(loanID, periodDueDate, asOf, due))
}

// RecalculateSchedule rebuilds the schedule from the stored transactions.
//
// @Summary Recalculate the repayment schedule
// @Tags Schedule
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.ScheduleResponse "Recalculated schedule"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/recalculate [post]
// @Security BearerAuth
func (h *LoanHandler) RecalculateSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	snapshot, err := h.service.RecalculateSchedule(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewScheduleResponse(snapshot, false))
}
