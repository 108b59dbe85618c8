package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/infrastructure/monitoring"
	"loan-schedule-engine/internal/pkg/apperrors"

	amqp "github.com/rabbitmq/amqp091-go"
)

type TransactionPoster interface {
	PostTransaction(ctx context.Context, loanID int64, tx loan.Transaction) (*loan.Transaction, error)
}

type TransactionEventHandler struct {
	service TransactionPoster
	logger  *slog.Logger
}

func NewTransactionEventHandler(service TransactionPoster, logger *slog.Logger) *TransactionEventHandler {
	return &TransactionEventHandler{
		service: service,
		logger:  logger.With("component", "TransactionEventHandler"),
	}
}

func (h *TransactionEventHandler) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	logCtx := h.logger.With(slog.Uint64("deliveryTag", d.DeliveryTag), slog.String("routingKey", d.RoutingKey))
	processed := false

	defer func() {
		if !processed {
			logCtx.WarnContext(ctx, "Message processing ended without explicit Ack/Nack")
			_ = d.Nack(false, false)
		}
	}()

	if d.RoutingKey != RoutingKeyTransactionPosted {
		logCtx.WarnContext(ctx, "Received message with unknown routing key. Discarding.")
		_ = d.Reject(false)
		monitoring.RecordMessageConsumed(d.RoutingKey, apperrors.ErrInvalidArgument)
		processed = true
		return
	}

	err := h.handle(ctx, logCtx, d.Body)
	monitoring.RecordMessageConsumed(d.RoutingKey, err)
	processed = true

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logCtx.ErrorContext(ctx, "Failed to acknowledge message after successful processing", "error", ackErr)
			return
		}
		logCtx.InfoContext(ctx, "Successfully processed and acknowledged message")
	case isPermanent(err):
		logCtx.ErrorContext(ctx, "Dropping transaction event that can never apply", "error", err)
		_ = d.Nack(false, false)
	default:
		logCtx.ErrorContext(ctx, "Failed to apply transaction event, requeueing", "error", err)
		_ = d.Nack(false, true)
	}
}

func (h *TransactionEventHandler) handle(ctx context.Context, logCtx *slog.Logger, body []byte) error {
	var event LoanTransactionPostedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logCtx.ErrorContext(ctx, "Failed to unmarshal LoanTransactionPostedEvent", "error", err, "body", string(body))
		return errors.Join(apperrors.ErrInvalidArgument, err)
	}

	tx, err := event.Payload.ToTransaction()
	if err != nil {
		return err
	}

	logCtx.InfoContext(ctx, "Processing transaction event", "eventId", event.EventID, "loanID", tx.LoanID, "type", tx.Type)
	_, err = h.service.PostTransaction(ctx, tx.LoanID, tx)
	return err
}

func isPermanent(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidArgument) ||
		errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrInvalidScheduleInput) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrLoanClosed)
}
