package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/utils"
	"go.uber.org/zap"
)

// OperationClaimer marks an operation id as processed, returning false when
// another delivery already claimed it.
type OperationClaimer interface {
	ClaimOperation(ctx context.Context, operationID string) (bool, error)
}

// TransferRequestHandler executes transfer.requested events read from the
// transfer request stream. Each operation id runs at most once.
type TransferRequestHandler struct {
	commands *AccountCommandService
	claimer  OperationClaimer
	logger   *zap.Logger
}

func NewTransferRequestHandler(commands *AccountCommandService, claimer OperationClaimer, logger *zap.Logger) *TransferRequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferRequestHandler{commands: commands, claimer: claimer, logger: logger}
}

// Handle satisfies events.Handler. A returned error leaves the message
// pending for redelivery; everything else is acknowledged.
func (h *TransferRequestHandler) Handle(ctx context.Context, event events.Event) error {
	if event.Type != events.TransferRequested {
		h.logger.Debug("ignoring event", zap.String("type", event.Type))
		return nil
	}

	var req events.TransferRequestedEvent
	if err := events.Decode(event, &req); err != nil {
		h.logger.Warn("dropping malformed transfer request", zap.Error(err))
		return nil
	}
	if req.OperationID == "" {
		h.logger.Warn("dropping transfer request without operation id",
			zap.String("source", req.SourceAccountID))
		return nil
	}
	if !utils.ValidateAccountID(req.SourceAccountID) {
		h.logger.Warn("dropping transfer request with malformed source account",
			zap.String("operation_id", req.OperationID),
			zap.String("source", req.SourceAccountID))
		return nil
	}

	claimed, err := h.claimer.ClaimOperation(ctx, req.OperationID)
	if err != nil {
		return fmt.Errorf("claim %s: %w", req.OperationID, err)
	}
	if !claimed {
		h.logger.Info("skipping duplicate transfer request", zap.String("operation_id", req.OperationID))
		return nil
	}

	result, err := h.commands.Transfer(ctx, cqrs.TransferCommand{
		OperationID:          req.OperationID,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		h.logger.Warn("transfer request for unknown source account",
			zap.String("operation_id", req.OperationID),
			zap.String("source", req.SourceAccountID))
		return nil
	}
	if err != nil {
		return err
	}

	h.logger.Debug("transfer request handled",
		zap.String("operation_id", req.OperationID),
		zap.Bool("success", result.Success))
	return nil
}
