package command

import (
	"context"
	"fmt"

	"github.com/eaglebank/ledger-service/internal/ledger"
	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/internal/transfer"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/events"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/eaglebank/ledger-service/shared/utils"
	"go.uber.org/zap"
)

// EventPublisher appends domain events to a stream.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// AccountProjector keeps an external read model of accounts current.
type AccountProjector interface {
	CacheAccountView(ctx context.Context, view *models.AccountView)
	InvalidateAccountView(ctx context.Context, accountID string)
}

type nopProjector struct{}

func (nopProjector) CacheAccountView(context.Context, *models.AccountView) {}
func (nopProjector) InvalidateAccountView(context.Context, string)         {}

// AccountCommandService mutates accounts through the directory, then refreshes
// the projection and publishes an event. Projection and event failures are
// logged and never undo the mutation.
type AccountCommandService struct {
	store     repository.AccountStore
	projector AccountProjector
	publisher EventPublisher
	transfers *transfer.Orchestrator
	logger    *zap.Logger
}

// NewAccountCommandService wires the write side. projector and publisher may
// be nil when Redis is not configured.
func NewAccountCommandService(
	store repository.AccountStore,
	projector AccountProjector,
	publisher EventPublisher,
	logger *zap.Logger,
) *AccountCommandService {
	if projector == nil {
		projector = nopProjector{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountCommandService{
		store:     store,
		projector: projector,
		publisher: publisher,
		transfers: transfer.NewOrchestrator(),
		logger:    logger,
	}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.AccountSummary, error) {
	id, err := s.store.Create(cmd.InitialAmount)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	acc, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("create account %s: %w", id, repository.ErrAccountNotFound)
	}

	s.project(ctx, acc)
	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountID:     id,
		InitialAmount: acc.Balance(),
	})
	s.logger.Info("account created", zap.String("account_id", id), zap.Stringer("initial_amount", acc.Balance()))
	return repository.AccountToSummary(acc), nil
}

func (s *AccountCommandService) DeleteAccount(ctx context.Context, cmd cqrs.DeleteAccountCommand) error {
	removed, err := s.store.Remove(cmd.AccountID)
	if err != nil {
		return err
	}
	if !removed {
		return repository.ErrAccountNotRemovable
	}

	s.projector.InvalidateAccountView(ctx, cmd.AccountID)
	s.publish(ctx, events.AccountDeleted, events.AccountDeletedEvent{AccountID: cmd.AccountID})
	s.logger.Info("account deleted", zap.String("account_id", cmd.AccountID))
	return nil
}

func (s *AccountCommandService) SetAccountState(ctx context.Context, cmd cqrs.SetAccountStateCommand) (*models.AccountState, error) {
	acc, ok := s.store.Get(cmd.AccountID)
	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	if cmd.Locked {
		acc.Lock()
	} else {
		acc.Unlock()
	}

	state := &models.AccountState{Locked: acc.IsLocked()}
	s.project(ctx, acc)
	s.publish(ctx, events.AccountStateChanged, events.AccountStateChangedEvent{
		AccountID: cmd.AccountID,
		Locked:    state.Locked,
	})
	return state, nil
}

// Transfer runs a transfer out of cmd.SourceAccountID. An unknown source is an
// error; every other failure is reported through the returned Result.
func (s *AccountCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (transfer.Result, error) {
	source, ok := s.store.Get(cmd.SourceAccountID)
	if !ok {
		return transfer.Result{}, repository.ErrAccountNotFound
	}

	var destination ledger.Account
	if acc, found := s.store.Get(cmd.DestinationAccountID); found {
		destination = acc
	}

	operationID := cmd.OperationID
	if operationID == "" {
		operationID = utils.NewOperationID()
	}

	result := s.transfers.Execute(source, destination, transfer.Request{
		OperationID: operationID,
		Amount:      cmd.Amount,
	})
	// Accounts round every amount they accept; report what actually moved.
	amount := ledger.Normalize(cmd.Amount)

	s.project(ctx, source)
	if destination != nil && result.Success {
		s.project(ctx, destination)
	}
	s.publish(ctx, events.TransferCompleted, events.TransferCompletedEvent{
		OperationID:          operationID,
		SourceAccountID:      cmd.SourceAccountID,
		DestinationAccountID: cmd.DestinationAccountID,
		Amount:               amount,
		Success:              result.Success,
		Code:                 int(result.Code),
		Message:              result.Message,
	})

	s.logger.Info("transfer finished",
		zap.String("operation_id", operationID),
		zap.String("source", cmd.SourceAccountID),
		zap.String("destination", cmd.DestinationAccountID),
		zap.Stringer("amount", amount),
		zap.Stringer("outcome", result.Code),
	)
	return result, nil
}

func (s *AccountCommandService) project(ctx context.Context, acc ledger.Account) {
	s.projector.CacheAccountView(ctx, repository.AccountToView(acc))
}

func (s *AccountCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
