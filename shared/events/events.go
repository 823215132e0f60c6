package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountCreated      = "account.created"
	AccountDeleted      = "account.deleted"
	AccountStateChanged = "account.state_changed"

	TransferRequested = "transfer.requested"
	TransferCompleted = "transfer.completed"
)

// Stream names
const (
	AccountEventsStream    = "account.events"
	TransferRequestsStream = "transfer.requests"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Account events
type AccountCreatedEvent struct {
	AccountID     string          `json:"accountId"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
}

type AccountDeletedEvent struct {
	AccountID string `json:"accountId"`
}

type AccountStateChangedEvent struct {
	AccountID string `json:"accountId"`
	Locked    bool   `json:"locked"`
}

// Transfer events
type TransferRequestedEvent struct {
	OperationID          string          `json:"operationId"`
	SourceAccountID      string          `json:"sourceAccount"`
	DestinationAccountID string          `json:"destinationAccount"`
	Amount               decimal.Decimal `json:"amount"`
}

type TransferCompletedEvent struct {
	OperationID          string          `json:"operationId"`
	SourceAccountID      string          `json:"sourceAccount"`
	DestinationAccountID string          `json:"destinationAccount"`
	Amount               decimal.Decimal `json:"amount"`
	Success              bool            `json:"success"`
	Code                 int             `json:"code"`
	Message              string          `json:"message"`
}
