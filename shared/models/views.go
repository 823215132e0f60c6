package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountView is the projection of an account written to the Redis read model.
// It is refreshed after every mutation so downstream consumers never need to
// call into this service to see a balance.
type AccountView struct {
	ID           string          `json:"id"`
	Available    decimal.Decimal `json:"available"`
	Blocked      decimal.Decimal `json:"blocked"`
	IsLocked     bool            `json:"isLocked"`
	Reservations int             `json:"reservations"`
	Version      uint64          `json:"version"`
	UpdatedAt    time.Time       `json:"updatedTimestamp"`
}

// TransferOutcome records a finished transfer for the event stream and logs.
type TransferOutcome struct {
	OperationID          string          `json:"operationId"`
	SourceAccountID      string          `json:"sourceAccount"`
	DestinationAccountID string          `json:"destinationAccount"`
	Amount               decimal.Decimal `json:"amount"`
	Success              bool            `json:"success"`
	Code                 int             `json:"code"`
	Message              string          `json:"message"`
}
