package cqrs

import "github.com/shopspring/decimal"

type CreateAccountCommand struct {
	InitialAmount decimal.Decimal
}

type DeleteAccountCommand struct {
	AccountID string
}

type SetAccountStateCommand struct {
	AccountID string
	Locked    bool
}

// TransferCommand moves Amount from SourceAccountID to DestinationAccountID.
// An empty OperationID is replaced with a generated one.
type TransferCommand struct {
	OperationID          string
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
}
