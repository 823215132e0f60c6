// Package transfer moves funds between two accounts with a reserve, credit,
// commit sequence and a single compensating release when the credit fails.
package transfer

import (
	"github.com/eaglebank/ledger-service/internal/ledger"
	"github.com/shopspring/decimal"
)

// Request is a single transfer intent. OperationID names the reservation
// taken on the source account and must be unique per transfer.
type Request struct {
	OperationID string
	Amount      decimal.Decimal
}

// Orchestrator is stateless; the zero value is ready to use.
type Orchestrator struct{}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{}
}

// Execute transfers req.Amount from source to destination. A nil destination
// means the destination account does not exist.
func (o *Orchestrator) Execute(source, destination ledger.Account, req Request) Result {
	if destination == nil {
		return DestinationAccountNotFound
	}
	if !req.Amount.IsPositive() {
		return AmountMustBeMoreThanZero
	}
	if !source.Reserve(req.Amount, req.OperationID) {
		return SourceAccountNotEnoughResources
	}
	if !destination.Credit(req.Amount) {
		source.Release(req.OperationID)
		return DestinationAccountLocked
	}
	source.Commit(req.OperationID)
	return Success
}
