package models

import "github.com/shopspring/decimal"

// AccountSummary is the externally visible state of an account.
// Available and Blocked are read from the same ledger snapshot.
type AccountSummary struct {
	ID        string          `json:"id"`
	Available decimal.Decimal `json:"available"`
	Blocked   decimal.Decimal `json:"blocked"`
	IsLocked  bool            `json:"isLocked"`
}

// AccountState carries only the lock flag of an account.
type AccountState struct {
	Locked bool `json:"locked"`
}
