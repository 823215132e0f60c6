package cqrs

// GetAccountQuery fetches the summary of a single account.
type GetAccountQuery struct {
	AccountID string
}

// GetAccountStateQuery fetches the lock flag of a single account.
type GetAccountStateQuery struct {
	AccountID string
}
