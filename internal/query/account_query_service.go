package query

import (
	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/models"
)

// AccountQueryService answers reads straight from the account directory.
type AccountQueryService struct {
	store repository.AccountStore
}

func NewAccountQueryService(store repository.AccountStore) *AccountQueryService {
	return &AccountQueryService{store: store}
}

// GetAccount returns the summary of a single account.
func (s *AccountQueryService) GetAccount(q cqrs.GetAccountQuery) (*models.AccountSummary, error) {
	acc, ok := s.store.Get(q.AccountID)
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return repository.AccountToSummary(acc), nil
}

func (s *AccountQueryService) GetAccountState(q cqrs.GetAccountStateQuery) (*models.AccountState, error) {
	acc, ok := s.store.Get(q.AccountID)
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &models.AccountState{Locked: acc.IsLocked()}, nil
}
