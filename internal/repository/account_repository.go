package repository

import (
	"errors"
	"sync"

	"github.com/eaglebank/ledger-service/internal/ledger"
	"github.com/eaglebank/ledger-service/shared/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountNotRemovable   = errors.New("account must be locked and empty to be removed")
	ErrNegativeInitialAmount = errors.New("initial amount must not be negative")
)

// AccountStore is the account directory: it owns at most one live Account per id.
type AccountStore interface {
	Create(initial decimal.Decimal) (string, error)
	Get(id string) (ledger.Account, bool)
	// Remove deletes an account that is locked and empty. It returns
	// ErrAccountNotFound for unknown ids and false when the account is
	// present but not removable.
	Remove(id string) (bool, error)
	Exists(id string) bool
	Len() int
}

// InMemoryAccountStore keeps accounts in a map guarded by a RWMutex.
type InMemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]ledger.Account
	newID    func() string
}

var _ AccountStore = (*InMemoryAccountStore)(nil)

func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{
		accounts: make(map[string]ledger.Account),
		newID:    utils.NewAccountID,
	}
}

func (s *InMemoryAccountStore) Create(initial decimal.Decimal) (string, error) {
	initial = ledger.Normalize(initial)
	if initial.IsNegative() {
		return "", ErrNegativeInitialAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for _, taken := s.accounts[id]; taken; _, taken = s.accounts[id] {
		id = s.newID()
	}
	s.accounts[id] = ledger.NewInMemoryAccount(id, initial)
	return id, nil
}

func (s *InMemoryAccountStore) Get(id string) (ledger.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	return acc, ok
}

// Remove closes the account inside its own critical section before dropping
// it from the map, so no reservation or credit can slip in between the
// locked-and-empty check and the delete.
func (s *InMemoryAccountStore) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return false, ErrAccountNotFound
	}
	if !acc.TryClose() {
		return false, nil
	}
	delete(s.accounts, id)
	return true, nil
}

func (s *InMemoryAccountStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[id]
	return ok
}

func (s *InMemoryAccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.accounts)
}
