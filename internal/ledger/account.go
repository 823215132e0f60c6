package ledger

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Account is a single balance holder. Implementations must make every
// mutating call atomic with respect to the others on the same account.
type Account interface {
	ID() string
	Balance() decimal.Decimal
	ReservedTotal() decimal.Decimal
	Snapshot() Ledger

	Reserve(amount decimal.Decimal, operationID string) bool
	Release(operationID string)
	Commit(operationID string)
	Credit(amount decimal.Decimal) bool

	Lock()
	Unlock()
	IsLocked() bool
	IsEmpty() bool

	// TryClose permanently closes the account if it is locked and empty.
	TryClose() bool

	// Version increases with every change to the ledger or the lock flag.
	Version() uint64
}

// InMemoryAccount keeps its Ledger as an atomically published snapshot.
// Writers serialize on mu and swap in a new snapshot; readers load the
// current one without taking the lock.
type InMemoryAccount struct {
	id string

	mu      sync.Mutex
	closed  bool
	ledger  atomic.Pointer[Ledger]
	locked  atomic.Bool
	version atomic.Uint64
}

var _ Account = (*InMemoryAccount)(nil)

// NewInMemoryAccount creates an unlocked account holding the normalized initial amount.
func NewInMemoryAccount(id string, initial decimal.Decimal) *InMemoryAccount {
	a := &InMemoryAccount{id: id}
	l := New(Normalize(initial))
	a.ledger.Store(&l)
	return a
}

func (a *InMemoryAccount) ID() string {
	return a.id
}

// Snapshot returns the current ledger. It is immutable and safe to keep.
func (a *InMemoryAccount) Snapshot() Ledger {
	return *a.ledger.Load()
}

// Version is bumped inside the critical section after each change is
// published, so state read after Version is at least that new.
func (a *InMemoryAccount) Version() uint64 {
	return a.version.Load()
}

// publish swaps in next and bumps the version. Callers hold mu.
func (a *InMemoryAccount) publish(next Ledger) {
	a.ledger.Store(&next)
	a.version.Add(1)
}

func (a *InMemoryAccount) Balance() decimal.Decimal {
	return a.Snapshot().Available()
}

func (a *InMemoryAccount) ReservedTotal() decimal.Decimal {
	return a.Snapshot().ReservedTotal()
}

func (a *InMemoryAccount) IsEmpty() bool {
	return a.Snapshot().IsEmpty()
}

func (a *InMemoryAccount) IsLocked() bool {
	return a.locked.Load()
}

// Reserve holds amount under operationID. It returns false without touching
// the ledger when the amount is not coverable, the id is already reserved,
// or the account has been closed.
func (a *InMemoryAccount) Reserve(amount decimal.Decimal, operationID string) bool {
	amount = Normalize(amount)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}
	next, err := a.ledger.Load().Reserve(amount, operationID)
	if err != nil {
		return false
	}
	a.publish(next)
	return true
}

// Release returns a reservation to available. Unknown ids are ignored.
func (a *InMemoryAccount) Release(operationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.ledger.Load().Release(operationID)
	if err != nil {
		return
	}
	a.publish(next)
}

// Commit makes a reservation's debit permanent. Unknown ids are ignored.
func (a *InMemoryAccount) Commit(operationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.ledger.Load().Commit(operationID)
	if err != nil {
		return
	}
	a.publish(next)
}

// Credit adds a positive amount to available. Locked accounts refuse credits;
// the flag is read under the same lock that Lock takes, so a credit can never
// land after a lock that this path already observed.
func (a *InMemoryAccount) Credit(amount decimal.Decimal) bool {
	amount = Normalize(amount)
	if !amount.IsPositive() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.locked.Load() {
		return false
	}
	next, err := a.ledger.Load().Credit(amount)
	if err != nil {
		return false
	}
	a.publish(next)
	return true
}

func (a *InMemoryAccount) Lock() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.locked.Swap(true) {
		a.version.Add(1)
	}
}

// Unlock clears the lock flag. A closed account stays locked.
func (a *InMemoryAccount) Unlock() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	if a.locked.Swap(false) {
		a.version.Add(1)
	}
}

func (a *InMemoryAccount) TryClose() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return true
	}
	if !a.locked.Load() || !a.ledger.Load().IsEmpty() {
		return false
	}
	a.closed = true
	a.version.Add(1)
	return true
}
