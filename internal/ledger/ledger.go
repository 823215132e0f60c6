// Package ledger holds the balance engine: an immutable Ledger snapshot of
// available funds plus in-flight reservations, and the Account that guards
// a Ledger against concurrent mutation.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale int32 = 2

var (
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientFunds    = errors.New("insufficient available funds")
	ErrDuplicateReservation = errors.New("reservation already exists for operation")
	ErrReservationNotFound  = errors.New("reservation not found")
)

// Normalize rounds a caller-supplied amount to two fractional digits using
// round-half-to-even.
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(Scale)
}

// Ledger is a value: every mutating method returns a new Ledger and leaves
// the receiver untouched, so a published snapshot can be read without locks.
type Ledger struct {
	available    decimal.Decimal
	reservations map[string]decimal.Decimal
}

// New returns a Ledger holding the given available amount and no reservations.
// The amount is stored as given; callers normalize it first.
func New(available decimal.Decimal) Ledger {
	return Ledger{
		available:    available,
		reservations: map[string]decimal.Decimal{},
	}
}

// Available returns the funds not held by any reservation.
func (l Ledger) Available() decimal.Decimal {
	return l.available
}

// CanReserve reports whether amount is positive and covered by available funds.
func (l Ledger) CanReserve(amount decimal.Decimal) bool {
	return amount.IsPositive() && l.available.Sub(amount).GreaterThanOrEqual(decimal.Zero)
}

// Reserve moves amount from available into a reservation keyed by operationID.
// A second reservation under the same id is rejected so the first reserved
// amount is never lost from the books.
func (l Ledger) Reserve(amount decimal.Decimal, operationID string) (Ledger, error) {
	if !amount.IsPositive() {
		return l, ErrInvalidAmount
	}
	if !l.CanReserve(amount) {
		return l, ErrInsufficientFunds
	}
	if l.HasReservation(operationID) {
		return l, ErrDuplicateReservation
	}

	next := l.cloneReservations()
	next[operationID] = amount
	return Ledger{available: l.available.Sub(amount), reservations: next}, nil
}

// HasReservation reports whether operationID currently holds funds.
func (l Ledger) HasReservation(operationID string) bool {
	_, ok := l.reservations[operationID]
	return ok
}

// Reservation returns the amount held by operationID.
func (l Ledger) Reservation(operationID string) (decimal.Decimal, bool) {
	amount, ok := l.reservations[operationID]
	return amount, ok
}

// Release returns the reserved amount to available and forgets the reservation.
func (l Ledger) Release(operationID string) (Ledger, error) {
	amount, ok := l.reservations[operationID]
	if !ok {
		return l, ErrReservationNotFound
	}

	next := l.cloneReservations()
	delete(next, operationID)
	return Ledger{available: l.available.Add(amount), reservations: next}, nil
}

// Commit forgets the reservation, making the debit taken at Reserve permanent.
func (l Ledger) Commit(operationID string) (Ledger, error) {
	if !l.HasReservation(operationID) {
		return l, ErrReservationNotFound
	}

	next := l.cloneReservations()
	delete(next, operationID)
	return Ledger{available: l.available, reservations: next}, nil
}

// Credit adds amount to available. Lock checks belong to the Account; only
// negative amounts are refused here since they could drive available below zero.
func (l Ledger) Credit(amount decimal.Decimal) (Ledger, error) {
	if amount.IsNegative() {
		return l, ErrInvalidAmount
	}
	return Ledger{available: l.available.Add(amount), reservations: l.cloneReservations()}, nil
}

// ReservedTotal sums every in-flight reservation.
func (l Ledger) ReservedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range l.reservations {
		total = total.Add(amount)
	}
	return total
}

// Total is available plus reserved funds.
func (l Ledger) Total() decimal.Decimal {
	return l.available.Add(l.ReservedTotal())
}

// IsEmpty reports whether the ledger holds no value at all.
func (l Ledger) IsEmpty() bool {
	return l.Total().IsZero()
}

// ReservationCount returns the number of in-flight reservations.
func (l Ledger) ReservationCount() int {
	return len(l.reservations)
}

// Reservations returns a copy of the in-flight reservations.
func (l Ledger) Reservations() map[string]decimal.Decimal {
	return l.cloneReservations()
}

func (l Ledger) cloneReservations() map[string]decimal.Decimal {
	next := make(map[string]decimal.Decimal, len(l.reservations)+1)
	for id, amount := range l.reservations {
		next[id] = amount
	}
	return next
}
