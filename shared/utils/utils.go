package utils

import "github.com/google/uuid"

// NewAccountID returns a fresh account identifier.
func NewAccountID() string {
	return uuid.NewString()
}

// NewOperationID returns a fresh transfer operation identifier.
func NewOperationID() string {
	return uuid.NewString()
}

// ValidateAccountID reports whether id has the shape of an account identifier.
func ValidateAccountID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
