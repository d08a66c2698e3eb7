package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNoActiveCard       = errors.New("no verified card for provider")
	ErrCardAlreadyExists  = errors.New("card number already bound to another subscriber")
	ErrPaymentDeclined    = errors.New("payment declined by provider")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrLockNotAcquired    = errors.New("could not acquire lock")
)
