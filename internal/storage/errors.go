package storage

import "errors"

// Business-rule errors returned by the billing core. These are
// synchronous caller errors, never retried internally.
var (
	// ErrAccountNotFound is returned when an account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when registering an already-taken username
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientFunds is returned when a debit exceeds the balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOrderNotFound is returned when an order does not exist for the account
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidState is returned when an order is not in the status the
	// requested transition expects
	ErrInvalidState = errors.New("order is not in a valid state for this operation")

	// ErrOrderExpired is returned when confirming an order whose payment
	// deadline has passed
	ErrOrderExpired = errors.New("order has expired")

	// ErrDuplicatePendingOrder is returned when an account already has a
	// live Pending order
	ErrDuplicatePendingOrder = errors.New("account already has a pending order")
)
