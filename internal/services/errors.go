package services

import "errors"

// Checkout workflow errors. Handlers translate these to HTTP statuses with
// errors.Is; the comments note the retry semantics each one carries.
var (
	// ErrValidation covers bad or missing input. Rejected immediately,
	// never retried.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyCart means there is nothing to check out.
	ErrEmptyCart = errors.New("cart is empty, nothing to checkout")
	// ErrOrderNotFound means the order id does not exist. Not retryable.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderTerminal means the order is already paid, expired, or
	// failed verification. Not retryable; a fresh order is required.
	ErrOrderTerminal = errors.New("order already in a terminal state")
	// ErrGatewayUnavailable means the external gateway call failed or
	// timed out. Retryable with backoff; the open-session idempotency
	// guarantee makes the retry safe.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrSignatureInvalid means the callback signature did not match.
	// Terminal for the payment session; the same callback is never
	// retried.
	ErrSignatureInvalid = errors.New("payment signature invalid")
	// ErrReplayAnomaly means a callback targeted an already-paid order
	// with a different payment id. Logged and rejected, never re-applied.
	ErrReplayAnomaly = errors.New("anomalous replay of payment callback")
)
