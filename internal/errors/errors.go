// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrDuplicateEntry   = errors.New("already in watchlist")
	ErrRowOutOfRange    = errors.New("watchlist row out of range")
	ErrOrderRejected    = errors.New("order rejected")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrStoreUnavailable = errors.New("persistence store unavailable")
)

// TransportError represents a failed network or broker call. It is
// always recoverable: the operation that triggered it is aborted and
// the failure is surfaced as a status message, never as a fatal exit.
type TransportError struct {
	Op  string // the broker operation, e.g. "scrip_master", "quotes"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure [%s]: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("order error [%s] %s %s: %v", e.OrderID, e.Action, e.Symbol, e.Err)
	}
	return fmt.Sprintf("order error %s %s: %v", e.Action, e.Symbol, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action string, err error) *OrderError {
	return &OrderError{OrderID: orderID, Symbol: symbol, Action: action, Err: err}
}

// BatchSummary aggregates the outcome of a batch operation that
// continues past individual failures (bulk master load, close-all).
type BatchSummary struct {
	Succeeded int
	Errors    []error
}

// Add records the outcome of one item.
func (b *BatchSummary) Add(err error) {
	if err == nil {
		b.Succeeded++
		return
	}
	b.Errors = append(b.Errors, err)
}

// Failed reports the number of failed items.
func (b *BatchSummary) Failed() int {
	return len(b.Errors)
}

// Err returns nil when every item succeeded, otherwise a single error
// summarizing the batch.
func (b *BatchSummary) Err() error {
	if len(b.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d operations failed: %v", len(b.Errors), b.Succeeded+len(b.Errors), errors.Join(b.Errors...))
}

// String renders a one-line status summary.
func (b *BatchSummary) String() string {
	if len(b.Errors) == 0 {
		return fmt.Sprintf("%d succeeded", b.Succeeded)
	}
	return fmt.Sprintf("%d succeeded, %d failed: %v", b.Succeeded, len(b.Errors), b.Errors)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
