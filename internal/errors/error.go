// Package errors provides custom error types for sweet catalog and inventory operations.
package errors

import (
	"errors"
	"fmt"
)

var ErrSweetNotFound = errors.New("sweet not found")
var ErrDuplicateName = errors.New("sweet with this name already exists")

// ErrInvalidValue is wrapped with the offending field, e.g. "invalid sweet value: price cannot be negative".
var ErrInvalidValue = errors.New("invalid sweet value")

var ErrInvalidQuantity = errors.New("quantity must be at least 1")
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrConflict is returned when concurrent modifications kept winning the race for a record
// and the retry budget is exhausted. Safe to retry.
var ErrConflict = errors.New("concurrent modification conflict, retry later")

var ErrVersionMismatch = errors.New("optimistic lock error: the record has been modified by another transaction")
var ErrStoreUnavailable = errors.New("sweet store is temporarily unavailable")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")

// InsufficientStockError reports a purchase that asked for more than is on the shelf.
type InsufficientStockError struct {
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock. Available: %d", e.Available)
}

// Unwrap lets callers match the error with errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
