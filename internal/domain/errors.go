package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NotFoundError via errors.Is
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UnknownLineError is returned when a pick references a line the order does not contain
type UnknownLineError struct {
	LineID string
}

func (e *UnknownLineError) Error() string {
	return fmt.Sprintf("unknown order line %q", e.LineID)
}

// AlreadyCompletedError is returned when mutating an order in its terminal state
type AlreadyCompletedError struct {
	OrderID string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("order %s is already completed", e.OrderID)
}

// NotFoundError reports an unknown order, product or user id
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StorageError wraps a failure of the persistence layer
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
