package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core unwraps to one of these.
var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRoutingUnresolved = errors.New("routing unresolved")
	ErrUnavailable       = errors.New("unavailable")
	ErrForbidden         = errors.New("forbidden")

	// ErrStaleWrite is a Conflict raised when the stored row changed after it was read.
	ErrStaleWrite = fmt.Errorf("%w: stale write", ErrConflict)
)

// Error ties an error kind to the entity that caused it.
type Error struct {
	Kind   error
	Entity string
	ID     string
	Msg    string
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Entity, e.Msg)
	}
	return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Entity, e.ID, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NewValidationError(entity, id, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

func NewTransitionError(entity, id string, from, to fmt.Stringer) error {
	return &Error{
		Kind:   ErrInvalidTransition,
		Entity: entity,
		ID:     id,
		Msg:    fmt.Sprintf("cannot move from %s to %s", from, to),
	}
}

func NewNotFoundError(entity, id string) error {
	return &Error{Kind: ErrNotFound, Entity: entity, ID: id, Msg: "does not exist"}
}

func NewConflictError(entity, id, format string, args ...any) error {
	return &Error{Kind: ErrConflict, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

func NewStaleWriteError(entity, id string) error {
	return &Error{Kind: ErrStaleWrite, Entity: entity, ID: id, Msg: "changed by another writer"}
}

func NewForbiddenError(entity, id, format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// AsError extracts the entity details from err, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Kind reports which error kind err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrValidation, ErrInvalidTransition, ErrNotFound, ErrConflict,
		ErrRoutingUnresolved, ErrUnavailable, ErrForbidden,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
