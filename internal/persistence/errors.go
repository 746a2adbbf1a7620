package persistence

import (
	"errors"
	"fmt"
)

// Sentinel errors every gateway implementation wraps.
var (
	// ErrNotFound indicates no entity exists with the given identifier.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = errors.New("conflict")

	// ErrInvalid indicates the entity failed validation or references
	// something that does not exist.
	ErrInvalid = errors.New("invalid")
)

// Error adds the failed operation and the entity it targeted.
type Error struct {
	Op     string // e.g. "create", "update", "delete"
	Entity string // "workflow", "state", "transition" or "gate"
	ID     string
	Err    error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err and an *Error otherwise.
func Wrap(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Entity: entity, ID: id, Err: err}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
