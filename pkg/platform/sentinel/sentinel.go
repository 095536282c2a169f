// Package sentinel declares the errors stores return for factual resource
// states. Services translate them into coded domain errors; validation
// failures never use these.
package sentinel

import "errors"

var (
	// ErrNotFound: the entity does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness constraint is already satisfied by another
	// record.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the entity is in the wrong state for the requested
	// operation.
	ErrInvalidState = errors.New("invalid state")
)
