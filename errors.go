package uodm

import (
	"errors"

	"github.com/davrot/uodm/store"
)

var (
	// ErrConnection wraps a failure to reach or authenticate with the store.
	ErrConnection = errors.New("uodm: connection failed")

	// ErrNotFound is returned when a named document does not exist. It is the
	// store package's sentinel, re-exported so callers only import uodm.
	ErrNotFound = store.ErrNotFound

	// ErrDuplicateName is returned when an insert collides with an existing
	// document name in the same collection.
	ErrDuplicateName = store.ErrDuplicateName

	// ErrImmutableAttribute is returned by Set on an immutable attribute that
	// already carries a non-default value.
	ErrImmutableAttribute = errors.New("uodm: attribute is immutable")

	// ErrUnknownAttribute is returned for fields not declared in the schema.
	ErrUnknownAttribute = errors.New("uodm: unknown attribute")

	// ErrInvalidValue is returned for values outside the declared shape.
	ErrInvalidValue = errors.New("uodm: invalid value")

	// ErrDanglingReference is returned when a reference attribute points at a
	// document that no longer exists.
	ErrDanglingReference = errors.New("uodm: dangling reference")
)
