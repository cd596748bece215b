// Package store provides the persistence primitives used by the mapper.
// Documents are addressed by (collection, name); the backing store's native
// identity field is never used.
package store

import (
	"context"
	"errors"
)

// NameField is the identity key every document is stored under. It must be
// covered by a unique index in the backing store (see EnsureNameIndex).
const NameField = "_name_"

var (
	ErrNotFound      = errors.New("document not found")
	ErrDuplicateName = errors.New("duplicate document name")
)

// Fields is a flat document body mapping attribute names to values.
type Fields map[string]any

// Clone returns a shallow copy of f. Dictionary values are copied one level
// deep so callers cannot alias stored state.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		if m, ok := v.(map[string]any); ok {
			mc := make(map[string]any, len(m))
			for mk, mv := range m {
				mc[mk] = mv
			}
			out[k] = mc
			continue
		}
		out[k] = v
	}
	return out
}

// Record pairs a document name with its fields, as returned by Find.
type Record struct {
	Name   string
	Fields Fields
}

// Store is the primitive load/save layer the registry sits on. Every call is
// synchronous; durability is the store's, not the caller's, and a successful
// return means the write is committed.
type Store interface {
	// Load returns the fields of the named document, or ErrNotFound.
	Load(ctx context.Context, collection, name string) (Fields, error)

	// Insert creates the named document. It fails with ErrDuplicateName if a
	// document with the same name already exists in the collection; the check
	// is atomic at the store (unique index), not check-then-insert.
	Insert(ctx context.Context, collection, name string, fields Fields) error

	// Update sets a single field on the named document, or ErrNotFound if the
	// document no longer exists.
	Update(ctx context.Context, collection, name, field string, value any) error

	// UpdateFields sets several fields in one write.
	UpdateFields(ctx context.Context, collection, name string, fields Fields) error

	// Find returns every document whose fields equal the given filter values.
	// A nil filter matches the whole collection.
	Find(ctx context.Context, collection string, filter Fields) ([]Record, error)

	// Delete removes the named document, or ErrNotFound.
	Delete(ctx context.Context, collection, name string) error

	// EnsureNameIndex installs the unique index on NameField for a collection.
	EnsureNameIndex(ctx context.Context, collection string) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
