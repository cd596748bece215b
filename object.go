package uodm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/davrot/uodm/store"
)

// Object is the live handle for one document. Attribute writes are persisted
// through the owning registry's store before the in-memory copy is updated,
// so a successful Set is durable when it returns. Reads are served from the
// in-memory copy: read-your-writes holds for writes made through this same
// instance; changes made by other processes are not visible until Reload.
//
// Objects are only obtained from a registry (ODM); constructing one directly
// would defeat the one-instance-per-document guarantee.
type Object struct {
	odm    *ODM
	schema Schema
	name   string

	mu       sync.RWMutex
	contents Fields
}

// Name returns the document's unique name within its collection.
func (ob *Object) Name() string { return ob.name }

// Collection returns the collection the document belongs to.
func (ob *Object) Collection() string { return ob.schema.Collection }

// Get returns the cached value of a declared attribute. Dictionary values
// are copied so callers cannot mutate the cache behind Set's back.
func (ob *Object) Get(field string) (any, error) {
	if _, ok := ob.schema.Attributes[field]; !ok {
		return nil, fmt.Errorf("%s.%s: %w", ob.schema.Collection, field, ErrUnknownAttribute)
	}
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	v := ob.contents[field]
	if m, ok := v.(map[string]any); ok {
		mc := make(map[string]any, len(m))
		for k, mv := range m {
			mc[k] = mv
		}
		return mc, nil
	}
	return v, nil
}

// Fields returns a copy of the cached document body.
func (ob *Object) Fields() Fields {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.contents.Clone()
}

// Set validates and persists a single attribute write. The store write
// happens first; the cache is only updated after it succeeds, so a failed
// persist leaves the object exactly as it was.
func (ob *Object) Set(ctx context.Context, field string, value any) error {
	raw, err := ob.prepare(field, value)
	if err != nil {
		return err
	}
	if err := ob.odm.st.Update(ctx, ob.schema.Collection, ob.name, field, raw); err != nil {
		return err
	}
	ob.mu.Lock()
	ob.contents[field] = raw
	ob.mu.Unlock()
	return nil
}

// SetFields persists several attribute writes in a single store update. All
// fields are validated before anything is written; on a failed persist the
// cache is untouched.
func (ob *Object) SetFields(ctx context.Context, fields Fields) error {
	raw := make(store.Fields, len(fields))
	for k, v := range fields {
		rv, err := ob.prepare(k, v)
		if err != nil {
			return err
		}
		raw[k] = rv
	}
	if err := ob.odm.st.UpdateFields(ctx, ob.schema.Collection, ob.name, raw); err != nil {
		return err
	}
	ob.mu.Lock()
	for k, v := range raw {
		ob.contents[k] = v
	}
	ob.mu.Unlock()
	return nil
}

// prepare validates one write and returns the raw stored value.
func (ob *Object) prepare(field string, value any) (any, error) {
	attr, ok := ob.schema.Attributes[field]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", ob.schema.Collection, field, ErrUnknownAttribute)
	}
	if !attr.Mutable {
		ob.mu.RLock()
		cur, has := ob.contents[field]
		ob.mu.RUnlock()
		// Immutable attributes are set-once: writable only while they still
		// hold their declared default (or nothing at all).
		locked := has && !(attr.HasDefault && reflect.DeepEqual(cur, attr.Default))
		if locked {
			return nil, fmt.Errorf("%s.%s: %w", ob.schema.Collection, field, ErrImmutableAttribute)
		}
	}
	raw, err := attr.raw(value)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", ob.schema.Collection, field, err)
	}
	return raw, nil
}

// Reference resolves a reference attribute to the live object it names,
// going through the owning registry so identity is preserved.
func (ob *Object) Reference(ctx context.Context, field string) (*Object, error) {
	attr, ok := ob.schema.Attributes[field]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", ob.schema.Collection, field, ErrUnknownAttribute)
	}
	if attr.Reference == "" {
		return nil, fmt.Errorf("%w: %s.%s is not a reference attribute", ErrInvalidValue, ob.schema.Collection, field)
	}
	ob.mu.RLock()
	rawv := ob.contents[field]
	ob.mu.RUnlock()
	name, ok := rawv.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%s.%s is unset: %w", ob.schema.Collection, field, ErrDanglingReference)
	}
	target, err := ob.odm.Get(ctx, attr.Reference, name)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s.%s -> %s/%s: %w", ob.schema.Collection, field, attr.Reference, name, ErrDanglingReference)
	}
	return target, err
}

// Reload replaces the cached copy with the document's current stored state.
// This is the only way a live object observes writes made by other processes
// or connections; nothing is invalidated automatically.
func (ob *Object) Reload(ctx context.Context) error {
	fields, err := ob.odm.st.Load(ctx, ob.schema.Collection, ob.name)
	if err != nil {
		return err
	}
	ob.mu.Lock()
	ob.contents = fields
	ob.mu.Unlock()
	return nil
}
