// Package uodm is a micro object-document mapper for MongoDB.
//
// Every attribute write is committed to the store before the call returns.
// The ODM owns the store connection and keeps at most one live Object per
// document, so repeated lookups by name hand back the same instance.
// Documents are keyed by a generated name field, not by the store's _id, and
// may reference each other by name.
package uodm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davrot/uodm/config"
	"github.com/davrot/uodm/internal/database"
	"github.com/davrot/uodm/pkg/logger"
	"github.com/davrot/uodm/pkg/metrics"
	"github.com/davrot/uodm/store"
)

// Fields is a flat attribute-name to value mapping.
type Fields = store.Fields

type objectKey struct {
	collection string
	name       string
}

// ODM owns a store connection and the registry of live objects. It is the
// sole constructor of Objects: while an entry is registered, every lookup of
// that (collection, name) returns the identical instance.
type ODM struct {
	st store.Store

	mu      sync.Mutex
	schemas map[string]Schema
	live    map[objectKey]*Object
}

// Open connects to MongoDB per cfg and returns an ODM backed by it.
func Open(ctx context.Context, cfg *config.Config) (*ODM, error) {
	if cfg.MongoDB.URI == "" {
		return nil, fmt.Errorf("%w: no MongoDB URI configured", ErrConnection)
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return New(store.NewMongoStore(client, cfg.MongoDB.Database)), nil
}

// New returns an ODM over an existing store. Most callers want Open; New is
// the seam for the memory store and for tests.
func New(st store.Store) *ODM {
	return &ODM{
		st:      st,
		schemas: make(map[string]Schema),
		live:    make(map[objectKey]*Object),
	}
}

// Register declares a collection schema and installs the unique index on the
// document name field. Each collection is registered once. The schema only
// takes effect once the index is in place: a failed Register leaves the
// collection unregistered and may simply be retried.
func (o *ODM) Register(ctx context.Context, s Schema) error {
	if err := s.validate(); err != nil {
		return err
	}
	o.mu.Lock()
	_, exists := o.schemas[s.Collection]
	o.mu.Unlock()
	if exists {
		return fmt.Errorf("%w: collection %q already registered", ErrInvalidValue, s.Collection)
	}
	if err := o.st.EnsureNameIndex(ctx, s.Collection); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.schemas[s.Collection]; ok {
		return fmt.Errorf("%w: collection %q already registered", ErrInvalidValue, s.Collection)
	}
	o.schemas[s.Collection] = s
	return nil
}

func (o *ODM) schema(collection string) (Schema, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.schemas[collection]
	if !ok {
		return Schema{}, fmt.Errorf("%w: collection %q not registered", ErrInvalidValue, collection)
	}
	return s, nil
}

// Get returns the live object for (collection, name), loading the document
// if needed. It fails with ErrNotFound when no such document exists.
func (o *ODM) Get(ctx context.Context, collection, name string) (*Object, error) {
	return o.GetOrCreate(ctx, collection, name, nil)
}

// GetOrCreate returns the live object for (collection, name). A registered
// instance is returned as-is; otherwise the document is loaded, or created
// from defaults when it does not exist. With nil defaults a missing document
// is ErrNotFound.
//
// Creation relies on the store's atomic name uniqueness: losing an insert
// race against a concurrent creator is reconciled by retrying the load path
// once, so both sides converge on the surviving document.
func (o *ODM) GetOrCreate(ctx context.Context, collection, name string, defaults Fields) (*Object, error) {
	sch, err := o.schema(collection)
	if err != nil {
		return nil, err
	}
	key := objectKey{collection, name}

	o.mu.Lock()
	if obj, ok := o.live[key]; ok {
		o.mu.Unlock()
		metrics.RegistryHits.Inc()
		return obj, nil
	}
	o.mu.Unlock()
	metrics.RegistryMisses.Inc()

	fields, err := o.st.Load(ctx, collection, name)
	switch {
	case err == nil:
		return o.adopt(key, sch, fields), nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if defaults == nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, name, ErrNotFound)
	}
	contents, err := sch.materialize(defaults)
	if err != nil {
		return nil, err
	}
	switch err := o.st.Insert(ctx, collection, name, contents); {
	case errors.Is(err, store.ErrDuplicateName):
		// Lost the creation race to another process; the store record wins.
		logger.Warnf("uodm: lost create race for %s/%s, loading instead", collection, name)
		fields, err := o.st.Load(ctx, collection, name)
		if err != nil {
			return nil, err
		}
		return o.adopt(key, sch, fields), nil
	case err != nil:
		return nil, err
	}
	logger.Debugf("uodm: created %s/%s", collection, name)
	return o.adopt(key, sch, contents), nil
}

// Create inserts a new document under an explicit name and returns its live
// object. ErrDuplicateName when the name is taken.
func (o *ODM) Create(ctx context.Context, collection, name string, fields Fields) (*Object, error) {
	sch, err := o.schema(collection)
	if err != nil {
		return nil, err
	}
	contents, err := sch.materialize(fields)
	if err != nil {
		return nil, err
	}
	if err := o.st.Insert(ctx, collection, name, contents); err != nil {
		return nil, err
	}
	logger.Debugf("uodm: created %s/%s", collection, name)
	return o.adopt(objectKey{collection, name}, sch, contents), nil
}

// New inserts a new document with a generated UUID name.
func (o *ODM) New(ctx context.Context, collection string, fields Fields) (*Object, error) {
	return o.Create(ctx, collection, NewName(), fields)
}

// Find returns live objects for every document matching the equality filter.
// Names already live in the registry keep their existing instance; the rest
// are registered from the loaded records.
func (o *ODM) Find(ctx context.Context, collection string, filter Fields) ([]*Object, error) {
	sch, err := o.schema(collection)
	if err != nil {
		return nil, err
	}
	recs, err := o.st.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*Object, 0, len(recs))
	for _, r := range recs {
		out = append(out, o.adopt(objectKey{collection, r.Name}, sch, r.Fields))
	}
	return out, nil
}

// adopt registers a loaded document body as the live object for key, unless
// another goroutine registered one while we were at the store; the first
// registration always wins so identity stays single.
func (o *ODM) adopt(key objectKey, sch Schema, fields store.Fields) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	if obj, ok := o.live[key]; ok {
		return obj
	}
	obj := &Object{odm: o, schema: sch, name: key.name, contents: fields}
	o.live[key] = obj
	return obj
}

// Release drops the live object for (collection, name) from the registry.
// The store record is untouched; a later lookup builds a fresh instance.
func (o *ODM) Release(collection, name string) {
	o.mu.Lock()
	delete(o.live, objectKey{collection, name})
	o.mu.Unlock()
}

// Delete removes the document from the store and releases its live object.
func (o *ODM) Delete(ctx context.Context, collection, name string) error {
	if err := o.st.Delete(ctx, collection, name); err != nil {
		return err
	}
	o.Release(collection, name)
	return nil
}

// Close releases every live object and closes the store connection.
func (o *ODM) Close(ctx context.Context) error {
	o.mu.Lock()
	o.live = make(map[objectKey]*Object)
	o.mu.Unlock()
	return o.st.Close(ctx)
}
