package store

import (
	"context"
	"reflect"
	"sync"
)

// MemoryStore is a map-backed store used for unit tests and as a fallback
// when no MongoDB is configured. It honors the same name-uniqueness and
// not-found contracts as MongoStore.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string]map[string]Fields
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[string]map[string]Fields)}
}

func (m *MemoryStore) Load(_ context.Context, collection, name string) (Fields, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.colls[collection][name]; ok {
		return f.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Insert(_ context.Context, collection, name string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.colls[collection]
	if !ok {
		col = make(map[string]Fields)
		m.colls[collection] = col
	}
	if _, ok := col[name]; ok {
		return ErrDuplicateName
	}
	col[name] = fields.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, name, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.colls[collection][name]
	if !ok {
		return ErrNotFound
	}
	f[field] = value
	return nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, collection, name string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.colls[collection][name]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		f[k] = v
	}
	return nil
}

func (m *MemoryStore) Find(_ context.Context, collection string, filter Fields) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for name, f := range m.colls[collection] {
		if matches(f, filter) {
			out = append(out, Record{Name: name, Fields: f.Clone()})
		}
	}
	return out, nil
}

func matches(fields, filter Fields) bool {
	for k, want := range filter {
		got, ok := fields[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func (m *MemoryStore) Delete(_ context.Context, collection, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.colls[collection][name]; !ok {
		return ErrNotFound
	}
	delete(m.colls[collection], name)
	return nil
}

// EnsureNameIndex is a no-op; the collection map key is the index.
func (m *MemoryStore) EnsureNameIndex(context.Context, string) error { return nil }

func (m *MemoryStore) Close(context.Context) error { return nil }
