package store

import (
	"slices"
	"sort"
	"sync"

	"github.com/stevemurr/vacancy-store/schema"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*table
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*table)}
}

// mutate applies fn to a copy of the table and commits the copy only when
// fn succeeds.
func (m *MemoryStore) mutate(name string, fn func(*table) (bool, error)) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.collections[name]
	if !ok {
		return notFound(name)
	}
	next := t.clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if changed {
		m.collections[name] = next
	}
	return nil
}

func (m *MemoryStore) get(name string) (*table, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	t, ok := m.collections[name]
	if !ok {
		return nil, notFound(name)
	}
	return t, nil
}

func (m *MemoryStore) CreateCollection(name string, spec schema.FieldSpec) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(spec) == 0 {
		return schemaErr("collection %q has no fields", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return alreadyExists(name)
	}
	m.collections[name] = &table{spec: slices.Clone(spec)}
	return nil
}

func (m *MemoryStore) DropCollection(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return notFound(name)
	}
	delete(m.collections, name)
	return nil
}

func (m *MemoryStore) Exists(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryStore) Header(name string) (schema.FieldSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.spec), nil
}

func (m *MemoryStore) Insert(name string, record schema.Record) error {
	return m.mutate(name, func(t *table) (bool, error) {
		return t.insert(record)
	})
}

func (m *MemoryStore) Replace(name, keyField string, record schema.Record) error {
	return m.mutate(name, func(t *table) (bool, error) {
		return t.replace(keyField, record)
	})
}

func (m *MemoryStore) Update(name, setField string, setValue any, whereField string, whereValue any) error {
	return m.mutate(name, func(t *table) (bool, error) {
		return t.update(setField, setValue, whereField, whereValue)
	})
}

func (m *MemoryStore) Delete(name, field string, value any) error {
	return m.mutate(name, func(t *table) (bool, error) {
		return t.delete(field, value)
	})
}

func (m *MemoryStore) Select(name string, filter *Filter) ([]schema.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return t.selectRows(filter)
}

func (m *MemoryStore) ListCollections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
