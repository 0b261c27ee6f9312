package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stevemurr/vacancy-store/schema"
)

// JsonFileStore stores each collection as a separate JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  .lock            # advisory lock shared by all processes
//	  vacancy.json     # "vacancy" collection
//	  employer.json    # "employer" collection
//
// Writes go to a temporary file that is renamed over the collection file,
// so readers never observe a partially written collection.
type JsonFileStore struct {
	mu   sync.RWMutex
	dir  string
	lock *fileLock
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{dir: dir, lock: newFileLock(filepath.Join(dir, ".lock"))}, nil
}

func (s *JsonFileStore) collectionPath(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *JsonFileStore) loadTable(name string) (*table, error) {
	data, err := os.ReadFile(s.collectionPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(name)
		}
		return nil, err
	}
	t, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func (s *JsonFileStore) saveTable(name string, t *table) error {
	b, err := encodeDocument(t)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.collectionPath(name), b)
}

func writeFileAtomic(path string, data []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// read runs fn against a freshly loaded table under a shared lock.
func (s *JsonFileStore) read(name string, fn func(*table) error) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	unlock, err := s.lock.shared()
	if err != nil {
		return err
	}
	defer unlock()
	t, err := s.loadTable(name)
	if err != nil {
		return err
	}
	return fn(t)
}

// mutate loads a table, applies fn and rewrites the file if fn reports a
// change, all under an exclusive lock.
func (s *JsonFileStore) mutate(name string, fn func(*table) (bool, error)) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock.exclusive()
	if err != nil {
		return err
	}
	defer unlock()
	t, err := s.loadTable(name)
	if err != nil {
		return err
	}
	changed, err := fn(t)
	if err != nil || !changed {
		return err
	}
	return s.saveTable(name, t)
}

func (s *JsonFileStore) CreateCollection(name string, spec schema.FieldSpec) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(spec) == 0 {
		return schemaErr("collection %q has no fields", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock.exclusive()
	if err != nil {
		return err
	}
	defer unlock()
	if _, err := os.Stat(s.collectionPath(name)); err == nil {
		return alreadyExists(name)
	} else if !os.IsNotExist(err) {
		return err
	}
	return s.saveTable(name, &table{spec: spec})
}

func (s *JsonFileStore) DropCollection(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lock.exclusive()
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(s.collectionPath(name)); err != nil {
		if os.IsNotExist(err) {
			return notFound(name)
		}
		return err
	}
	return nil
}

func (s *JsonFileStore) Exists(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.collectionPath(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *JsonFileStore) Header(name string) (schema.FieldSpec, error) {
	var spec schema.FieldSpec
	err := s.read(name, func(t *table) error {
		spec = t.spec
		return nil
	})
	return spec, err
}

func (s *JsonFileStore) Insert(name string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.insert(record)
	})
}

func (s *JsonFileStore) Replace(name, keyField string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.replace(keyField, record)
	})
}

func (s *JsonFileStore) Update(name, setField string, setValue any, whereField string, whereValue any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.update(setField, setValue, whereField, whereValue)
	})
}

func (s *JsonFileStore) Delete(name, field string, value any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.delete(field, value)
	})
}

func (s *JsonFileStore) Select(name string, filter *Filter) ([]schema.Record, error) {
	var rows []schema.Record
	err := s.read(name, func(t *table) error {
		var err error
		rows, err = t.selectRows(filter)
		return err
	})
	return rows, err
}

func (s *JsonFileStore) ListCollections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *JsonFileStore) Close() error {
	return nil
}
