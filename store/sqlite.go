package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/stevemurr/vacancy-store/schema"
)

// SqliteStore stores all collections in a single SQLite database.
//
// Tables:
//
//	collections(name, header)          PRIMARY KEY (name)
//	records(collection, seq, data)     PRIMARY KEY (collection, seq)
//
// header and data hold the same JSON the file backend writes, so a
// collection keeps its header key order and record field order.
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	// _txlock=immediate takes the write lock at BEGIN, so two processes
	// cannot interleave a read and the following rewrite.
	db, err := sql.Open("sqlite3", dbPath+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		header TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		seq INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, seq)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

type sqlQuerier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (s *SqliteStore) loadTable(q sqlQuerier, name string) (*table, error) {
	var hdr string
	err := q.QueryRow("SELECT header FROM collections WHERE name = ?", name).Scan(&hdr)
	if err == sql.ErrNoRows {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, err
	}
	var spec schema.FieldSpec
	if err := spec.UnmarshalJSON([]byte(hdr)); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	rows, err := q.Query("SELECT data FROM records WHERE collection = ? ORDER BY seq", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	t := &table{spec: spec}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		r, err := decodeRecord(spec, []byte(raw))
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, r)
	}
	return t, rows.Err()
}

func (s *SqliteStore) saveRows(tx *sql.Tx, name string, t *table) error {
	if _, err := tx.Exec("DELETE FROM records WHERE collection = ?", name); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO records (collection, seq, data) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range t.rows {
		b, err := encodeRecord(t.spec, r)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(name, i, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SqliteStore) mutate(name string, fn func(*table) (bool, error)) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	t, err := s.loadTable(tx, name)
	if err != nil {
		return err
	}
	changed, err := fn(t)
	if err != nil || !changed {
		return err
	}
	if err := s.saveRows(tx, name, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) read(name string) (*table, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadTable(s.db, name)
}

func (s *SqliteStore) CreateCollection(name string, spec schema.FieldSpec) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(spec) == 0 {
		return schemaErr("collection %q has no fields", name)
	}
	hdr, err := spec.MarshalJSON()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		"INSERT INTO collections (name, header) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, string(hdr),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return alreadyExists(name)
	}
	return nil
}

func (s *SqliteStore) DropCollection(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.Exec("DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(name)
	}
	if _, err := tx.Exec("DELETE FROM records WHERE collection = ?", name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Exists(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM collections WHERE name = ?", name).Scan(&n)
	return n > 0, err
}

func (s *SqliteStore) Header(name string) (schema.FieldSpec, error) {
	t, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return t.spec, nil
}

func (s *SqliteStore) Insert(name string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.insert(record)
	})
}

func (s *SqliteStore) Replace(name, keyField string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.replace(keyField, record)
	})
}

func (s *SqliteStore) Update(name, setField string, setValue any, whereField string, whereValue any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.update(setField, setValue, whereField, whereValue)
	})
}

func (s *SqliteStore) Delete(name, field string, value any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.delete(field, value)
	})
}

func (s *SqliteStore) Select(name string, filter *Filter) ([]schema.Record, error) {
	t, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return t.selectRows(filter)
}

func (s *SqliteStore) ListCollections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
