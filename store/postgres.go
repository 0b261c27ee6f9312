package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stevemurr/vacancy-store/schema"
)

const postgresDDL = `
CREATE TABLE IF NOT EXISTS vs_collections (
	name   TEXT PRIMARY KEY,
	header TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS vs_records (
	collection TEXT    NOT NULL REFERENCES vs_collections(name) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	data       TEXT    NOT NULL,
	PRIMARY KEY (collection, seq)
);`

// PostgresStore keeps collections in two PostgreSQL tables with the same
// layout as SqliteStore. Every mutation locks the collection row with
// SELECT ... FOR UPDATE, so concurrent writers from any process serialize.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore connects to databaseURL, verifies connectivity and
// creates the tables if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &PostgresStore{pool: pool, timeout: 30 * time.Second}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *PostgresStore) loadTable(ctx context.Context, tx pgx.Tx, name string, forUpdate bool) (*table, error) {
	q := "SELECT header FROM vs_collections WHERE name = $1"
	if forUpdate {
		q += " FOR UPDATE"
	}
	var hdr string
	if err := tx.QueryRow(ctx, q, name).Scan(&hdr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("load header %q: %w", name, err)
	}
	var spec schema.FieldSpec
	if err := spec.UnmarshalJSON([]byte(hdr)); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	rows, err := tx.Query(ctx, "SELECT data FROM vs_records WHERE collection = $1 ORDER BY seq", name)
	if err != nil {
		return nil, fmt.Errorf("load records %q: %w", name, err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("load records %q: %w", name, err)
	}
	t := &table{spec: spec, rows: make([]schema.Record, 0, len(raws))}
	for _, raw := range raws {
		r, err := decodeRecord(spec, []byte(raw))
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, r)
	}
	return t, nil
}

func (s *PostgresStore) saveRows(ctx context.Context, tx pgx.Tx, name string, t *table) error {
	if _, err := tx.Exec(ctx, "DELETE FROM vs_records WHERE collection = $1", name); err != nil {
		return fmt.Errorf("clear records %q: %w", name, err)
	}
	rows := make([][]any, 0, len(t.rows))
	for i, r := range t.rows {
		b, err := encodeRecord(t.spec, r)
		if err != nil {
			return err
		}
		rows = append(rows, []any{name, int32(i), string(b)})
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"vs_records"}, []string{"collection", "seq", "data"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("write records %q: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) mutate(name string, fn func(*table) (bool, error)) error {
	if err := validName(name); err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		t, err := s.loadTable(ctx, tx, name, true)
		if err != nil {
			return err
		}
		changed, err := fn(t)
		if err != nil || !changed {
			return err
		}
		return s.saveRows(ctx, tx, name, t)
	})
}

func (s *PostgresStore) read(name string) (*table, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	var t *table
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		var err error
		t, err = s.loadTable(ctx, tx, name, false)
		return err
	})
	return t, err
}

func (s *PostgresStore) CreateCollection(name string, spec schema.FieldSpec) error {
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
	ctx, cancel := s.ctx()
	defer cancel()
	tag, err := s.pool.Exec(ctx,
		"INSERT INTO vs_collections (name, header) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
		name, string(hdr))
	if err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return alreadyExists(name)
	}
	return nil
}

func (s *PostgresStore) DropCollection(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	tag, err := s.pool.Exec(ctx, "DELETE FROM vs_collections WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(name)
	}
	return nil
}

func (s *PostgresStore) Exists(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	var ok bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM vs_collections WHERE name = $1)", name).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) Header(name string) (schema.FieldSpec, error) {
	t, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return t.spec, nil
}

func (s *PostgresStore) Insert(name string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.insert(record)
	})
}

func (s *PostgresStore) Replace(name, keyField string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.replace(keyField, record)
	})
}

func (s *PostgresStore) Update(name, setField string, setValue any, whereField string, whereValue any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.update(setField, setValue, whereField, whereValue)
	})
}

func (s *PostgresStore) Delete(name, field string, value any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.delete(field, value)
	})
}

func (s *PostgresStore) Select(name string, filter *Filter) ([]schema.Record, error) {
	t, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return t.selectRows(filter)
}

func (s *PostgresStore) ListCollections() ([]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	rows, err := s.pool.Query(ctx, "SELECT name FROM vs_collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
