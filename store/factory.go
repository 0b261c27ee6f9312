package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

const connectTimeout = 10 * time.Second

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"     - one JSON file per collection in dataDir (default)
//	"sqlite"   - SQLite database at dataDir/vacancies.db
//	"postgres" - PostgreSQL at dsn
//	"redis"    - Redis at dsn
//	"memory"   - In-memory (ephemeral, for testing)
func New(backend, dataDir, dsn string) (Store, error) {
	switch backend {
	case "json", "":
		return NewJsonFileStore(dataDir)
	case "sqlite":
		return NewSqliteStore(filepath.Join(dataDir, "vacancies.db"))
	case "postgres", "redis":
		if dsn == "" {
			return nil, fmt.Errorf("store backend %q requires a DSN", backend)
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if backend == "postgres" {
			return NewPostgresStore(ctx, dsn)
		}
		return NewRedisStore(ctx, dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, postgres, redis, memory)", backend)
	}
}
