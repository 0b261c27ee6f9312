package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stevemurr/vacancy-store/schema"
)

const (
	redisKeyPrefix  = "vacancy-store:collection:"
	redisMaxRetries = 16
)

// RedisStore keeps each collection as one string key holding the same
// JSON document the file backend writes. Mutations are optimistic
// WATCH/MULTI transactions retried when another client wins the race.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore parses redisURL and verifies connectivity.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client, timeout: 30 * time.Second}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func redisKey(name string) string {
	return redisKeyPrefix + name
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) loadTable(ctx context.Context, c redisGetter, name string) (*table, error) {
	b, err := c.Get(ctx, redisKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", name, err)
	}
	t, err := decodeDocument(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func (s *RedisStore) mutate(name string, fn func(*table) (bool, error)) error {
	if err := validName(name); err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	key := redisKey(name)
	txf := func(tx *redis.Tx) error {
		t, err := s.loadTable(ctx, tx, name)
		if err != nil {
			return err
		}
		changed, err := fn(t)
		if err != nil || !changed {
			return err
		}
		doc, err := encodeDocument(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		return err
	}
	for i := 0; i < redisMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redis: collection %q: too many concurrent writers", name)
}

func (s *RedisStore) read(name string) (*table, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.loadTable(ctx, s.client, name)
}

func (s *RedisStore) CreateCollection(name string, spec schema.FieldSpec) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(spec) == 0 {
		return schemaErr("collection %q has no fields", name)
	}
	doc, err := encodeDocument(&table{spec: spec})
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	ok, err := s.client.SetNX(ctx, redisKey(name), doc, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %q: %w", name, err)
	}
	if !ok {
		return alreadyExists(name)
	}
	return nil
}

func (s *RedisStore) DropCollection(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	n, err := s.client.Del(ctx, redisKey(name)).Result()
	if err != nil {
		return fmt.Errorf("redis del %q: %w", name, err)
	}
	if n == 0 {
		return notFound(name)
	}
	return nil
}

func (s *RedisStore) Exists(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	n, err := s.client.Exists(ctx, redisKey(name)).Result()
	return n > 0, err
}

func (s *RedisStore) Header(name string) (schema.FieldSpec, error) {
	t, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return t.spec, nil
}

func (s *RedisStore) Insert(name string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.insert(record)
	})
}

func (s *RedisStore) Replace(name, keyField string, record schema.Record) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.replace(keyField, record)
	})
}

func (s *RedisStore) Update(name, setField string, setValue any, whereField string, whereValue any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.update(setField, setValue, whereField, whereValue)
	})
}

func (s *RedisStore) Delete(name, field string, value any) error {
	return s.mutate(name, func(t *table) (bool, error) {
		return t.delete(field, value)
	})
}

func (s *RedisStore) Select(name string, filter *Filter) ([]schema.Record, error) {
	t, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return t.selectRows(filter)
}

func (s *RedisStore) ListCollections() ([]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	var names []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
