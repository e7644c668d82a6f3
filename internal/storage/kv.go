package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// kvTable is the table (or collection) name used by the database-backed KV stores.
const kvTable = "kv_store"

// KV is the persistence port: a durable map from string keys to opaque bytes.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value stored under key. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// NewKV returns the KV view over an open Storage.
// The KV does not own the storage; close the Storage separately.
func NewKV(ctx context.Context, store Storage, cfg Config) (KV, error) {
	switch store.Type() {
	case TypeMemory:
		return NewMemoryKV(), nil

	case TypeFile:
		dir := cfg.File.Dir
		if ls, ok := store.(*localStorage); ok && ls.Dir() != "" {
			dir = ls.Dir()
		}
		return NewFileKV(dir), nil

	case TypeSQLite:
		return NewSQLiteKV(ctx, store.SQLiteDB())

	case TypePostgreSQL:
		pool, ok := store.PostgreSQLPool().(*pgxpool.Pool)
		if !ok || pool == nil {
			return nil, fmt.Errorf("invalid PostgreSQL pool type: %T", store.PostgreSQLPool())
		}
		return NewPostgreSQLKV(ctx, pool)

	case TypeMongoDB:
		db, ok := store.MongoDatabase().(*mongo.Database)
		if !ok || db == nil {
			return nil, fmt.Errorf("invalid MongoDB database type: %T", store.MongoDatabase())
		}
		return NewMongoDBKV(db), nil

	case TypeRedis:
		client, ok := store.RedisClient().(*redis.Client)
		if !ok || client == nil {
			return nil, fmt.Errorf("invalid Redis client type: %T", store.RedisClient())
		}
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = DefaultConfig().Redis.Prefix
		}
		return NewRedisKV(client, prefix), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

// MemoryKV keeps values in process memory. Nothing survives a restart.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
