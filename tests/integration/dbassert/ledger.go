//go:build integration

// Package dbassert reads persisted state directly from the databases so tests
// can assert on it independently of the application.
package dbassert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// kvTable mirrors the storage package's table and collection name.
const kvTable = "kv_store"

// LedgerRecord mirrors usage.Record for test assertions.
type LedgerRecord struct {
	Date           string         `json:"date"`
	Calls          int            `json:"calls"`
	Errors         int            `json:"errors"`
	CachedHits     int            `json:"cachedHits"`
	EndpointCounts map[string]int `json:"endpointCounts"`
}

// LedgerFromPostgreSQL loads the ledger stored under key. It fails the test when missing.
func LedgerFromPostgreSQL(t *testing.T, pool *pgxpool.Pool, key string) LedgerRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var raw []byte
	err := pool.QueryRow(ctx, `SELECT value FROM `+kvTable+` WHERE key = $1`, key).Scan(&raw)
	require.NoError(t, err, "failed to load ledger %q", key)
	return decode(t, raw)
}

// LedgerFromMongoDB loads the ledger stored under key. It fails the test when missing.
func LedgerFromMongoDB(t *testing.T, db *mongo.Database, key string) LedgerRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc struct {
		Value []byte `bson:"value"`
	}
	err := db.Collection(kvTable).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	require.NoError(t, err, "failed to load ledger %q", key)
	return decode(t, doc.Value)
}

func decode(t *testing.T, raw []byte) LedgerRecord {
	t.Helper()
	var rec LedgerRecord
	require.NoError(t, json.Unmarshal(raw, &rec), "ledger is not valid JSON: %s", raw)
	return rec
}
