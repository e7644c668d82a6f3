package offline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cespare/xxhash/v2"

	"recipegate/internal/storage"
)

// SQLiteStore persists assets in SQLite so they survive restarts.
// Bodies are brotli-compressed; rows are keyed by an xxhash of the URL and
// the URL itself is compared on read.
type SQLiteStore struct {
	db    *sql.DB
	owner storage.Storage
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	st, err := storage.NewSQLite(storage.SQLiteConfig{Path: path})
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStore(ctx, st.SQLiteDB())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	s.owner = st
	return s, nil
}

// NewSQLiteStore creates the asset table on an existing connection.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS offline_assets (
			namespace TEXT NOT NULL,
			url_hash INTEGER NOT NULL,
			url TEXT NOT NULL,
			status INTEGER NOT NULL,
			header TEXT NOT NULL,
			body BLOB NOT NULL,
			stored_at DATETIME NOT NULL,
			PRIMARY KEY (namespace, url_hash)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create offline_assets table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func urlHash(url string) int64 {
	return int64(xxhash.Sum64String(url))
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, url string) (*Asset, bool, error) {
	var (
		storedURL  string
		status     int
		headerJSON string
		body       []byte
		storedAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT url, status, header, body, stored_at FROM offline_assets
		WHERE namespace = ? AND url_hash = ?`, namespace, urlHash(url),
	).Scan(&storedURL, &status, &headerJSON, &body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read asset: %w", err)
	}
	if storedURL != url {
		return nil, false, nil
	}

	header := http.Header{}
	if err := json.Unmarshal([]byte(headerJSON), &header); err != nil {
		return nil, false, fmt.Errorf("failed to decode asset header: %w", err)
	}
	plain, err := decompress(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress asset: %w", err)
	}
	ts, _ := time.Parse(time.RFC3339Nano, storedAt)

	return &Asset{URL: url, StatusCode: status, Header: header, Body: plain, StoredAt: ts}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, namespace string, asset *Asset) error {
	headerJSON, err := json.Marshal(asset.Header)
	if err != nil {
		return fmt.Errorf("failed to encode asset header: %w", err)
	}
	body, err := compress(asset.Body)
	if err != nil {
		return fmt.Errorf("failed to compress asset: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offline_assets (namespace, url_hash, url, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, url_hash) DO UPDATE SET
			url = excluded.url, status = excluded.status, header = excluded.header,
			body = excluded.body, stored_at = excluded.stored_at`,
		namespace, urlHash(asset.URL), asset.URL, asset.StatusCode, string(headerJSON), body,
		asset.StoredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to write asset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT namespace FROM offline_assets ORDER BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_assets WHERE namespace = ?`, namespace).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_assets WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}
	return nil
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if s.owner != nil {
		return s.owner.Close()
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}
