package offline

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "api-v1", "https://x/1")
	require.NoError(t, err)
	assert.False(t, ok)

	body := []byte(strings.Repeat(`{"title":"pasta"}`, 200))
	asset := &Asset{
		URL:        "https://x/1",
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       body,
		StoredAt:   time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, "api-v1", asset))
	require.NoError(t, store.Put(ctx, "images-v1", &Asset{URL: "https://x/a.jpg", StatusCode: 200, Header: http.Header{}, Body: []byte{1, 2, 3}}))

	got, ok, err := store.Get(ctx, "api-v1", "https://x/1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, body, got.Body)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.True(t, asset.StoredAt.Equal(got.StoredAt))

	_, ok, err = store.Get(ctx, "images-v1", "https://x/1")
	require.NoError(t, err)
	assert.False(t, ok, "namespaces are isolated")

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api-v1", "images-v1"}, names)

	n, err := store.Count(ctx, "api-v1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.DeleteNamespace(ctx, "api-v1"))
	names, err = store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"images-v1"}, names)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "offline.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offline.db")

	first, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "recipes-v1", &Asset{URL: "https://x/r", StatusCode: 200, Header: http.Header{}, Body: []byte("doc")}))
	require.NoError(t, first.Close())

	second, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	got, ok, err := second.Get(ctx, "recipes-v1", "https://x/r")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc", string(got.Body))
}

func TestCompressRoundTrip(t *testing.T) {
	plain := []byte(strings.Repeat("tomato basil ", 500))
	packed, err := compress(plain)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain))

	unpacked, err := decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, plain, unpacked)
}

func TestNewResult(t *testing.T) {
	ctx := context.Background()

	disabled, err := New(ctx, Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, disabled.Transport)
	base := http.DefaultTransport
	assert.Equal(t, base, disabled.Wrap(base))

	cfg := DefaultConfig()
	cfg.Store = StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "o.db")
	res, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer res.Close()
	assert.Same(t, res.Transport, res.Wrap(base))

	_, err = New(ctx, Config{Enabled: true, Store: "s3"}, nil)
	assert.Error(t, err)
}
