package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the behaviour every KV backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should not be found")

	require.NoError(t, kv.Set(ctx, "recipegate:usage", []byte(`{"calls":1}`)))
	got, ok, err := kv.Get(ctx, "recipegate:usage")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"calls":1}`, string(got))

	require.NoError(t, kv.Set(ctx, "recipegate:usage", []byte(`{"calls":2}`)))
	got, _, err = kv.Get(ctx, "recipegate:usage")
	require.NoError(t, err)
	assert.Equal(t, `{"calls":2}`, string(got))

	require.NoError(t, kv.Remove(ctx, "recipegate:usage"))
	_, ok, err = kv.Get(ctx, "recipegate:usage")
	require.NoError(t, err)
	assert.False(t, ok, "removed key should not be found")

	assert.NoError(t, kv.Remove(ctx, "never-set"), "removing a missing key is not an error")
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	value := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'z'

	got, _, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, _, _ := kv.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestFileKV(t *testing.T) {
	exerciseKV(t, NewFileKV(t.TempDir()))
}

func TestFileKV_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv := NewFileKV(dir)
	require.NoError(t, kv.Set(context.Background(), "a/b c", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestFileKV_EmptyDirIsNoop(t *testing.T) {
	kv := NewFileKV("")
	require.NoError(t, kv.Set(context.Background(), "k", []byte("v")))
	_, ok, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewKV(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := New(ctx, Config{Type: TypeMemory})
		require.NoError(t, err)
		kv, err := NewKV(ctx, store, Config{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryKV{}, kv)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		cfg := Config{Type: TypeFile, File: FileConfig{Dir: dir}}
		store, err := New(ctx, cfg)
		require.NoError(t, err)
		kv, err := NewKV(ctx, store, cfg)
		require.NoError(t, err)
		fileKV, ok := kv.(*FileKV)
		require.True(t, ok)
		assert.Equal(t, dir, fileKV.dir)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := Config{Type: TypeSQLite, SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "s.db")}}
		store, err := New(ctx, cfg)
		require.NoError(t, err)
		defer store.Close()
		kv, err := NewKV(ctx, store, cfg)
		require.NoError(t, err)
		assert.IsType(t, &SQLiteKV{}, kv)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(ctx, Config{Type: "etcd"})
		assert.Error(t, err)
	})
}
