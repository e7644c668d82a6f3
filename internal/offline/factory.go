package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Result holds the offline transport and its store.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	Transport *Transport
	Store     Store
}

// New opens the configured store, builds a transport over base and deletes
// namespaces left over from older versions.
// Returns a Result with a nil Transport when the cache is disabled.
func New(ctx context.Context, cfg Config, base http.RoundTripper) (*Result, error) {
	if !cfg.Enabled {
		return &Result{}, nil
	}

	var store Store
	switch cfg.Store {
	case "", StoreMemory:
		store = NewMemoryStore()
	case StoreSQLite:
		s, err := OpenSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open offline store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown offline store: %s (valid: memory, sqlite)", cfg.Store)
	}

	t := NewTransport(base, store, cfg)
	if _, err := t.Activate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to activate offline cache: %w", err)
	}

	return &Result{Transport: t, Store: store}, nil
}

// Wrap returns rt wrapped by the transport, or rt unchanged when disabled.
func (r *Result) Wrap(rt http.RoundTripper) http.RoundTripper {
	if r == nil || r.Transport == nil {
		return rt
	}
	r.Transport.base = rt
	return r.Transport
}

// Close stops background refreshes and closes the store.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Transport != nil {
		if err := r.Transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transport close: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}
