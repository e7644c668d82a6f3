package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Transport is an http.RoundTripper that answers GET requests from the asset
// store according to the matching Rule. Requests that match no rule, and
// non-GET requests, go straight to the base transport.
type Transport struct {
	base     http.RoundTripper
	store    Store
	rules    []Rule
	version  int
	maxBytes int64
	now      func() time.Time

	// background revalidation
	ctx       context.Context
	cancel    context.CancelFunc
	refreshes singleflight.Group
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, store Store, cfg Config) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	def := DefaultConfig()
	if cfg.Version <= 0 {
		cfg.Version = def.Version
	}
	if cfg.MaxAssetBytes <= 0 {
		cfg.MaxAssetBytes = def.MaxAssetBytes
	}
	if cfg.APIHost == "" {
		cfg.APIHost = def.APIHost
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		base:     base,
		store:    store,
		rules:    DefaultRules(cfg.APIHost),
		version:  cfg.Version,
		maxBytes: cfg.MaxAssetBytes,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Version returns the namespace generation in use.
func (t *Transport) Version() int {
	return t.version
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}
	rule, ok := matchRule(t.rules, req)
	if !ok {
		return t.base.RoundTrip(req)
	}

	ns := Namespace(rule.Class, t.version)
	switch rule.Strategy {
	case NetworkFirst:
		return t.networkFirst(req, rule.Class, ns)
	case StaleWhileRevalidate:
		return t.staleWhileRevalidate(req, rule.Class, ns)
	default:
		return t.cacheFirst(req, rule.Class, ns)
	}
}

func (t *Transport) cacheFirst(req *http.Request, class Class, ns string) (*http.Response, error) {
	key := req.URL.String()
	if a := t.lookup(req.Context(), ns, key); a != nil {
		record(class, outcomeHit)
		return toResponse(a, req, outcomeHit), nil
	}

	asset, resp, err := t.fetch(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, err
		}
		slog.Debug("offline cache miss with network failure", "class", class, "url", key, "error", err)
		if class == ClassImages {
			record(class, outcomePlaceholder)
			return toResponse(placeholderAsset(key), req, outcomePlaceholder), nil
		}
		record(class, outcomeOffline)
		return toResponse(offlineAsset(key), req, outcomeOffline), nil
	}
	record(class, outcomeNetwork)
	if resp != nil {
		return resp, nil
	}
	t.save(req.Context(), ns, asset)
	return toResponse(asset, req, ""), nil
}

func (t *Transport) networkFirst(req *http.Request, class Class, ns string) (*http.Response, error) {
	key := req.URL.String()

	asset, resp, err := t.fetch(req)
	if err == nil {
		record(class, outcomeNetwork)
		if resp != nil {
			return resp, nil
		}
		t.save(req.Context(), ns, asset)
		return toResponse(asset, req, ""), nil
	}
	if req.Context().Err() != nil {
		return nil, err
	}

	if a := t.lookup(req.Context(), ns, key); a != nil {
		record(class, outcomeFallback)
		return toResponse(a, req, outcomeFallback), nil
	}

	slog.Debug("offline total miss", "class", class, "url", key, "error", err)
	record(class, outcomeOffline)
	return toResponse(offlineAsset(key), req, outcomeOffline), nil
}

func (t *Transport) staleWhileRevalidate(req *http.Request, class Class, ns string) (*http.Response, error) {
	key := req.URL.String()
	if a := t.lookup(req.Context(), ns, key); a != nil {
		record(class, outcomeStale)
		t.revalidate(req, ns)
		return toResponse(a, req, outcomeStale), nil
	}

	asset, resp, err := t.fetch(req)
	if err != nil {
		record(class, outcomeError)
		return nil, err
	}
	record(class, outcomeNetwork)
	if resp != nil {
		return resp, nil
	}
	t.save(req.Context(), ns, asset)
	return toResponse(asset, req, ""), nil
}

// revalidate refreshes a stored asset in the background. Concurrent
// refreshes of the same URL share one fetch.
func (t *Transport) revalidate(req *http.Request, ns string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	key := req.URL.String()
	bg := req.Clone(t.ctx)

	go func() {
		defer t.wg.Done()
		_, _, _ = t.refreshes.Do(ns+" "+key, func() (any, error) {
			asset, resp, err := t.fetch(bg)
			if err != nil {
				slog.Debug("background refresh failed", "url", key, "error", err)
				return nil, err
			}
			if resp != nil {
				_ = resp.Body.Close()
				return nil, nil
			}
			t.save(t.ctx, ns, asset)
			return nil, nil
		})
	}()
}

// fetch performs the network request. A cacheable 200 response is returned
// as an asset with its body consumed; anything else is returned as resp.
func (t *Transport) fetch(req *http.Request) (*Asset, *http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > t.maxBytes {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return nil, resp, nil
	}
	_ = resp.Body.Close()

	return &Asset{
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     filterHeader(resp.Header),
		Body:       body,
		StoredAt:   t.now(),
	}, nil, nil
}

func (t *Transport) lookup(ctx context.Context, ns, key string) *Asset {
	if t.store == nil {
		return nil
	}
	a, ok, err := t.store.Get(ctx, ns, key)
	if err != nil {
		slog.Warn("offline store read failed", "namespace", ns, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return a
}

func (t *Transport) save(ctx context.Context, ns string, a *Asset) {
	if t.store == nil {
		return
	}
	if err := t.store.Put(ctx, ns, a); err != nil {
		slog.Warn("offline store write failed", "namespace", ns, "url", a.URL, "error", err)
	}
}

// Activate deletes every namespace that does not belong to the current version.
func (t *Transport) Activate(ctx context.Context) ([]string, error) {
	names, err := t.store.Namespaces(ctx)
	if err != nil {
		return nil, err
	}

	known := KnownNamespaces(t.version)
	var deleted []string
	for _, name := range names {
		if _, ok := known[name]; ok {
			continue
		}
		if err := t.store.DeleteNamespace(ctx, name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	if len(deleted) > 0 {
		slog.Info("offline cache activated", "version", t.version, "deleted", deleted)
	}
	return deleted, nil
}

// Clear deletes every namespace.
func (t *Transport) Clear(ctx context.Context) error {
	names, err := t.store.Namespaces(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := t.store.DeleteNamespace(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Info returns the item count of each current namespace plus any stale ones still stored.
func (t *Transport) Info(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for name := range KnownNamespaces(t.version) {
		counts[name] = 0
	}

	names, err := t.store.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		n, err := t.store.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, nil
}

// WaitRefreshes blocks until in-flight background refreshes finish.
func (t *Transport) WaitRefreshes() {
	t.wg.Wait()
}

// Close cancels background refreshes and waits for them to exit.
// It does not close the store.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	return nil
}

func toResponse(a *Asset, req *http.Request, state string) *http.Response {
	header := a.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if state != "" {
		header.Set(CacheHeader, state)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", a.StatusCode, http.StatusText(a.StatusCode)),
		StatusCode:    a.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(a.Body)),
		ContentLength: int64(len(a.Body)),
		Request:       req,
	}
}
