package offline

import (
	"context"
	"sort"
	"sync"
)

// Store persists assets by namespace and URL.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, namespace, url string) (*Asset, bool, error)
	Put(ctx context.Context, namespace string, asset *Asset) error
	Namespaces(ctx context.Context) ([]string, error)
	Count(ctx context.Context, namespace string) (int, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	Close() error
}

// MemoryStore keeps assets in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]map[string]*Asset
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[string]map[string]*Asset)}
}

func (m *MemoryStore) Get(_ context.Context, namespace, url string) (*Asset, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[namespace][url]
	if !ok {
		return nil, false, nil
	}
	return cloneAsset(a), true, nil
}

func (m *MemoryStore) Put(_ context.Context, namespace string, asset *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.assets[namespace]
	if !ok {
		ns = make(map[string]*Asset)
		m.assets[namespace] = ns
	}
	ns[asset.URL] = cloneAsset(asset)
	return nil
}

func (m *MemoryStore) Namespaces(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.assets))
	for name := range m.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Count(_ context.Context, namespace string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets[namespace]), nil
}

func (m *MemoryStore) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assets, namespace)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneAsset(a *Asset) *Asset {
	out := *a
	out.Header = a.Header.Clone()
	out.Body = append([]byte(nil), a.Body...)
	return &out
}
