package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipegate/internal/core"
)

const (
	apiBase   = "https://api.example.com"
	imageURL  = "https://img.example.com/recipes/716429-312x231.jpg"
	shellURL  = "https://app.example.com/index.html"
	searchURL = apiBase + "/recipes/complexSearch?query=pasta"
)

// fakeUpstream answers every request with "<path>#<n>" where n counts calls
// to that path, or fails every request while down.
type fakeUpstream struct {
	mu     sync.Mutex
	down   bool
	status int
	calls  map[string]int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{status: http.StatusOK, calls: make(map[string]int)}
}

func (f *fakeUpstream) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls[req.URL.Path]++
	n := f.calls[req.URL.Path]
	down, status := f.down, f.status
	f.mu.Unlock()

	if down {
		return nil, errors.New("dial tcp: connect: network is unreachable")
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"text/plain"}, "Set-Cookie": {"a=b"}},
		Body:       io.NopCloser(strings.NewReader(fmt.Sprintf("%s#%d", req.URL.Path, n))),
		Request:    req,
	}, nil
}

func (f *fakeUpstream) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeUpstream) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newTestTransport(t *testing.T, upstream http.RoundTripper) (*Transport, *http.Client) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIHost = "api.example.com"
	tr := NewTransport(upstream, NewMemoryStore(), cfg)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, &http.Client{Transport: tr}
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules("api.example.com")
	tests := []struct {
		url      string
		class    Class
		strategy Strategy
		matched  bool
	}{
		{imageURL, ClassImages, CacheFirst, true},
		{apiBase + "/recipes/716429/information", ClassRecipes, CacheFirst, true},
		{searchURL, ClassAPI, NetworkFirst, true},
		{shellURL, ClassShell, StaleWhileRevalidate, true},
		{"https://app.example.com/", ClassShell, StaleWhileRevalidate, true},
		{"https://other.example.com/data", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			require.NoError(t, err)
			rule, ok := matchRule(rules, req)
			require.Equal(t, tt.matched, ok)
			if ok {
				assert.Equal(t, tt.class, rule.Class)
				assert.Equal(t, tt.strategy.String(), rule.Strategy.String())
			}
		})
	}
}

func TestTransport_CacheFirstImages(t *testing.T) {
	upstream := newFakeUpstream()
	_, client := newTestTransport(t, upstream)

	first, body1 := get(t, client, imageURL)
	assert.Empty(t, first.Header.Get(CacheHeader))

	second, body2 := get(t, client, imageURL)
	assert.Equal(t, outcomeHit, second.Header.Get(CacheHeader))
	assert.Equal(t, body1, body2)
	assert.Equal(t, 1, upstream.callCount("/recipes/716429-312x231.jpg"))
	assert.Empty(t, second.Header.Get("Set-Cookie"), "only allow-listed headers are stored")
}

func TestTransport_ImagePlaceholderWhenOffline(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.setDown(true)
	_, client := newTestTransport(t, upstream)

	resp, body := get(t, client, imageURL)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, outcomePlaceholder, resp.Header.Get(CacheHeader))
	assert.Contains(t, body, "<svg")
}

func TestTransport_RecipePageOfflinePayload(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.setDown(true)
	_, client := newTestTransport(t, upstream)

	resp, body := get(t, client, apiBase+"/recipes/1/information")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	err := core.ParseUpstreamError(resp.StatusCode, []byte(body))
	assert.True(t, err.Offline)
	assert.Equal(t, core.ErrorTypeNetwork, err.Type)
}

func TestTransport_NetworkFirstAPI(t *testing.T) {
	upstream := newFakeUpstream()
	_, client := newTestTransport(t, upstream)

	_, online := get(t, client, searchURL)
	assert.Equal(t, "/recipes/complexSearch#1", online)

	_, again := get(t, client, searchURL)
	assert.Equal(t, "/recipes/complexSearch#2", again, "network-first always tries the network")

	upstream.setDown(true)

	cached, body := get(t, client, searchURL)
	assert.Equal(t, outcomeFallback, cached.Header.Get(CacheHeader))
	assert.Equal(t, "/recipes/complexSearch#2", body)

	missing, payload := get(t, client, apiBase+"/recipes/random?number=1")
	assert.Equal(t, http.StatusServiceUnavailable, missing.StatusCode)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, true, decoded["offline"])
	assert.Equal(t, OfflineMessage, decoded["message"])
}

func TestTransport_StaleWhileRevalidate(t *testing.T) {
	upstream := newFakeUpstream()
	tr, client := newTestTransport(t, upstream)

	_, first := get(t, client, shellURL)
	assert.Equal(t, "/index.html#1", first)

	second, body := get(t, client, shellURL)
	assert.Equal(t, outcomeStale, second.Header.Get(CacheHeader))
	assert.Equal(t, "/index.html#1", body, "the stored copy is served immediately")

	tr.WaitRefreshes()

	_, third := get(t, client, shellURL)
	assert.Equal(t, "/index.html#2", third, "the background refresh replaced the stored copy")
	tr.WaitRefreshes()
	assert.Equal(t, 3, upstream.callCount("/index.html"))
}

func TestTransport_StaleWhileRevalidateMissWaitsForNetwork(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.setDown(true)
	_, client := newTestTransport(t, upstream)

	_, err := client.Get(shellURL)
	assert.Error(t, err)
}

func TestTransport_PassThrough(t *testing.T) {
	upstream := newFakeUpstream()
	tr, client := newTestTransport(t, upstream)

	resp, err := client.Post(apiBase+"/recipes/complexSearch", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	_ = resp.Body.Close()

	_, _ = get(t, client, "https://other.example.com/data")

	info, err := tr.Info(context.Background())
	require.NoError(t, err)
	for ns, n := range info {
		assert.Zero(t, n, "namespace %s should be empty", ns)
	}
}

func TestTransport_NonOKResponsesAreNotStored(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.status = http.StatusPaymentRequired
	tr, client := newTestTransport(t, upstream)

	resp, _ := get(t, client, searchURL)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	n, err := tr.store.Count(context.Background(), Namespace(ClassAPI, 1))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransport_OversizedBodyIsNotStored(t *testing.T) {
	upstream := newFakeUpstream()
	cfg := DefaultConfig()
	cfg.APIHost = "api.example.com"
	cfg.MaxAssetBytes = 4
	tr := NewTransport(upstream, NewMemoryStore(), cfg)
	defer tr.Close()
	client := &http.Client{Transport: tr}

	_, body := get(t, client, searchURL)
	assert.Equal(t, "/recipes/complexSearch#1", body, "the full body is still returned")

	n, err := tr.store.Count(context.Background(), Namespace(ClassAPI, 1))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransport_ActivateDeletesUnknownNamespaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, ns := range []string{"images-v1", "api-v1", "images-v2", "legacy-cache"} {
		require.NoError(t, store.Put(ctx, ns, &Asset{URL: "u", StatusCode: 200}))
	}

	cfg := DefaultConfig()
	cfg.Version = 2
	tr := NewTransport(newFakeUpstream(), store, cfg)
	defer tr.Close()

	deleted, err := tr.Activate(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"images-v1", "api-v1", "legacy-cache"}, deleted)

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"images-v2"}, names)
}

func TestTransport_InfoAndClear(t *testing.T) {
	ctx := context.Background()
	upstream := newFakeUpstream()
	tr, client := newTestTransport(t, upstream)

	get(t, client, imageURL)
	get(t, client, searchURL)

	info, err := tr.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"shell-v1": 0, "recipes-v1": 0, "images-v1": 1, "api-v1": 1}, info)

	require.NoError(t, tr.Clear(ctx))
	info, err = tr.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"shell-v1": 0, "recipes-v1": 0, "images-v1": 0, "api-v1": 0}, info)
}
