package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"recipegate/internal/core"
)

// ErrControllerClosed is returned for commands sent after Close.
var ErrControllerClosed = errors.New("offline controller is closed")

// CommandType names a control command.
type CommandType string

const (
	CommandClear       CommandType = "clear"
	CommandCacheRecipe CommandType = "cache-recipe"
	CommandInfo        CommandType = "info"
)

// Command is a message to the controller. Reply is filled by the controller.
type Command struct {
	Type     CommandType
	RecipeID int

	ctx   context.Context
	reply chan Reply
}

// Reply carries the outcome of a Command.
type Reply struct {
	Counts map[string]int
	Cached CachedRecipe
	Err    error
}

// CachedRecipe describes a recipe stored by CommandCacheRecipe.
type CachedRecipe struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ImageCached bool   `json:"imageCached"`
}

// RecipeSource resolves full recipe documents.
type RecipeSource interface {
	GetRecipeDetails(ctx context.Context, id int) (*core.RecipeDetail, error)
}

// Controller serializes control commands against the offline cache on a
// single goroutine.
type Controller struct {
	transport  *Transport
	source     RecipeSource
	images     *http.Client
	apiBaseURL string

	commands  chan Command
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewController starts the command loop. images should be a client whose
// transport is t, so prefetched images land in the images namespace.
func NewController(t *Transport, source RecipeSource, images *http.Client, apiBaseURL string) *Controller {
	c := &Controller{
		transport:  t,
		source:     source,
		images:     images,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		commands:   make(chan Command),
		done:       make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

func (c *Controller) loop() {
	defer c.wg.Done()

	for {
		select {
		case cmd := <-c.commands:
			cmd.reply <- c.handle(cmd)
		case <-c.done:
			return
		}
	}
}

func (c *Controller) handle(cmd Command) Reply {
	switch cmd.Type {
	case CommandClear:
		if err := c.transport.Clear(cmd.ctx); err != nil {
			return Reply{Err: err}
		}
		slog.Info("offline cache cleared")
		return Reply{}

	case CommandInfo:
		counts, err := c.transport.Info(cmd.ctx)
		return Reply{Counts: counts, Err: err}

	case CommandCacheRecipe:
		cached, err := c.cacheRecipe(cmd.ctx, cmd.RecipeID)
		return Reply{Cached: cached, Err: err}

	default:
		return Reply{Err: fmt.Errorf("unknown offline command %q", cmd.Type)}
	}
}

// cacheRecipe stores the recipe document in the recipes namespace and makes
// a best-effort attempt to prefetch its image.
func (c *Controller) cacheRecipe(ctx context.Context, id int) (CachedRecipe, error) {
	if c.source == nil {
		return CachedRecipe{}, fmt.Errorf("no recipe source configured")
	}
	detail, err := c.source.GetRecipeDetails(ctx, id)
	if err != nil {
		return CachedRecipe{}, err
	}

	body, err := json.Marshal(detail)
	if err != nil {
		return CachedRecipe{}, fmt.Errorf("encoding recipe %d: %w", id, err)
	}
	asset := &Asset{
		URL:        c.apiBaseURL + "/recipes/" + strconv.Itoa(id) + "/information",
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       body,
		StoredAt:   c.transport.now(),
	}
	if err := c.transport.store.Put(ctx, Namespace(ClassRecipes, c.transport.version), asset); err != nil {
		return CachedRecipe{}, err
	}

	cached := CachedRecipe{ID: id, Title: detail.Title}
	if detail.Image != "" && c.images != nil {
		cached.ImageCached = c.prefetch(ctx, detail.Image)
	}
	return cached, nil
}

func (c *Controller) prefetch(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Debug("image prefetch skipped", "url", url, "error", err)
		return false
	}
	resp, err := c.images.Do(req)
	if err != nil {
		slog.Debug("image prefetch failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK && resp.Header.Get(CacheHeader) != outcomePlaceholder
}

func (c *Controller) send(ctx context.Context, cmd Command) (Reply, error) {
	cmd.ctx = ctx
	cmd.reply = make(chan Reply, 1)

	select {
	case c.commands <- cmd:
	case <-c.done:
		return Reply{}, ErrControllerClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r, r.Err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Clear deletes every namespace.
func (c *Controller) Clear(ctx context.Context) error {
	_, err := c.send(ctx, Command{Type: CommandClear})
	return err
}

// CacheRecipe stores a recipe for offline use.
func (c *Controller) CacheRecipe(ctx context.Context, id int) (CachedRecipe, error) {
	r, err := c.send(ctx, Command{Type: CommandCacheRecipe, RecipeID: id})
	return r.Cached, err
}

// Info reports the item count per namespace.
func (c *Controller) Info(ctx context.Context) (map[string]int, error) {
	r, err := c.send(ctx, Command{Type: CommandInfo})
	return r.Counts, err
}

// Close stops the command loop. Safe to call multiple times.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
	return nil
}
