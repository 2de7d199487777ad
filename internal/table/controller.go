package table

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/upstream"
)

var (
	// ErrNotMounted is returned by view intents that arrive before Mount.
	ErrNotMounted = errors.New("table: not mounted")
	// ErrNoPendingDelete is returned by ConfirmDelete without a request.
	ErrNoPendingDelete = errors.New("table: no pending delete")
)

// Source is the collection a controller drives. *feature.Slice implements it.
type Source interface {
	FetchCollection(ctx context.Context, p upstream.ListParams) (remote.Transition, error)
	Delete(ctx context.Context, id string) (remote.Transition, error)
	Pagination(ctx context.Context) (*domain.Pagination, error)
}

// Replacer mirrors the view into the address bar without adding history.
type Replacer interface {
	Replace(query string)
}

// ReplacerFunc adapts a function to Replacer.
type ReplacerFunc func(query string)

func (f ReplacerFunc) Replace(query string) { f(query) }

type Option func(*Controller)

func WithReplacer(r Replacer) Option {
	return func(c *Controller) { c.replacer = r }
}

func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = NewDebouncer(d) }
}

// OnFetched registers a callback run after every fetch the controller issues,
// including debounced ones.
func OnFetched(fn func(ViewState, remote.Transition)) Option {
	return func(c *Controller) { c.onFetched = fn }
}

// Controller owns the view state of one list view.
type Controller struct {
	source    Source
	defaults  Defaults
	replacer  Replacer
	debounce  *Debouncer
	onFetched func(ViewState, remote.Transition)

	mu            sync.Mutex
	ctx           context.Context //nolint:containedctx // lifetime of the mounted view, used by debounced fetches
	mounted       bool
	view          ViewState
	location      string
	pendingDelete string
}

func NewController(source Source, defaults Defaults, opts ...Option) *Controller {
	c := &Controller{
		source:   source,
		defaults: defaults.normalized(),
		debounce: NewDebouncer(DefaultSearchDebounce),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Mount parses the initial query and runs the first fetch. ctx bounds the
// view's lifetime: debounced searches use it after Mount returns.
func (c *Controller) Mount(ctx context.Context, q url.Values) (remote.Transition, error) {
	c.mu.Lock()
	c.ctx = ctx
	c.view = ParseQuery(q, c.defaults)
	c.mounted = true
	view := c.view
	c.mu.Unlock()

	return c.fetch(ctx, view)
}

// Unmount drops pending debounced work. The caller resets the slice.
func (c *Controller) Unmount() {
	c.debounce.Cancel()
	c.mu.Lock()
	c.mounted = false
	c.pendingDelete = ""
	c.mu.Unlock()
}

func (c *Controller) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.Sort = slices.Clone(v.Sort)
	return v
}

// Location is the last query string handed to the replacer.
func (c *Controller) Location() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// change applies mutate to the view and fetches the result.
func (c *Controller) change(ctx context.Context, mutate func(*ViewState)) (remote.Transition, error) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return remote.Transition{}, ErrNotMounted
	}
	mutate(&c.view)
	view := c.view
	c.mu.Unlock()

	return c.fetch(ctx, view)
}

func (c *Controller) SetPage(ctx context.Context, page int) (remote.Transition, error) {
	return c.change(ctx, func(v *ViewState) { v.Page = max(1, page) })
}

// SetLimit changes the page size and goes back to the first page.
func (c *Controller) SetLimit(ctx context.Context, limit int) (remote.Transition, error) {
	return c.change(ctx, func(v *ViewState) {
		if limit <= 0 {
			limit = c.defaults.Limit
		}
		v.Limit = min(limit, c.defaults.MaxLimit)
		v.Page = 1
	})
}

func (c *Controller) SetSort(ctx context.Context, sort []upstream.SortField) (remote.Transition, error) {
	return c.change(ctx, func(v *ViewState) {
		v.Sort = slices.Clone(sort)
	})
}

// TypeSearch records raw input. Once typing pauses, a changed search term
// resets to page 1 and fetches exactly once.
func (c *Controller) TypeSearch(input string) {
	term := strings.TrimSpace(input)
	c.debounce.Debounce(func() {
		c.mu.Lock()
		if !c.mounted || term == c.view.Search {
			c.mu.Unlock()
			return
		}
		ctx := c.ctx
		c.view.Search = term
		c.view.Page = 1
		view := c.view
		c.mu.Unlock()

		if _, err := c.fetch(ctx, view); err != nil {
			log.Warn().Err(err).Str("search", term).Msg("debounced search failed")
		}
	})
}

// FlushSearch runs a pending debounced search now.
func (c *Controller) FlushSearch() bool {
	return c.debounce.Flush()
}

func (c *Controller) RequestDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = id
}

func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = ""
}

func (c *Controller) PendingDelete() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingDelete
}

// ConfirmDelete deletes the pending id and refetches the current page, which
// clamps it when the deletion emptied the last page.
func (c *Controller) ConfirmDelete(ctx context.Context) (remote.Transition, error) {
	c.mu.Lock()
	id := c.pendingDelete
	c.pendingDelete = ""
	mounted := c.mounted
	view := c.view
	c.mu.Unlock()

	if id == "" {
		return remote.Transition{}, ErrNoPendingDelete
	}
	tr, err := c.source.Delete(ctx, id)
	if err != nil {
		return tr, fmt.Errorf("table.Controller.ConfirmDelete: %w", err)
	}
	if tr.Status == remote.StatusSucceeded && mounted {
		if _, err := c.fetch(ctx, view); err != nil {
			return tr, fmt.Errorf("table.Controller.ConfirmDelete: refetch: %w", err)
		}
	}
	return tr, nil
}

// fetch mirrors view into the URL, fetches it and clamps the page against the
// pagination the backend reported. A clamp that moves the page refetches.
func (c *Controller) fetch(ctx context.Context, view ViewState) (remote.Transition, error) {
	c.replace(view)

	tr, err := c.source.FetchCollection(ctx, view.Params())
	if err != nil {
		return tr, fmt.Errorf("table.Controller.fetch: %w", err)
	}
	if c.onFetched != nil {
		c.onFetched(view, tr)
	}
	if tr.Stale || tr.Status != remote.StatusSucceeded {
		return tr, nil
	}

	pg, err := c.source.Pagination(ctx)
	if err != nil || pg == nil {
		return tr, nil //nolint:nilerr // no pagination means nothing to clamp
	}
	clamped := Clamp(view.Page, pg.TotalPages)
	if clamped == view.Page {
		return tr, nil
	}

	c.mu.Lock()
	if !c.view.Equal(view) {
		// A newer intent already replaced this view.
		c.mu.Unlock()
		return tr, nil
	}
	c.view.Page = clamped
	next := c.view
	c.mu.Unlock()

	log.Debug().Int("from", view.Page).Int("to", clamped).Msg("page clamped")
	return c.fetch(ctx, next)
}

func (c *Controller) replace(view ViewState) {
	loc := view.Encode()
	c.mu.Lock()
	if loc == c.location {
		c.mu.Unlock()
		return
	}
	c.location = loc
	c.mu.Unlock()

	if c.replacer != nil {
		c.replacer.Replace(loc)
	}
}
