// Package listing implements the paginated, filterable, searchable list view
// shared by every managed resource.
//
// Pagination and the status filter are server-side. A search term is matched
// client-side against the whole collection for the current filter; while a
// term is active, pagination is computed over the matches and page changes
// never hit the network. Clearing the term restores server pagination.
package listing

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource"
	dErrors "trash4cash/pkg/domain-errors"
)

const DefaultLimit = 10

// Loader fetches one page of a collection.
type Loader interface {
	List(ctx context.Context, resource string, q gateway.ListQuery) (*gateway.ListResponse, error)
}

// State is a snapshot of what the list view displays.
type State[T any] struct {
	Items        []T    `json:"items"`
	TotalRows    int    `json:"totalRows"`
	TotalPages   int    `json:"totalPages"`
	IsLoading    bool   `json:"isLoading"`
	IsError      bool   `json:"isError"`
	Err          error  `json:"-"`
	Error        string `json:"error,omitempty"`
	CurrentPage  int    `json:"currentPage"`
	CurrentLimit int    `json:"currentLimit"`
	StatusFilter string `json:"statusFilter"`
	SearchTerm   string `json:"searchTerm"`
}

// Controller drives one list view. It is safe for concurrent use; backend
// calls run outside the lock.
type Controller[T resource.Record[T]] struct {
	desc         resource.Descriptor[T]
	loader       Loader
	cache        *querycache.Cache
	notifier     notify.Notifier
	logger       *slog.Logger
	serverSearch bool

	mu         sync.Mutex
	page       int
	limit      int
	status     string
	search     string
	clientPage int
	generation uint64
	loading    bool
	err        error

	// displayKey names the cache entry currently shown; lastGood is its last
	// value, kept for when the entry is gone.
	displayKey querycache.Key
	hasDisplay bool
	lastGood   resource.Page[T]

	corpusKey querycache.Key
	hasCorpus bool
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	limit        int
	notifier     notify.Notifier
	logger       *slog.Logger
	serverSearch bool
}

// WithLimit sets the initial page size. Default is 10.
func WithLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.limit = n
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithServerSearch sends the search term to the backend as a query parameter
// instead of matching it client-side.
func WithServerSearch() Option {
	return func(o *options) { o.serverSearch = true }
}

// New creates a list controller positioned on page 1 with no filter.
// Nothing is fetched until Load.
func New[T resource.Record[T]](desc resource.Descriptor[T], loader Loader, cache *querycache.Cache, opts ...Option) *Controller[T] {
	o := options{
		limit:    DefaultLimit,
		notifier: notify.Nop,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Controller[T]{
		desc:         desc,
		loader:       loader,
		cache:        cache,
		notifier:     o.notifier,
		logger:       o.logger,
		serverSearch: o.serverSearch,
		page:         1,
		limit:        o.limit,
		clientPage:   1,
	}
}

// Descriptor returns the resource the controller lists.
func (c *Controller[T]) Descriptor() resource.Descriptor[T] {
	return c.desc
}

// Load fetches the current page, and the search corpus when a client-side
// search is active. Failures are reported through State and notifications.
func (c *Controller[T]) Load(ctx context.Context) {
	c.refresh(ctx)
}

// SetPage moves to page n. While a client-side search is active only the
// client page changes.
func (c *Controller[T]) SetPage(ctx context.Context, n int) error {
	if n < 1 {
		return dErrors.New(dErrors.CodeValidation, "page must be at least 1")
	}
	c.mu.Lock()
	if c.clientSearchLocked() {
		c.clientPage = n
		c.mu.Unlock()
		return nil
	}
	c.page = n
	c.mu.Unlock()

	c.refresh(ctx)
	return nil
}

// SetLimit changes the page size and returns to page 1.
func (c *Controller[T]) SetLimit(ctx context.Context, n int) error {
	if n < 1 {
		return dErrors.New(dErrors.CodeValidation, "limit must be at least 1")
	}
	c.mu.Lock()
	c.limit = n
	c.page = 1
	c.clientPage = 1
	searching := c.clientSearchLocked()
	c.mu.Unlock()

	// the corpus is already loaded; only the client page size changed
	if searching {
		return nil
	}
	c.refresh(ctx)
	return nil
}

// SetStatusFilter filters by status; "" clears the filter. Returns to page 1.
func (c *Controller[T]) SetStatusFilter(ctx context.Context, status string) error {
	if status != "" && !c.desc.Statuses.Contains(status) {
		return dErrors.New(dErrors.CodeValidation, "unknown "+c.desc.Label+" status "+status)
	}
	c.mu.Lock()
	c.status = status
	c.page = 1
	c.clientPage = 1
	c.hasCorpus = false
	c.mu.Unlock()

	c.refresh(ctx)
	return nil
}

// SetSearchTerm sets or clears the search term.
func (c *Controller[T]) SetSearchTerm(ctx context.Context, term string) error {
	c.mu.Lock()
	c.search = term
	c.clientPage = 1
	if c.serverSearch {
		c.page = 1
	}
	c.mu.Unlock()

	c.refresh(ctx)
	return nil
}

// Refetch invalidates the current page, and the search corpus if any, and
// loads them again.
func (c *Controller[T]) Refetch(ctx context.Context) {
	c.mu.Lock()
	keys := []querycache.Key{c.serverKeyLocked()}
	if c.hasCorpus {
		keys = append(keys, c.corpusKey)
	}
	c.hasCorpus = false
	c.mu.Unlock()

	for _, k := range keys {
		c.cache.Invalidate(k)
	}
	c.refresh(ctx)
}

func (c *Controller[T]) clientSearchLocked() bool {
	return !c.serverSearch && strings.TrimSpace(c.search) != ""
}

func (c *Controller[T]) serverKeyLocked() querycache.Key {
	search := ""
	if c.serverSearch {
		search = strings.TrimSpace(c.search)
	}
	return querycache.ListKey(c.desc.Kind, c.page, c.limit, c.status, search)
}

// refresh loads the server page for the current parameters and, when a
// client-side search is active, the search corpus. Results of a superseded
// refresh are discarded.
func (c *Controller[T]) refresh(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	key := c.serverKeyLocked()
	c.loading = true
	c.mu.Unlock()

	page, err := c.fetch(ctx, key)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "discarding superseded list response", "key", key.String())
		return
	}
	if err != nil {
		c.failLocked(ctx, err)
		return
	}
	c.err = nil
	c.displayKey = key
	c.hasDisplay = true
	c.lastGood = page
	if !c.clientSearchLocked() {
		c.loading = false
		c.mu.Unlock()
		return
	}
	corpusKey, complete := c.corpusKeyLocked(key, page)
	c.mu.Unlock()

	if !complete {
		if _, err = c.fetch(ctx, corpusKey); err != nil {
			c.mu.Lock()
			if gen == c.generation {
				c.failLocked(ctx, err)
				return
			}
			c.mu.Unlock()
			return
		}
	}

	c.mu.Lock()
	if gen == c.generation {
		c.corpusKey = corpusKey
		c.hasCorpus = true
		c.loading = false
	}
	c.mu.Unlock()
}

// corpusKeyLocked picks the query holding every row for the current filter.
// complete reports whether the displayed page already does.
func (c *Controller[T]) corpusKeyLocked(displayed querycache.Key, page resource.Page[T]) (querycache.Key, bool) {
	if displayed.Page == 1 && page.Total <= len(page.Items) {
		return displayed, true
	}
	return querycache.ListKey(c.desc.Kind, 1, max(page.Total, 1), c.status, ""), false
}

// failLocked records a fetch failure and releases the lock.
func (c *Controller[T]) failLocked(ctx context.Context, err error) {
	c.loading = false
	c.err = err
	c.mu.Unlock()

	c.logger.WarnContext(ctx, "list fetch failed", "resource", c.desc.Kind.String(), "error", err)
	c.notifier.Notify(ctx, notify.Failure("Error fetching "+c.desc.Plural, gateway.Describe(err)))
}

func (c *Controller[T]) fetch(ctx context.Context, key querycache.Key) (resource.Page[T], error) {
	page, err := querycache.Fetch(ctx, c.cache, key, func(ctx context.Context) (resource.Page[T], error) {
		resp, err := c.loader.List(ctx, key.Resource.String(), gateway.ListQuery{
			Page:   key.Page,
			Limit:  key.Limit,
			Status: key.Status,
			Search: key.Search,
			Sort:   key.Sort,
		})
		if err != nil {
			return resource.Page[T]{}, err
		}
		page, skipped := c.desc.PageFrom(resp, key.Limit)
		if skipped > 0 {
			c.logger.WarnContext(ctx, "skipped records without id", "resource", key.Resource.String(), "count", skipped)
		}
		return page, nil
	})
	if err != nil {
		return resource.Page[T]{}, dErrors.Reclassify(err, dErrors.CodeFetchFailed, "failed to fetch "+c.desc.Plural)
	}
	return page, nil
}

// State returns what the view displays. Rows are read from the cache so that
// optimistic patches show up immediately.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State[T]{
		IsLoading:    c.loading,
		IsError:      c.err != nil,
		Err:          c.err,
		CurrentLimit: c.limit,
		StatusFilter: c.status,
		SearchTerm:   c.search,
	}
	if c.err != nil {
		st.Error = dErrors.Message(c.err, "")
	}

	displayed := c.displayedLocked()

	if c.clientSearchLocked() {
		corpus := displayed
		if c.hasCorpus {
			if p, ok := querycache.PeekAs[resource.Page[T]](c.cache, c.corpusKey); ok {
				corpus = p
			}
		}
		matches := c.desc.Filter(corpus.Items, c.search)
		st.TotalRows = len(matches)
		st.TotalPages = resource.PageCount(len(matches), c.limit)
		st.CurrentPage = c.clientPage
		st.Items = window(matches, c.clientPage, c.limit)
		return st
	}

	st.CurrentPage = c.page
	st.Items = displayed.Items
	if st.Items == nil {
		st.Items = []T{}
	}
	st.TotalRows = displayed.Total
	st.TotalPages = displayed.TotalPages
	if st.TotalPages == 0 {
		st.TotalPages = resource.PageCount(displayed.Total, c.limit)
	}
	return st
}

func (c *Controller[T]) displayedLocked() resource.Page[T] {
	if !c.hasDisplay {
		return resource.Page[T]{}
	}
	if p, ok := querycache.PeekAs[resource.Page[T]](c.cache, c.displayKey); ok {
		return p
	}
	return c.lastGood
}

// window returns the 1-based page of items; pages past the end are empty.
func window[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}
