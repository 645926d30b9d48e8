// Package list keeps the single task collection shown to the user and
// coordinates the fetches that replace or extend it.
package list

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Joseda-hg/taskflow/internal/api"
	"github.com/Joseda-hg/taskflow/internal/model"
)

var (
	ErrNoMorePages = errors.New("no more pages")
	ErrNotLoaded   = errors.New("task list not loaded")
)

const (
	fetchFailedMessage = "failed to fetch tasks"
	noMoreMessage      = "No more tasks to load"
)

type Fetcher interface {
	ListTasks(ctx context.Context, scope api.Scope, query api.Query) (model.Page, error)
}

type Notifier interface {
	Error(message string)
}

// ScopeFor picks the listing endpoint for role. With backendScoped every role
// reads the caller-scoped endpoint and the backend decides what is visible.
func ScopeFor(role model.Role, backendScoped bool) api.Scope {
	if role.IsAdmin() && !backendScoped {
		return api.ScopeAll
	}
	return api.ScopeOwn
}

type mode int

const (
	replace mode = iota
	appendPage
)

// State is a copy of the coordinator's view of the collection.
type State struct {
	Tasks     []model.Task
	NextToken *string
	Loading   bool
	Loaded    bool
	Filter    model.Filter
	Sort      model.Sort
	Scope     api.Scope
	Err       error
}

func (s State) HasMore() bool {
	return s.NextToken != nil
}

type Coordinator struct {
	fetcher       Fetcher
	notes         Notifier
	logger        *zap.Logger
	backendScoped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	scope       api.Scope
	tasks       []model.Task
	cursor      *string
	filter      model.Filter
	sort        model.Sort
	loading     bool
	loaded      bool
	lastErr     error
	seq         uint64
	pendingMore bool
	onChange    func()
}

type Option func(*Coordinator)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithBackendScoped(enabled bool) Option {
	return func(c *Coordinator) { c.backendScoped = enabled }
}

// WithCriteria sets the filter and sort the first load uses.
func WithCriteria(filter model.Filter, directive model.Sort) Option {
	return func(c *Coordinator) {
		for field, value := range filter {
			c.filter = c.filter.With(field, value)
		}
		if directive.Field != "" {
			c.sort = directive
		}
	}
}

func New(fetcher Fetcher, notes Notifier, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		fetcher: fetcher,
		notes:   notes,
		logger:  zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		scope:   api.ScopeOwn,
		filter:  model.Filter{},
		sort:    model.DefaultSort,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("list")
	return c
}

// OnChange registers a callback run after every applied state change, outside
// the coordinator's lock.
func (c *Coordinator) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// LoadInitial selects the scope for role and fetches the first page.
func (c *Coordinator) LoadInitial(role model.Role) {
	c.mu.Lock()
	c.scope = ScopeFor(role, c.backendScoped)
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Coordinator) SetFilter(field model.FilterField, value string) {
	c.mu.Lock()
	c.filter = c.filter.With(field, value)
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Coordinator) ClearFilters() {
	c.mu.Lock()
	c.filter = model.Filter{}
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Coordinator) SetSort(directive model.Sort) {
	c.mu.Lock()
	c.sort = directive
	c.resetLocked()
	c.mu.Unlock()
}

// Apply replaces filter and sort together with a single fetch.
func (c *Coordinator) Apply(filter model.Filter, directive model.Sort) {
	c.mu.Lock()
	c.filter = model.Filter{}
	for field, value := range filter {
		c.filter = c.filter.With(field, value)
	}
	if directive.Field == "" {
		directive = model.DefaultSort
	}
	c.sort = directive
	c.resetLocked()
	c.mu.Unlock()
}

// Refresh refetches page one with the current criteria.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

// LoadMore appends the next page. While a fetch is outstanding the request is
// parked and replayed against the cursor that fetch leaves behind.
func (c *Coordinator) LoadMore() error {
	c.mu.Lock()
	if c.loading {
		c.pendingMore = true
		c.mu.Unlock()
		return nil
	}
	if !c.loaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	if c.cursor == nil {
		c.mu.Unlock()
		c.notes.Error(noMoreMessage)
		return ErrNoMorePages
	}
	c.startLocked(appendPage)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Tasks:     append([]model.Task(nil), c.tasks...),
		NextToken: c.cursor,
		Loading:   c.loading,
		Loaded:    c.loaded,
		Filter:    c.filter.Clone(),
		Sort:      c.sort,
		Scope:     c.scope,
		Err:       c.lastErr,
	}
}

// Wait blocks until every fetch issued so far, including replayed LoadMore
// calls, has returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding fetches and waits for their goroutines.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) resetLocked() {
	c.cursor = nil
	c.pendingMore = false
	c.startLocked(replace)
}

func (c *Coordinator) startLocked(m mode) {
	c.seq++
	seq := c.seq
	query := api.Query{Filter: c.filter.Clone(), Sort: c.sort}
	if m == appendPage {
		query.NextToken = c.cursor
	}
	scope := c.scope
	c.loading = true

	c.wg.Add(1)
	go c.fetch(seq, m, scope, query)
}

func (c *Coordinator) fetch(seq uint64, m mode, scope api.Scope, query api.Query) {
	defer c.wg.Done()

	page, err := c.fetcher.ListTasks(c.ctx, scope, query)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding stale response", zap.Uint64("seq", seq))
		return
	}
	c.loading = false
	c.lastErr = err
	pending := c.pendingMore
	c.pendingMore = false
	exhausted := false

	if err != nil && m == replace {
		// The cursor was reset, so LoadMore has nothing to continue from
		// until a replace succeeds.
		c.loaded = false
	}
	if err == nil {
		c.loaded = true
		if m == replace {
			c.tasks = append([]model.Task(nil), page.Items...)
		} else {
			c.tasks = append(c.tasks, page.Items...)
		}
		c.cursor = page.NextToken
		if pending {
			if c.cursor != nil {
				c.startLocked(appendPage)
			} else {
				exhausted = true
			}
		}
	}
	fn := c.onChange
	c.mu.Unlock()

	switch {
	case err != nil && c.ctx.Err() == nil:
		c.logger.Warn("fetch tasks failed", zap.String("scope", string(scope)), zap.Error(err))
		c.notes.Error(api.MessageOf(err, fetchFailedMessage))
	case exhausted:
		c.notes.Error(noMoreMessage)
	}
	if fn != nil {
		fn()
	}
}
