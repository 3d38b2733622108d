// Package fetch manages cursor-based pagination for one logical list:
// single-flight deduplication, terminal end-of-data detection, and
// invalidation of in-flight responses after a context switch.
package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/optsync/internal/backend"
	"github.com/matheus3301/optsync/internal/bus"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/store"
	"go.uber.org/zap"
)

// Error wraps a failed page fetch. Fetch failures are transient: cursor and
// hasMore are left untouched so a retry resumes from the same position.
type Error struct {
	Cursor string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch page (cursor %q): %v", e.Cursor, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Coordinator drives pagination for a store. At most one fetch is in flight
// at a time; a FetchNext call while fetching is a no-op.
type Coordinator[E entity.Entity] struct {
	backend backend.Collaborator[E]
	store   *store.Store[E]
	bus     *bus.Bus
	logger  *zap.Logger

	mu       sync.Mutex
	cursor   string
	page     int
	hasMore  bool
	fetching bool
	gen      uint64
}

// NewCoordinator creates a coordinator positioned at the first page.
func NewCoordinator[E entity.Entity](be backend.Collaborator[E], s *store.Store[E], b *bus.Bus, logger *zap.Logger) *Coordinator[E] {
	return &Coordinator[E]{
		backend: be,
		store:   s,
		bus:     b,
		logger:  logger,
		hasMore: true,
	}
}

// FetchNext retrieves the next page and applies it to the store: the first
// page replaces the list (cold refresh), later pages append. Returns nil
// without calling the backend when a fetch is already in flight or the list
// is exhausted.
func (c *Coordinator[E]) FetchNext(ctx context.Context) error {
	c.mu.Lock()
	if c.fetching || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	c.fetching = true
	cursor, page, gen := c.cursor, c.page, c.gen
	c.mu.Unlock()

	result, err := c.backend.FetchPage(ctx, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// The context was switched while this page was in flight; applying
		// it would pollute the new context's list.
		c.logger.Info("discarding superseded page", zap.String("cursor", cursor))
		return nil
	}
	c.fetching = false

	if err != nil {
		c.logger.Warn("page fetch failed",
			zap.String("cursor", cursor), zap.Int("page", page), zap.Error(err))
		c.bus.Emit(bus.KindFetchFailed, bus.FetchFailure{Cursor: cursor, Reason: err.Error()})
		return &Error{Cursor: cursor, Err: err}
	}

	if len(result.Items) == 0 {
		c.hasMore = false
		c.bus.Emit(bus.KindFetchExhausted, bus.PageEvent{Cursor: cursor})
		return nil
	}

	replaced := page == 0
	if replaced {
		c.store.ReplaceAll(result.Items)
	} else {
		c.store.Append(result.Items)
	}
	c.page = page + 1
	c.cursor = result.NextCursor
	c.hasMore = result.NextCursor != ""
	c.bus.Emit(bus.KindFetchPage, bus.PageEvent{
		Count:    len(result.Items),
		Cursor:   result.NextCursor,
		Replaced: replaced,
	})
	return nil
}

// Reset rewinds to the first page for a new context (conversation switch,
// new search query). Any in-flight fetch is invalidated: its late response
// will be discarded.
func (c *Coordinator[E]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cursor = ""
	c.page = 0
	c.hasMore = true
	c.fetching = false
}

// Fetching reports whether a page request is in flight.
func (c *Coordinator[E]) Fetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

// HasMore reports whether further pages may exist.
func (c *Coordinator[E]) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Cursor returns the current continuation token ("" at the first page).
func (c *Coordinator[E]) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}
