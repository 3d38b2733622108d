// Package client composes the engine for one logical list context: the
// in-memory store, the fetch coordinator, the mutation engine, and the
// debounced snapshotter. A Client is explicitly constructed and passed to
// consumers; there is no ambient shared state.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/optsync/internal/backend"
	"github.com/matheus3301/optsync/internal/bus"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/fetch"
	"github.com/matheus3301/optsync/internal/mutate"
	"github.com/matheus3301/optsync/internal/persist"
	"github.com/matheus3301/optsync/internal/status"
	"github.com/matheus3301/optsync/internal/store"
	"go.uber.org/zap"
)

// DefaultDebounce is the snapshot debounce window used when Options leaves
// it zero.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a client.
type Options struct {
	Namespace string
	Debounce  time.Duration
}

// Client is the engine facade consumed by UI callers: reactive reads via
// OrderedIDs/Loading/Err/HasMore plus the bus, commands via
// FetchNext/Mutate/ResetContext.
type Client[E entity.Entity] struct {
	namespace string
	store     *store.Store[E]
	coord     *fetch.Coordinator[E]
	engine    *mutate.Engine[E]
	cache     *persist.Adapter
	snap      *persist.Snapshotter[E]
	machine   *status.Machine
	bus       *bus.Bus
	logger    *zap.Logger

	mu      sync.Mutex
	lastErr string
}

// New wires a client for one namespace over the given backend, mutation
// registry, and snapshot adapter.
func New[E entity.Entity](opts Options, be backend.Collaborator[E], reg *mutate.Registry[E], cache *persist.Adapter, b *bus.Bus, logger *zap.Logger) *Client[E] {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	st := store.New[E]()
	return &Client[E]{
		namespace: opts.Namespace,
		store:     st,
		coord:     fetch.NewCoordinator(be, st, b, logger),
		engine:    mutate.NewEngine(st, be, reg, b, logger),
		cache:     cache,
		snap:      persist.NewSnapshotter(st, cache, b, opts.Namespace, opts.Debounce, logger),
		machine:   status.NewMachine(b),
		bus:       b,
		logger:    logger,
	}
}

// Hydrate seeds the store from the persisted snapshot, if one exists.
// Called exactly once, before the first fetch, so the UI can render stale
// content instantly while the fresh page loads (stale-while-revalidate).
// Cache problems degrade to a cold start; they are never fatal.
func (c *Client[E]) Hydrate() {
	_ = c.machine.Transition(status.Hydrating)

	raw, savedAt, ok := c.cache.Load(c.namespace)
	if ok {
		items, order, _, err := persist.Decode[E](raw)
		if err != nil {
			c.logger.Warn("discarding unreadable cache snapshot",
				zap.String("namespace", c.namespace), zap.Error(err))
		} else {
			c.store.Restore(items, order)
			c.logger.Info("hydrated from cache",
				zap.String("namespace", c.namespace),
				zap.Int("entities", len(items)),
				zap.Int64("saved_at", savedAt))
			c.bus.Emit(bus.KindEngineHydrated, bus.SnapshotEvent{
				Namespace: c.namespace,
				Entities:  len(items),
				SavedAt:   savedAt,
			})
		}
	}

	_ = c.machine.Transition(status.Syncing)
}

// Start launches the background snapshotter.
func (c *Client[E]) Start(ctx context.Context) {
	c.snap.Start(ctx)
}

// Stop stops the snapshotter and flushes any unsaved changes.
func (c *Client[E]) Stop() {
	c.snap.Stop()
	c.snap.Flush()
}

// FetchNext loads the next page. A call while a fetch is in flight or after
// the list is exhausted is a no-op. On failure the prior list stays intact,
// Err() carries the reason, and a later FetchNext retries from the same
// cursor.
func (c *Client[E]) FetchNext(ctx context.Context) error {
	err := c.coord.FetchNext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		if c.machine.Current() != status.Degraded {
			_ = c.machine.Transition(status.Degraded)
		}
		return err
	}
	c.lastErr = ""
	if c.machine.Current() != status.Ready {
		_ = c.machine.Transition(status.Ready)
	}
	c.cache.MarkSynced(c.namespace, time.Now())
	return nil
}

// Mutate applies an optimistic mutation; see mutate.Engine.Apply.
func (c *Client[E]) Mutate(ctx context.Context, entityID, kind string, payload any) (*mutate.Handle, error) {
	return c.engine.Apply(ctx, entityID, kind, payload)
}

// ResetContext discards the current list and rewinds pagination, used when
// the caller switches context (another conversation, a new search query).
// Any in-flight page for the old context is invalidated.
func (c *Client[E]) ResetContext() {
	c.coord.Reset()
	c.store.Clear()

	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()

	if c.machine.Current() != status.Syncing {
		_ = c.machine.Transition(status.Syncing)
	}
	c.bus.Emit(bus.KindEngineReset, bus.SnapshotEvent{Namespace: c.namespace})
}

// OrderedIDs returns the display order of the list.
func (c *Client[E]) OrderedIDs() []string { return c.store.OrderedIDs() }

// Get returns one entity by id.
func (c *Client[E]) Get(id string) (E, bool) { return c.store.Get(id) }

// List returns the entities in display order.
func (c *Client[E]) List() []E { return c.store.List() }

// Loading reports whether a page fetch is in flight.
func (c *Client[E]) Loading() bool { return c.coord.Fetching() }

// HasMore reports whether further pages may exist.
func (c *Client[E]) HasMore() bool { return c.coord.HasMore() }

// Err returns the last fetch failure reason, "" if the last fetch succeeded.
func (c *Client[E]) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Status returns the engine lifecycle state.
func (c *Client[E]) Status() status.State { return c.machine.Current() }

// Pending returns the number of unconfirmed mutations.
func (c *Client[E]) Pending() int { return c.engine.PendingCount() }
