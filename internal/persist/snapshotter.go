package persist

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/optsync/internal/bus"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/store"
	"go.uber.org/zap"
)

// Snapshotter persists the store whenever it has changed since the last
// save. The polling interval is the debounce window: rapid optimistic churn
// collapses into at most one write per tick.
type Snapshotter[E entity.Entity] struct {
	store     *store.Store[E]
	adapter   *Adapter
	bus       *bus.Bus
	logger    *zap.Logger
	namespace string
	interval  time.Duration
	cancel    context.CancelFunc

	mu        sync.Mutex
	lastSaved uint64
}

// NewSnapshotter creates a snapshotter for one namespace.
func NewSnapshotter[E entity.Entity](s *store.Store[E], a *Adapter, b *bus.Bus, namespace string, interval time.Duration, logger *zap.Logger) *Snapshotter[E] {
	return &Snapshotter[E]{
		store:     s,
		adapter:   a,
		bus:       b,
		logger:    logger,
		namespace: namespace,
		interval:  interval,
	}
}

// Start begins the debounced save loop.
func (s *Snapshotter[E]) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the loop.
func (s *Snapshotter[E]) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Snapshotter[E]) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// Flush saves a snapshot now if the store changed since the last save.
// Called from the loop and once more on shutdown.
func (s *Snapshotter[E]) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := s.store.Dirty()
	if dirty == s.lastSaved {
		return
	}

	items, order := s.store.Snapshot()
	now := time.Now()
	raw, err := Encode(items, order, now)
	if err != nil {
		// Serialization failure is non-fatal, same as a storage failure.
		s.logger.Error("snapshot encode failed", zap.Error(err))
		s.bus.Emit(bus.KindSnapshotFailed, bus.SnapshotEvent{Namespace: s.namespace})
		return
	}

	if !s.adapter.Save(s.namespace, raw, now.UnixMilli()) {
		s.bus.Emit(bus.KindSnapshotFailed, bus.SnapshotEvent{Namespace: s.namespace})
		return
	}
	s.lastSaved = dirty
	s.bus.Emit(bus.KindSnapshotSaved, bus.SnapshotEvent{
		Namespace: s.namespace,
		Entities:  len(items),
		SavedAt:   now.UnixMilli(),
	})
}
