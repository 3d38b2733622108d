package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/optsync/internal/backend"
	"github.com/matheus3301/optsync/internal/bus"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrPending rejects a second mutation of the same kind on an entity
	// while one is still unconfirmed (rapid double-clicks).
	ErrPending = errors.New("mutation already pending for this entity and kind")
	// ErrUnknownKind rejects mutation kinds that were never registered.
	ErrUnknownKind = errors.New("unknown mutation kind")
	// ErrEntityMissing rejects a mutation on an entity the store does not hold.
	ErrEntityMissing = errors.New("entity not found")
	// ErrEntityExists rejects an optimistic create for an id already present.
	ErrEntityExists = errors.New("entity already exists")
)

// State is the lifecycle of a pending mutation. Applied is the only
// non-terminal state; there is no transition back to pending.
type State string

const (
	StateApplied    State = "APPLIED"
	StateCommitted  State = "COMMITTED"
	StateRolledBack State = "ROLLED_BACK"
)

// Error is the typed failure surfaced when a mutation is rolled back.
// Conflict distinguishes a server-reported conflict (resource changed
// concurrently) from a generic transient failure; retry policy belongs to
// the caller either way.
type Error struct {
	EntityID string
	Name     string
	Conflict bool
	Reason   string
}

func (e *Error) Error() string {
	verdict := "failed"
	if e.Conflict {
		verdict = "conflicted"
	}
	return fmt.Sprintf("mutation %q on %s %s: %s", e.Name, e.EntityID, verdict, e.Reason)
}

// Pending records one in-flight optimistic mutation with enough information
// to invert it. Created at apply time, destroyed at reconciliation.
type Pending[E entity.Entity] struct {
	ID        string
	EntityID  string
	Kind      string
	Strategy  Strategy
	Payload   any
	Before    E
	HasBefore bool
	CreatedAt time.Time
	Attempt   int
}

// Result is the terminal outcome delivered on a handle.
type Result struct {
	State  State
	Reason string
	Err    error
}

// Handle tracks one mutation from optimistic apply to reconciliation.
type Handle struct {
	MutationID string
	EntityID   string
	Kind       string
	Attempt    int

	done   chan struct{}
	result Result
}

// Done is closed once the mutation is committed or rolled back.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the terminal outcome. Only valid after Done is closed.
func (h *Handle) Result() Result { return h.result }

// Wait blocks until reconciliation or context cancellation. Cancellation
// abandons the wait only; the mutation itself still resolves.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (h *Handle) finish(r Result) {
	h.result = r
	close(h.done)
}

// Engine applies optimistic mutations and reconciles them against the
// backend. All store effects of Apply happen synchronously, before the
// backend call starts, so callers render the new state instantly.
type Engine[E entity.Entity] struct {
	store    *store.Store[E]
	backend  backend.Collaborator[E]
	registry *Registry[E]
	bus      *bus.Bus
	logger   *zap.Logger

	mu       sync.Mutex
	pending  map[string]*Pending[E] // keyed by entityID + kind
	attempts map[string]int
}

// NewEngine creates a mutation engine over the given store and backend.
func NewEngine[E entity.Entity](s *store.Store[E], be backend.Collaborator[E], reg *Registry[E], b *bus.Bus, logger *zap.Logger) *Engine[E] {
	return &Engine[E]{
		store:    s,
		backend:  be,
		registry: reg,
		bus:      b,
		logger:   logger,
		pending:  make(map[string]*Pending[E]),
		attempts: make(map[string]int),
	}
}

func pendKey(entityID, kind string) string {
	return entityID + "\x00" + kind
}

// Apply performs an optimistic mutation. The delta is in the store before
// Apply returns; the backend is consulted asynchronously and the returned
// handle resolves to committed or rolled-back. For EntityCreate kinds
// entityID may be empty: the created entity supplies its own id.
func (m *Engine[E]) Apply(ctx context.Context, entityID, kind string, payload any) (*Handle, error) {
	k, ok := m.registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	m.mu.Lock()
	p := &Pending[E]{
		ID:        uuid.NewString(),
		Kind:      kind,
		Strategy:  k.Strategy,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	switch k.Strategy {
	case EntityCreate:
		created := k.Create(payload)
		if entityID == "" {
			entityID = created.EntityID()
		}
		key := pendKey(entityID, kind)
		if _, exists := m.pending[key]; exists {
			m.mu.Unlock()
			return nil, ErrPending
		}
		if _, exists := m.store.Get(entityID); exists {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrEntityExists, entityID)
		}
		m.store.Upsert(created)
	default:
		key := pendKey(entityID, kind)
		if _, exists := m.pending[key]; exists {
			m.mu.Unlock()
			return nil, ErrPending
		}
		cur, exists := m.store.Get(entityID)
		if !exists {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrEntityMissing, entityID)
		}
		p.Before = cur
		p.HasBefore = true
		m.store.Upsert(k.Apply(cur, payload))
	}

	p.EntityID = entityID
	key := pendKey(entityID, kind)
	m.attempts[key]++
	p.Attempt = m.attempts[key]
	m.pending[key] = p
	m.mu.Unlock()

	m.bus.Emit(bus.KindMutationApplied, bus.MutationEvent{
		MutationID: p.ID,
		EntityID:   entityID,
		Name:       kind,
		Attempt:    p.Attempt,
	})

	h := &Handle{
		MutationID: p.ID,
		EntityID:   entityID,
		Kind:       kind,
		Attempt:    p.Attempt,
		done:       make(chan struct{}),
	}
	go m.resolve(ctx, k, p, h)
	return h, nil
}

// PendingCount returns the number of unconfirmed mutations.
func (m *Engine[E]) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// resolve waits for the backend verdict and reconciles. Any error result,
// including context cancellation, unconditionally resolves the pending
// record; nothing stays pending forever.
func (m *Engine[E]) resolve(ctx context.Context, k Kind[E], p *Pending[E], h *Handle) {
	res, err := m.backend.Mutate(ctx, p.EntityID, p.Kind, p.Payload)

	m.mu.Lock()
	key := pendKey(p.EntityID, p.Kind)
	delete(m.pending, key)

	if err == nil && res.Outcome == backend.OutcomeCommitted {
		delete(m.attempts, key)
		if res.Authoritative != nil {
			// The server sent replacement fields; they win over the
			// optimistic value.
			m.store.Upsert(*res.Authoritative)
		}
		m.mu.Unlock()

		m.bus.Emit(bus.KindMutationCommitted, bus.MutationEvent{
			MutationID: p.ID,
			EntityID:   p.EntityID,
			Name:       p.Kind,
			Attempt:    p.Attempt,
		})
		h.finish(Result{State: StateCommitted})
		return
	}

	// Roll back the optimistic delta.
	switch p.Strategy {
	case DeltaInvert:
		if cur, ok := m.store.Get(p.EntityID); ok {
			m.store.Upsert(k.Invert(cur, p.Payload))
		}
	case EntityCreate:
		m.store.Remove(p.EntityID)
	case FieldRestore:
		if p.HasBefore {
			m.store.Upsert(p.Before)
		}
	}
	m.mu.Unlock()

	merr := &Error{EntityID: p.EntityID, Name: p.Kind}
	if err != nil {
		merr.Reason = err.Error()
	} else {
		merr.Conflict = res.Outcome == backend.OutcomeConflict
		merr.Reason = res.Reason
	}

	m.logger.Warn("mutation rolled back",
		zap.String("mutation_id", p.ID),
		zap.String("entity_id", p.EntityID),
		zap.String("kind", p.Kind),
		zap.Bool("conflict", merr.Conflict),
		zap.String("reason", merr.Reason))
	m.bus.Emit(bus.KindMutationRolledBack, bus.MutationEvent{
		MutationID: p.ID,
		EntityID:   p.EntityID,
		Name:       p.Kind,
		Attempt:    p.Attempt,
		Reason:     merr.Reason,
	})
	h.finish(Result{State: StateRolledBack, Reason: merr.Reason, Err: merr})
}
