// Package sim provides a scripted fixed-latency Collaborator. It stands in
// for a real transport in demos and tests: pages are keyed by cursor and
// mutation verdicts can be queued per entity and kind.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/optsync/internal/backend"
	"github.com/matheus3301/optsync/internal/entity"
)

// Backend is a deterministic in-memory Collaborator implementation.
type Backend[E entity.Entity] struct {
	mu          sync.Mutex
	latency     time.Duration
	pages       map[string]backend.Page[E]
	results     map[string][]backend.MutateResult[E]
	nextFetch   error
	fetchCalls  int
	mutateCalls int
}

// New creates a simulated backend with the given artificial latency.
func New[E entity.Entity](latency time.Duration) *Backend[E] {
	return &Backend[E]{
		latency: latency,
		pages:   make(map[string]backend.Page[E]),
		results: make(map[string][]backend.MutateResult[E]),
	}
}

// QueuePage registers the page served for the given cursor ("" is the first
// page). Cursors without a registered page resolve to an empty terminal page.
func (b *Backend[E]) QueuePage(cursor string, items []E, nextCursor string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[cursor] = backend.Page[E]{Items: items, NextCursor: nextCursor}
}

// ScriptMutation queues a verdict for the next mutation on entityID+kind.
// Unscripted mutations commit with no authoritative fields.
func (b *Backend[E]) ScriptMutation(entityID, kind string, res backend.MutateResult[E]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := entityID + "/" + kind
	b.results[key] = append(b.results[key], res)
}

// FailNextFetch makes the next FetchPage call return err.
func (b *Backend[E]) FailNextFetch(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextFetch = err
}

// FetchCalls returns how many times FetchPage was invoked.
func (b *Backend[E]) FetchCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCalls
}

// MutateCalls returns how many times Mutate was invoked.
func (b *Backend[E]) MutateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mutateCalls
}

// FetchPage implements backend.Collaborator.
func (b *Backend[E]) FetchPage(ctx context.Context, cursor string) (*backend.Page[E], error) {
	if err := b.sleep(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++

	if err := b.nextFetch; err != nil {
		b.nextFetch = nil
		return nil, err
	}

	page, ok := b.pages[cursor]
	if !ok {
		return &backend.Page[E]{}, nil
	}
	out := backend.Page[E]{
		Items:      append([]E(nil), page.Items...),
		NextCursor: page.NextCursor,
	}
	return &out, nil
}

// Mutate implements backend.Collaborator.
func (b *Backend[E]) Mutate(ctx context.Context, entityID, kind string, _ any) (*backend.MutateResult[E], error) {
	if err := b.sleep(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutateCalls++

	key := entityID + "/" + kind
	if queue := b.results[key]; len(queue) > 0 {
		res := queue[0]
		b.results[key] = queue[1:]
		return &res, nil
	}
	return &backend.MutateResult[E]{Outcome: backend.OutcomeCommitted}, nil
}

func (b *Backend[E]) sleep(ctx context.Context) error {
	if b.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
