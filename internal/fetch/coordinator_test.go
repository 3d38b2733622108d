package fetch

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/optsync/internal/backend"
	"github.com/matheus3301/optsync/internal/bus"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/store"
	"go.uber.org/zap"
)

// mockBackend records FetchPage calls and serves scripted pages with an
// optional artificial delay to observe in-flight states.
type mockBackend struct {
	mu    sync.Mutex
	calls []string // cursors requested
	pages map[string]backend.Page[entity.Post]
	err   error
	delay time.Duration
}

func (m *mockBackend) FetchPage(ctx context.Context, cursor string) (*backend.Page[entity.Post], error) {
	m.mu.Lock()
	m.calls = append(m.calls, cursor)
	err := m.err
	page, ok := m.pages[cursor]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return &backend.Page[entity.Post]{}, nil
	}
	return &page, nil
}

func (m *mockBackend) Mutate(context.Context, string, string, any) (*backend.MutateResult[entity.Post], error) {
	return &backend.MutateResult[entity.Post]{Outcome: backend.OutcomeCommitted}, nil
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func posts(ids ...string) []entity.Post {
	out := make([]entity.Post, 0, len(ids))
	for _, id := range ids {
		out = append(out, entity.Post{Envelope: entity.Envelope{ID: id, Version: 1}})
	}
	return out
}

func newCoordinator(m *mockBackend) (*Coordinator[entity.Post], *store.Store[entity.Post]) {
	st := store.New[entity.Post]()
	c := NewCoordinator[entity.Post](m, st, bus.New(), zap.NewNop())
	return c, st
}

func TestFetchFirstPageReplaces(t *testing.T) {
	m := &mockBackend{pages: map[string]backend.Page[entity.Post]{
		"": {Items: posts("p1", "p2"), NextCursor: "c2"},
	}}
	c, st := newCoordinator(m)
	st.Upsert(entity.Post{Envelope: entity.Envelope{ID: "cached-stale"}})

	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"p1", "p2"}
	if got := st.OrderedIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("OrderedIDs() = %v, want %v (page 1 replaces cached list)", got, want)
	}
	if c.Cursor() != "c2" {
		t.Errorf("Cursor() = %q, want c2", c.Cursor())
	}
	if !c.HasMore() {
		t.Error("HasMore() = false, want true")
	}
}

func TestFetchSecondPageAppends(t *testing.T) {
	m := &mockBackend{pages: map[string]backend.Page[entity.Post]{
		"":   {Items: posts("p1"), NextCursor: "c2"},
		"c2": {Items: posts("p2"), NextCursor: "c3"},
	}}
	c, st := newCoordinator(m)

	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"p1", "p2"}
	if got := st.OrderedIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("OrderedIDs() = %v, want %v", got, want)
	}
}

func TestSingleFlight(t *testing.T) {
	m := &mockBackend{
		delay: 200 * time.Millisecond,
		pages: map[string]backend.Page[entity.Post]{
			"": {Items: posts("p1"), NextCursor: ""},
		},
	}
	c, _ := newCoordinator(m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.FetchNext(context.Background())
	}()

	// Wait until the first call is in flight, then issue a second.
	deadline := time.Now().Add(time.Second)
	for !c.Fetching() {
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatalf("duplicate FetchNext() error = %v, want nil no-op", err)
	}

	wg.Wait()
	if m.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (single-flight)", m.callCount())
	}
}

func TestEmptyPageIsTerminal(t *testing.T) {
	m := &mockBackend{pages: map[string]backend.Page[entity.Post]{
		"": {Items: posts("p1", "p2"), NextCursor: "c2"},
		// c2 unregistered: served as empty page.
	}}
	c, st := newCoordinator(m)

	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.HasMore() {
		t.Fatal("HasMore() = true after empty page, want false")
	}

	// A third call must be a no-op: no backend invocation, state unchanged.
	calls := m.callCount()
	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.callCount() != calls {
		t.Error("FetchNext() after exhaustion must not call the backend")
	}
	if got := st.OrderedIDs(); len(got) != 2 {
		t.Errorf("store has %d ids, want 2", len(got))
	}
}

func TestNullNextCursorEndsPagination(t *testing.T) {
	m := &mockBackend{pages: map[string]backend.Page[entity.Post]{
		"": {Items: posts("p1"), NextCursor: ""},
	}}
	c, _ := newCoordinator(m)

	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.HasMore() {
		t.Error("HasMore() = true, want false after page with no next cursor")
	}
}

func TestFailureLeavesCursorForRetry(t *testing.T) {
	m := &mockBackend{
		err: errors.New("connection reset"),
		pages: map[string]backend.Page[entity.Post]{
			"": {Items: posts("p1"), NextCursor: "c2"},
		},
	}
	c, st := newCoordinator(m)

	err := c.FetchNext(context.Background())
	if err == nil {
		t.Fatal("FetchNext() should surface the backend error")
	}
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("error type = %T, want *fetch.Error", err)
	}
	if c.Cursor() != "" || !c.HasMore() {
		t.Error("failure must leave cursor and hasMore unchanged")
	}
	if st.Len() != 0 {
		t.Error("failed fetch must not touch the store")
	}

	// Explicit retry from the same position succeeds.
	m.mu.Lock()
	m.err = nil
	m.mu.Unlock()
	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if got := st.OrderedIDs(); !reflect.DeepEqual(got, []string{"p1"}) {
		t.Errorf("OrderedIDs() = %v, want [p1]", got)
	}
}

// TestResetDiscardsLateResponse verifies the generation check: a page that
// resolves after Reset must not be applied to the new context's store.
func TestResetDiscardsLateResponse(t *testing.T) {
	m := &mockBackend{
		delay: 150 * time.Millisecond,
		pages: map[string]backend.Page[entity.Post]{
			"": {Items: posts("old-ctx"), NextCursor: "c2"},
		},
	}
	c, st := newCoordinator(m)

	done := make(chan error, 1)
	go func() { done <- c.FetchNext(context.Background()) }()

	// Switch context while the page is in flight.
	deadline := time.Now().Add(time.Second)
	for !c.Fetching() {
		if time.Now().After(deadline) {
			t.Fatal("fetch never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Reset()

	if err := <-done; err != nil {
		t.Fatalf("superseded FetchNext() error = %v, want nil", err)
	}
	if st.Len() != 0 {
		t.Errorf("store has %d entities, want 0 (late page discarded)", st.Len())
	}
	if c.Cursor() != "" || !c.HasMore() {
		t.Error("Reset() should rewind to the first page")
	}
}

func TestResetAllowsImmediateRefetch(t *testing.T) {
	m := &mockBackend{
		delay: 150 * time.Millisecond,
		pages: map[string]backend.Page[entity.Post]{
			"": {Items: posts("p1"), NextCursor: ""},
		},
	}
	c, st := newCoordinator(m)

	go func() { _ = c.FetchNext(context.Background()) }()
	deadline := time.Now().Add(time.Second)
	for !c.Fetching() {
		if time.Now().After(deadline) {
			t.Fatal("fetch never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Reset()

	// The new context can fetch without waiting for the stale flight.
	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st.Len() != 1 {
		t.Errorf("store has %d entities, want 1", st.Len())
	}
}

func TestFetchPublishesPageEvents(t *testing.T) {
	m := &mockBackend{pages: map[string]backend.Page[entity.Post]{
		"": {Items: posts("p1"), NextCursor: "c2"},
	}}
	st := store.New[entity.Post]()
	b := bus.New()
	c := NewCoordinator[entity.Post](m, st, b, zap.NewNop())

	ch, unsub := b.Subscribe("fetch.", 10)
	defer unsub()

	if err := c.FetchNext(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindFetchPage {
			t.Fatalf("event kind = %q, want fetch.page", evt.Kind)
		}
		page, ok := evt.Payload.(bus.PageEvent)
		if !ok {
			t.Fatalf("payload type = %T, want PageEvent", evt.Payload)
		}
		if page.Count != 1 || !page.Replaced || page.Cursor != "c2" {
			t.Errorf("payload = %+v, want {1 c2 true}", page)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for fetch.page event")
	}
}

// TestScenarioTwoPagesThenExhausted walks the canonical pagination sequence:
// two items with a cursor, then an empty page, then a no-op.
func TestScenarioTwoPagesThenExhausted(t *testing.T) {
	m := &mockBackend{pages: map[string]backend.Page[entity.Post]{
		"": {Items: posts("a", "b"), NextCursor: "c2"},
	}}
	c, st := newCoordinator(m)
	ctx := context.Background()

	steps := []struct {
		wantIDs     int
		wantHasMore bool
	}{
		{2, true},  // first page: 2 items, cursor c2
		{2, false}, // second page: empty, terminal
		{2, false}, // third call: no-op, state unchanged
	}
	for i, step := range steps {
		if err := c.FetchNext(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if st.Len() != step.wantIDs {
			t.Errorf("step %d: store len = %d, want %d", i, st.Len(), step.wantIDs)
		}
		if c.HasMore() != step.wantHasMore {
			t.Errorf("step %d: HasMore() = %v, want %v", i, c.HasMore(), step.wantHasMore)
		}
	}
	if m.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2 (third call is a no-op)", m.callCount())
	}
}
