package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matheus3301/optsync/internal/bus"
	"github.com/matheus3301/optsync/internal/client"
	"github.com/matheus3301/optsync/internal/config"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/lock"
	"github.com/matheus3301/optsync/internal/persist"
	"go.uber.org/zap"
)

// Assembles the same components the fx module wires, without fx, and runs
// the demo workload end to end against a real cache database.
func TestAssembledEngineRunsDemoWorkload(t *testing.T) {
	tmpDir := t.TempDir()

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := persist.Open(filepath.Join(tmpDir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	cfg := config.Default()
	cfg.Sim.LatencyMS = 0
	cfg.Sim.PageSize = 3
	cfg.Sim.Pages = 2

	be := provideBackend(cfg)
	cache := persist.NewAdapter(db, zap.NewNop())
	c := client.New[entity.Post](client.Options{Namespace: "test"}, be, NewFeedRegistry(), cache, bus.New(), zap.NewNop())

	ctx := context.Background()
	c.Hydrate()
	runDemo(ctx, c, zap.NewNop())

	// 2 pages of 3 seeded posts plus the composed one.
	if got := len(c.OrderedIDs()); got != 7 {
		t.Fatalf("posts after demo = %d, want 7", got)
	}
	if c.HasMore() {
		t.Error("HasMore() = true after full load")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}

	// post-1's like was scripted to conflict, so it must be back to the
	// seeded value; post-2's like committed.
	p1, ok := c.Get("post-1")
	if !ok {
		t.Fatal("post-1 missing")
	}
	if p1.Liked || p1.Likes != 3 {
		t.Errorf("post-1 = {liked:%v likes:%d}, want rolled back to {liked:false likes:3}", p1.Liked, p1.Likes)
	}
	p2, ok := c.Get("post-2")
	if !ok {
		t.Fatal("post-2 missing")
	}
	if !p2.Liked || p2.Likes != 7 {
		t.Errorf("post-2 = {liked:%v likes:%d}, want {liked:true likes:7}", p2.Liked, p2.Likes)
	}
}

func TestFeedRegistryKinds(t *testing.T) {
	reg := NewFeedRegistry()
	for _, name := range []string{KindLike, KindCompose, KindEdit} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("kind %q not registered", name)
		}
	}
}

func TestSeedFeedPagination(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.LatencyMS = 0
	cfg.Sim.PageSize = 2
	cfg.Sim.Pages = 3

	be := provideBackend(cfg)
	ctx := context.Background()

	cursor := ""
	seen := 0
	for pages := 0; pages < 10; pages++ {
		page, err := be.FetchPage(ctx, cursor)
		if err != nil {
			t.Fatal(err)
		}
		seen += len(page.Items)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if seen != 6 {
		t.Errorf("seeded posts = %d, want 6", seen)
	}
}

func TestComposeCreatesDistinctIDs(t *testing.T) {
	reg := NewFeedRegistry()
	k, ok := reg.Lookup(KindCompose)
	if !ok {
		t.Fatal("compose kind not registered")
	}
	a := k.Create(ComposePayload{Author: "x", Body: "one"})
	b := k.Create(ComposePayload{Author: "x", Body: "two"})
	if a.EntityID() == "" || a.EntityID() == b.EntityID() {
		t.Errorf("compose ids = %q, %q, want distinct non-empty", a.EntityID(), b.EntityID())
	}
}
