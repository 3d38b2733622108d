package app

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/matheus3301/optsync/internal/backend"
	"github.com/matheus3301/optsync/internal/backend/sim"
	"github.com/matheus3301/optsync/internal/config"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/mutate"
)

// Mutation kind names accepted by the demo feed.
const (
	KindLike    = "like"
	KindCompose = "compose"
	KindEdit    = "edit-body"
)

// ComposePayload carries the fields of an optimistically created post.
type ComposePayload struct {
	Author string
	Body   string
}

// NewFeedRegistry builds the mutation kinds for the post feed: a like
// toggle, post composition, and a body edit.
func NewFeedRegistry() *mutate.Registry[entity.Post] {
	toggle := func(p entity.Post, _ any) entity.Post {
		if p.Liked {
			p.Liked = false
			p.Likes--
		} else {
			p.Liked = true
			p.Likes++
		}
		return p
	}

	reg := mutate.NewRegistry[entity.Post]()
	reg.MustRegister(mutate.Kind[entity.Post]{
		Name:     KindLike,
		Strategy: mutate.DeltaInvert,
		Apply:    toggle,
		// A toggle is its own inverse.
		Invert: toggle,
	})
	reg.MustRegister(mutate.Kind[entity.Post]{
		Name:     KindCompose,
		Strategy: mutate.EntityCreate,
		Create: func(payload any) entity.Post {
			pl := payload.(ComposePayload)
			return entity.Post{
				Envelope: entity.Envelope{ID: uuid.NewString()},
				Author:   pl.Author,
				Body:     pl.Body,
			}
		},
	})
	reg.MustRegister(mutate.Kind[entity.Post]{
		Name:     KindEdit,
		Strategy: mutate.FieldRestore,
		Apply: func(p entity.Post, payload any) entity.Post {
			p.Body = payload.(string)
			return p
		},
	})
	return reg
}

// seedFeed fills the simulated backend with a deterministic paginated feed
// and scripts one conflicting like so the demo exercises a rollback.
func seedFeed(be *sim.Backend[entity.Post], cfg config.SimConfig) {
	pages := cfg.Pages
	if pages <= 0 {
		pages = 1
	}
	size := cfg.PageSize
	if size <= 0 {
		size = 5
	}

	n := 0
	cursor := ""
	for p := 0; p < pages; p++ {
		items := make([]entity.Post, 0, size)
		for i := 0; i < size; i++ {
			n++
			items = append(items, entity.Post{
				Envelope: entity.Envelope{ID: fmt.Sprintf("post-%d", n), Version: 1},
				Author:   fmt.Sprintf("author-%d", n%4),
				Body:     fmt.Sprintf("post number %d", n),
				Likes:    (n * 3) % 17,
			})
		}
		next := ""
		if p < pages-1 {
			next = fmt.Sprintf("page-%d", p+2)
		}
		be.QueuePage(cursor, items, next)
		cursor = next
	}

	be.ScriptMutation("post-1", KindLike, backend.MutateResult[entity.Post]{
		Outcome: backend.OutcomeConflict,
		Reason:  "version mismatch",
	})
}
