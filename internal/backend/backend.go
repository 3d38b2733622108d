// Package backend defines the asynchronous boundary between the engine and
// the logical server. The engine assumes a single backend that may succeed,
// fail, or report a conflict; transports (simulated, HTTP, WebSocket) are
// interchangeable implementations of Collaborator.
package backend

import (
	"context"

	"github.com/matheus3301/optsync/internal/entity"
)

// Outcome classifies a mutation response.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeConflict  Outcome = "conflict"
	OutcomeError     Outcome = "error"
)

// Page is one slice of a paginated list. An empty NextCursor means there is
// no further page; empty Items signal end of data regardless of cursor.
type Page[E entity.Entity] struct {
	Items      []E
	NextCursor string
}

// MutateResult is the server's verdict on a mutation. Authoritative, when
// non-nil, carries replacement fields that overwrite the optimistic value
// on commit.
type MutateResult[E entity.Entity] struct {
	Outcome       Outcome
	Reason        string
	Authoritative *E
}

// Collaborator is the backend consumed by the fetch coordinator and the
// mutation engine. An empty cursor requests the first page.
type Collaborator[E entity.Entity] interface {
	FetchPage(ctx context.Context, cursor string) (*Page[E], error)
	Mutate(ctx context.Context, entityID, kind string, payload any) (*MutateResult[E], error)
}
