package bus

import "time"

// Kind identifies an event family. Kinds are dot-namespaced so subscribers
// can filter by prefix ("mutation.", "fetch.", ...).
type Kind string

const (
	// Mutation lifecycle.
	KindMutationApplied    Kind = "mutation.applied"
	KindMutationCommitted  Kind = "mutation.committed"
	KindMutationRolledBack Kind = "mutation.rolled_back"

	// Pagination.
	KindFetchPage      Kind = "fetch.page"
	KindFetchFailed    Kind = "fetch.failed"
	KindFetchExhausted Kind = "fetch.exhausted"

	// Durability.
	KindSnapshotSaved  Kind = "snapshot.saved"
	KindSnapshotFailed Kind = "snapshot.failed"

	// Engine lifecycle.
	KindEngineHydrated Kind = "engine.hydrated"
	KindEngineReset    Kind = "engine.reset"
	KindEngineStatus   Kind = "engine.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}

// MutationEvent is the payload for mutation.* events. Name is the mutation
// kind ("like-toggle", "send", ...), not the event kind.
type MutationEvent struct {
	MutationID string
	EntityID   string
	Name       string
	Attempt    int
	Reason     string
}

// PageEvent is the payload for fetch.page and fetch.exhausted.
type PageEvent struct {
	Count    int
	Cursor   string
	Replaced bool
}

// FetchFailure is the payload for fetch.failed.
type FetchFailure struct {
	Cursor string
	Reason string
}

// SnapshotEvent is the payload for snapshot.* and engine.hydrated.
type SnapshotEvent struct {
	Namespace string
	Entities  int
	SavedAt   int64
}
