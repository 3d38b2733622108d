// Package mutate applies optimistic mutations to the entity store, tracks
// pending records while the backend confirms them, and commits or rolls
// back when the verdict arrives.
package mutate

import (
	"fmt"

	"github.com/matheus3301/optsync/internal/entity"
)

// Strategy selects how a mutation kind is rolled back.
type Strategy int

const (
	// DeltaInvert applies the inverse delta to the current entity. Used for
	// counter-style mutations (likes, votes, quantity edits); concurrent
	// mutations of other kinds on the same entity survive the rollback.
	DeltaInvert Strategy = iota
	// EntityCreate optimistically creates a new entity (a sent chat
	// message); rollback removes it.
	EntityCreate
	// FieldRestore snapshots the entity before the mutation and restores
	// that exact value on rollback.
	FieldRestore
)

// Kind describes one registered mutation kind. Which functions are required
// depends on the strategy: DeltaInvert needs Apply and Invert, FieldRestore
// needs Apply, EntityCreate needs Create.
type Kind[E entity.Entity] struct {
	Name     string
	Strategy Strategy
	Apply    func(e E, payload any) E
	Invert   func(e E, payload any) E
	Create   func(payload any) E
}

// Registry is the closed set of mutation kinds an engine accepts.
type Registry[E entity.Entity] struct {
	kinds map[string]Kind[E]
}

// NewRegistry creates an empty registry.
func NewRegistry[E entity.Entity]() *Registry[E] {
	return &Registry[E]{kinds: make(map[string]Kind[E])}
}

// Register adds a kind, validating that the functions its strategy needs
// are present.
func (r *Registry[E]) Register(k Kind[E]) error {
	if k.Name == "" {
		return fmt.Errorf("register kind: empty name")
	}
	if _, exists := r.kinds[k.Name]; exists {
		return fmt.Errorf("register kind %q: already registered", k.Name)
	}
	switch k.Strategy {
	case DeltaInvert:
		if k.Apply == nil || k.Invert == nil {
			return fmt.Errorf("register kind %q: delta-invert needs Apply and Invert", k.Name)
		}
	case FieldRestore:
		if k.Apply == nil {
			return fmt.Errorf("register kind %q: field-restore needs Apply", k.Name)
		}
	case EntityCreate:
		if k.Create == nil {
			return fmt.Errorf("register kind %q: entity-create needs Create", k.Name)
		}
	default:
		return fmt.Errorf("register kind %q: unknown strategy %d", k.Name, k.Strategy)
	}
	r.kinds[k.Name] = k
	return nil
}

// MustRegister is Register for static kind tables.
func (r *Registry[E]) MustRegister(k Kind[E]) {
	if err := r.Register(k); err != nil {
		panic(err)
	}
}

// Lookup returns the kind registered under name.
func (r *Registry[E]) Lookup(name string) (Kind[E], bool) {
	k, ok := r.kinds[name]
	return k, ok
}
