// Package entity defines the closed set of domain records the engine
// manages. Every variant embeds Envelope, giving it a stable id and a
// server-owned version marker. Variants must stay plain value structs
// (no pointers, slices, or maps) so that copying one is an exact snapshot;
// rollback relies on that.
package entity

// Entity is the constraint satisfied by every domain record variant.
type Entity interface {
	EntityID() string
	EntityVersion() int64
}

// Envelope is the common header embedded in every entity variant.
type Envelope struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// EntityID returns the stable entity id.
func (e Envelope) EntityID() string { return e.ID }

// EntityVersion returns the server-owned version marker.
func (e Envelope) EntityVersion() int64 { return e.Version }

// Post is a feed entry with a like toggle.
type Post struct {
	Envelope
	Author string `json:"author"`
	Body   string `json:"body"`
	Likes  int    `json:"likes"`
	Liked  bool   `json:"liked"`
}

// PollOption is a single votable option in a poll.
type PollOption struct {
	Envelope
	Label string `json:"label"`
	Votes int    `json:"votes"`
	Voted bool   `json:"voted"`
}

// Message is a chat message. Locally originated messages start with
// status "sending" and move to "sent" once the backend confirms.
type Message struct {
	Envelope
	ChatID string `json:"chat_id"`
	Sender string `json:"sender"`
	Body   string `json:"body"`
	Status string `json:"status"`
	SentAt int64  `json:"sent_at"`
}

// CartItem is a product line in a shopping cart.
type CartItem struct {
	Envelope
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitCents int64  `json:"unit_cents"`
	Quantity  int    `json:"quantity"`
}
