package persist

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/optsync/internal/entity"
)

// blob is the serialized cache snapshot: the entities plus the ordered id
// list, stamped with the save time. There is no schema version field; the
// SQLite layer itself is versioned by migrations.
type blob[E entity.Entity] struct {
	Entities []E      `json:"entities"`
	Order    []string `json:"order"`
	SavedAt  int64    `json:"savedAt"`
}

// Encode serializes a store snapshot to the persisted JSON form.
func Encode[E entity.Entity](items []E, order []string, savedAt time.Time) ([]byte, error) {
	raw, err := json.Marshal(blob[E]{
		Entities: items,
		Order:    order,
		SavedAt:  savedAt.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}

// Decode deserializes a persisted snapshot.
func Decode[E entity.Entity](raw []byte) (items []E, order []string, savedAt int64, err error) {
	var b blob[E]
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, nil, 0, fmt.Errorf("decode snapshot: %w", err)
	}
	return b.Entities, b.Order, b.SavedAt, nil
}

// PutSnapshot inserts or overwrites the snapshot for a namespace (idempotent).
func (db *DB) PutSnapshot(namespace string, raw []byte, savedAt int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO snapshots (namespace, blob, saved_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			blob = excluded.blob,
			saved_at = excluded.saved_at,
			updated_at = excluded.updated_at`,
		namespace, string(raw), savedAt, now)
	return err
}

// GetSnapshot returns the snapshot for a namespace, or (nil, 0, nil) when
// none has been saved yet.
func (db *DB) GetSnapshot(namespace string) ([]byte, int64, error) {
	var raw string
	var savedAt int64
	err := db.QueryRow(`SELECT blob, saved_at FROM snapshots WHERE namespace = ?`, namespace).
		Scan(&raw, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return []byte(raw), savedAt, nil
}
