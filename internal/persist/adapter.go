package persist

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Adapter is the snapshot boundary handed to the engine. It swallows
// persistence failures: a failed save is logged and skipped, a failed load
// degrades to a cold start. Callers never see a persistence error.
type Adapter struct {
	db     *DB
	logger *zap.Logger
}

// NewAdapter creates a snapshot adapter over the cache database.
func NewAdapter(db *DB, logger *zap.Logger) *Adapter {
	return &Adapter{db: db, logger: logger}
}

// Load returns the persisted snapshot for the namespace, if any.
// Read errors are logged and reported as absent.
func (a *Adapter) Load(namespace string) (raw []byte, savedAt int64, ok bool) {
	raw, savedAt, err := a.db.GetSnapshot(namespace)
	if err != nil {
		a.logger.Warn("cache load failed, starting cold",
			zap.String("namespace", namespace), zap.Error(err))
		return nil, 0, false
	}
	if raw == nil {
		return nil, 0, false
	}
	return raw, savedAt, true
}

// Save persists a snapshot. Returns false on failure so the snapshotter can
// retry on the next tick; the failure itself is non-fatal.
func (a *Adapter) Save(namespace string, raw []byte, savedAt int64) bool {
	if err := a.db.PutSnapshot(namespace, raw, savedAt); err != nil {
		a.logger.Error("cache save failed, keeping in-memory state",
			zap.String("namespace", namespace), zap.Error(err))
		return false
	}
	return true
}

// MarkSynced records the last successful sync time for a namespace.
func (a *Adapter) MarkSynced(namespace string, at time.Time) {
	key := "synced_at:" + namespace
	if err := a.db.SetCheckpoint(key, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		a.logger.Warn("checkpoint write failed", zap.String("key", key), zap.Error(err))
	}
}

// LastSynced returns the last recorded sync time for a namespace, zero if none.
func (a *Adapter) LastSynced(namespace string) time.Time {
	value, err := a.db.GetCheckpoint("synced_at:" + namespace)
	if err != nil || value == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
