// Package smartcache provides the TTL-bounded report cache for current
// periods. Payloads are stored as msgpack blobs in cache.db keyed by
// (entity_id, period_id). Staleness is a read-time classification: reads
// never delete, and stale entries are still returned to the caller.
package smartcache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adpulse/adpulse/internal/domain"
)

// Repository provides raw cache.db operations for report payloads.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new report cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves a cache row regardless of age. Returns nil, nil on a miss.
func (r *Repository) Get(entityID, periodID string) (*Entry, error) {
	var (
		blob        []byte
		updatedUnix int64
	)
	err := r.db.QueryRow(`
		SELECT payload, last_updated FROM report_cache
		WHERE entity_id = ? AND period_id = ?
	`, entityID, periodID).Scan(&blob, &updatedUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s/%s: %w", entityID, periodID, err)
	}

	var payload domain.AggregatePayload
	if err := msgpack.Unmarshal(blob, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s/%s: %w", entityID, periodID, err)
	}

	return &Entry{
		EntityID:    entityID,
		PeriodID:    periodID,
		Payload:     payload,
		LastUpdated: time.Unix(updatedUnix, 0).UTC(),
	}, nil
}

// Put stores a payload for (entityID, periodID), replacing any existing row.
// Last writer wins: concurrent writers for the same period computed the same
// upstream query, so their payloads are expected to converge.
func (r *Repository) Put(entityID, periodID string, payload domain.AggregatePayload) error {
	blob, err := msgpack.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO report_cache (entity_id, period_id, payload, last_updated)
		VALUES (?, ?, ?, ?)
	`, entityID, periodID, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s/%s: %w", entityID, periodID, err)
	}

	return nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(entityID, periodID string) error {
	_, err := r.db.Exec(`
		DELETE FROM report_cache WHERE entity_id = ? AND period_id = ?
	`, entityID, periodID)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s/%s: %w", entityID, periodID, err)
	}
	return nil
}

// DeleteOlderThan removes all rows whose last_updated precedes the cutoff.
// Returns the number of rows deleted. Only the retention job calls this; the
// router never deletes.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM report_cache WHERE last_updated < ?
	`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged cache entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
