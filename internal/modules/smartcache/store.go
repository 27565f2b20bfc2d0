package smartcache

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adpulse/adpulse/internal/domain"
)

// Entry is a cached report payload with its storage timestamp.
type Entry struct {
	EntityID    string
	PeriodID    string
	Payload     domain.AggregatePayload
	LastUpdated time.Time
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastUpdated)
}

// Fresh reports whether the entry is within the freshness threshold.
func (e *Entry) Fresh(now time.Time, threshold time.Duration) bool {
	return e.Age(now) <= threshold
}

// Store is the cache layer for current-period reports. It distinguishes
// fresh from stale reads but returns both; the router decides whether a
// stale entry is servable.
type Store struct {
	repo *Repository
	log  zerolog.Logger
}

// NewStore creates a smart cache store backed by the given repository.
func NewStore(repo *Repository) *Store {
	return &Store{
		repo: repo,
		log:  log.With().Str("component", "smart_cache").Logger(),
	}
}

// Get returns the cached entry for (entityID, periodID) no matter how old
// it is, or nil, nil on a miss.
func (s *Store) Get(entityID, periodID string) (*Entry, error) {
	return s.repo.Get(entityID, periodID)
}

// Put writes a payload under (entityID, periodID) with the current time.
func (s *Store) Put(entityID, periodID string, payload domain.AggregatePayload) error {
	if err := s.repo.Put(entityID, periodID, payload); err != nil {
		return err
	}
	s.log.Debug().
		Str("entity_id", entityID).
		Str("period_id", periodID).
		Msg("Cache entry stored")
	return nil
}
