package smartcache

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CleanupJob removes cache entries that have aged past the retention
// window. It should be scheduled to run daily. Retention only bounds disk
// growth; it is deliberately much longer than the freshness threshold so
// stale entries stay servable.
type CleanupJob struct {
	repo      *Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewCleanupJob creates a cache cleanup job with the given retention window.
func NewCleanupJob(repo *Repository, retention time.Duration) *CleanupJob {
	return &CleanupJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run deletes all cache entries older than the retention window.
func (j *CleanupJob) Run() error {
	cutoff := time.Now().Add(-j.retention)

	deleted, err := j.repo.DeleteOlderThan(cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete aged cache entries")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Cache cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
