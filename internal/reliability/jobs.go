package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adpulse/adpulse/internal/database"
)

const backupTimeout = 10 * time.Minute

// BackupJob runs a full backup-and-rotate cycle on schedule.
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a backup job with the given rotation retention.
func NewBackupJob(service *BackupService, retentionDays int) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Run creates and uploads a backup, then rotates old archives.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.service.RotateOldBackups(ctx, j.retentionDays)
}

// Name returns the job name for scheduling and logging.
func (j *BackupJob) Name() string {
	return "backup"
}

// CheckpointJob truncates the WAL on every database so the log file does
// not grow unbounded between backups.
type CheckpointJob struct {
	dbs []*database.DB
	log zerolog.Logger
}

// NewCheckpointJob creates a WAL checkpoint job over the given databases.
func NewCheckpointJob(dbs ...*database.DB) *CheckpointJob {
	return &CheckpointJob{
		dbs: dbs,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Run checkpoints each database, continuing past individual failures.
func (j *CheckpointJob) Run() error {
	var lastErr error
	for _, db := range j.dbs {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			lastErr = err
			continue
		}
		j.log.Debug().Str("database", db.Name()).Msg("WAL checkpoint completed")
	}
	return lastErr
}

// Name returns the job name for scheduling and logging.
func (j *CheckpointJob) Name() string {
	return "wal_checkpoint"
}
