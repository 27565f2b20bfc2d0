// Package di wires databases, repositories, services, and jobs into a
// single container consumed by the server and the scheduler.
package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/adpulse/adpulse/internal/config"
	"github.com/adpulse/adpulse/internal/database"
	"github.com/adpulse/adpulse/internal/modules/enrichment"
	"github.com/adpulse/adpulse/internal/modules/history"
	"github.com/adpulse/adpulse/internal/modules/ingestion"
	"github.com/adpulse/adpulse/internal/modules/reporting"
	"github.com/adpulse/adpulse/internal/modules/smartcache"
	"github.com/adpulse/adpulse/internal/modules/upstream"
	"github.com/adpulse/adpulse/internal/reliability"
	"github.com/adpulse/adpulse/internal/scheduler"
)

// Container holds every wired component.
type Container struct {
	ReportsDB *database.DB
	CacheDB   *database.DB

	HistoryRepo  *history.Repository
	HistoryStore *history.Store
	CacheRepo    *smartcache.Repository
	CacheStore   *smartcache.Store

	Enrichment *enrichment.Service
	Fetcher    *upstream.Fetcher
	Router     *reporting.Router

	CleanupJob    *smartcache.CleanupJob
	SummarizeJob  *ingestion.SummarizeJob
	CheckpointJob *reliability.CheckpointJob
	// BackupJob is nil when object storage is not configured.
	BackupJob *reliability.BackupJob
}

// Wire builds the full dependency graph from configuration.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	reportsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "reports.db"),
		Profile: database.ProfileArchive,
		Name:    "reports",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open reports database: %w", err)
	}
	if err := reportsDB.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate reports database: %w", err)
	}

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := cacheDB.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	historyRepo := history.NewRepository(reportsDB.Conn(), log)
	historyStore := history.NewStore(historyRepo, log)
	cacheRepo := smartcache.NewRepository(cacheDB.Conn())
	cacheStore := smartcache.NewStore(cacheRepo)

	enrichService := enrichment.NewService(historyRepo)
	provider := upstream.NewHTTPProvider(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey)
	fetcher := upstream.NewFetcher(provider)

	router := reporting.NewRouter(historyStore, cacheStore, fetcher, enrichService, reporting.Policy{
		FreshnessThreshold:   cfg.FreshnessThreshold,
		EnforceCacheFirst:    cfg.EnforceCacheFirst,
		UpstreamLookbackDays: cfg.UpstreamLookbackDays,
	})

	c := &Container{
		ReportsDB:     reportsDB,
		CacheDB:       cacheDB,
		HistoryRepo:   historyRepo,
		HistoryStore:  historyStore,
		CacheRepo:     cacheRepo,
		CacheStore:    cacheStore,
		Enrichment:    enrichService,
		Fetcher:       fetcher,
		Router:        router,
		CleanupJob:    smartcache.NewCleanupJob(cacheRepo, cfg.CacheRetention()),
		SummarizeJob:  ingestion.NewSummarizeJob(historyRepo),
		CheckpointJob: reliability.NewCheckpointJob(reportsDB, cacheDB),
	}

	if cfg.BackupEnabled() {
		s3Client, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
		backupService := reliability.NewBackupService(s3Client, cfg.DataDir, reportsDB, cacheDB)
		c.BackupJob = reliability.NewBackupJob(backupService, cfg.BackupRetentionDays)
	}

	return c, nil
}

// RegisterJobs adds all maintenance jobs to the scheduler.
func (c *Container) RegisterJobs(sched *scheduler.Scheduler) error {
	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{"30 2 * * *", c.CleanupJob},
		{"0 3 * * *", c.SummarizeJob},
		{"@every 6h", c.CheckpointJob},
	}
	if c.BackupJob != nil {
		schedules = append(schedules, struct {
			spec string
			job  scheduler.Job
		}{"0 4 * * *", c.BackupJob})
	}

	for _, s := range schedules {
		if err := sched.AddJob(s.spec, s.job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", s.job.Name(), err)
		}
	}
	return nil
}

// Close releases all container resources.
func (c *Container) Close() {
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
	if c.ReportsDB != nil {
		_ = c.ReportsDB.Close()
	}
}
