// Package ingestion rolls raw daily metrics up into the immutable period
// summaries the historical store serves. Only fully elapsed weeks and
// months are summarized; an open period is the smart cache's territory and
// must never be frozen into a summary.
package ingestion

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adpulse/adpulse/internal/aggregate"
	"github.com/adpulse/adpulse/internal/domain"
	"github.com/adpulse/adpulse/internal/modules/history"
	"github.com/adpulse/adpulse/internal/modules/period"
)

// SummarizeJob builds weekly and monthly summaries for every entity with
// daily metrics in the previous fully-elapsed periods. It is scheduled
// daily and is idempotent: re-summarizing a period overwrites the same row
// with the same numbers.
type SummarizeJob struct {
	repo *history.Repository
	now  func() time.Time
	log  zerolog.Logger
}

// NewSummarizeJob creates a summarize job over the historical repository.
func NewSummarizeJob(repo *history.Repository) *SummarizeJob {
	return &SummarizeJob{
		repo: repo,
		now:  time.Now,
		log:  log.With().Str("job", "summarize").Logger(),
	}
}

// Run summarizes the most recent fully-elapsed ISO week and calendar month.
func (j *SummarizeJob) Run() error {
	now := j.now().UTC()
	today := domain.Day(now)

	weekStart := period.ISOWeekStart(today).AddDate(0, 0, -7)
	weekWindow := domain.NewDateWindow(weekStart, weekStart.AddDate(0, 0, 6))

	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthStart := firstOfMonth.AddDate(0, -1, 0)
	monthWindow := domain.NewDateWindow(monthStart, firstOfMonth.AddDate(0, 0, -1))

	if err := j.summarizeWindow(weekWindow, domain.SummaryWeekly); err != nil {
		return err
	}
	return j.summarizeWindow(monthWindow, domain.SummaryMonthly)
}

// summarizeWindow writes one summary row per (entity, platform) that has
// daily metrics inside the window.
func (j *SummarizeJob) summarizeWindow(window domain.DateWindow, summaryType domain.SummaryType) error {
	groups, err := j.repo.ListDailyGroups(window)
	if err != nil {
		return fmt.Errorf("failed to list entities for %s: %w", window, err)
	}

	var written int
	for _, g := range groups {
		daily, err := j.repo.GetDailyMetrics(g.EntityID, window, g.Platform)
		if err != nil {
			j.log.Error().Err(err).
				Str("entity_id", g.EntityID).
				Str("platform", string(g.Platform)).
				Msg("Failed to load daily metrics for summary")
			continue
		}
		if len(daily) == 0 {
			continue
		}

		metrics := make([]domain.Metrics, 0, len(daily))
		for _, d := range daily {
			metrics = append(metrics, d.Metrics)
		}
		total := aggregate.Sum(metrics)

		summary := &history.StoredSummary{
			EntityID:    g.EntityID,
			SummaryDate: window.Start,
			SummaryType: summaryType,
			Platform:    g.Platform,
			Totals:      aggregate.TotalsFrom(total),
			Derived:     aggregate.DerivedFrom(total),
		}
		if err := j.repo.InsertSummary(summary); err != nil {
			j.log.Error().Err(err).
				Str("entity_id", g.EntityID).
				Msg("Failed to write summary")
			continue
		}
		written++
	}

	j.log.Info().
		Str("window", window.String()).
		Str("type", string(summaryType)).
		Int("summaries", written).
		Msg("Period summarization completed")

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *SummarizeJob) Name() string {
	return "summarize"
}
