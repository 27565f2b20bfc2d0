// Package enrichment backfills derived conversion metrics on cached
// payloads whose writers did not compute them. Enrichment is a single-pass
// merge from the historical store: at most one summary lookup per payload,
// and only the derived block is ever touched.
package enrichment

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adpulse/adpulse/internal/domain"
	"github.com/adpulse/adpulse/internal/modules/history"
)

// Service merges derived metrics from stored summaries into cache payloads.
type Service struct {
	repo *history.Repository
	log  zerolog.Logger
}

// NewService creates an enrichment service over the historical repository.
func NewService(repo *history.Repository) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "enrichment").Logger(),
	}
}

// NeedsEnrichment reports whether a payload is missing usable derived
// metrics. A payload with zero derived metrics but nonzero spend is treated
// as unenriched rather than genuinely conversion-free: the writer most
// likely never computed the block.
func (s *Service) NeedsEnrichment(payload *domain.AggregatePayload) bool {
	if payload.Derived == nil {
		return true
	}
	return payload.Derived.AllZero() && payload.Totals.Spend > 0
}

// Enrich fills the payload's derived block from the stored summary covering
// the window, if one exists. Core totals and line items are never modified.
// If no summary is found the payload is returned unchanged; enrichment never
// fails a report.
func (s *Service) Enrich(payload *domain.AggregatePayload, entityID string, window domain.DateWindow, platform domain.Platform, summaryType domain.SummaryType) {
	summaryDate := window.Start
	if summaryType == domain.SummaryMonthly {
		summaryDate = time.Date(window.Start.Year(), window.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	summary, err := s.repo.GetSummary(entityID, summaryDate, summaryType, platform)
	if err != nil {
		s.log.Warn().Err(err).
			Str("entity_id", entityID).
			Msg("Enrichment lookup failed, serving payload as-is")
		return
	}
	if summary == nil || summary.Derived == nil {
		return
	}

	derived := *summary.Derived
	payload.Derived = &derived
	s.log.Debug().
		Str("entity_id", entityID).
		Time("summary_date", summaryDate).
		Msg("Payload enriched with stored derived metrics")
}
