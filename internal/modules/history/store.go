package history

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/adpulse/adpulse/internal/aggregate"
	"github.com/adpulse/adpulse/internal/domain"
	"github.com/adpulse/adpulse/internal/modules/period"
)

// weeklyBroadenDays widens the weekly lookup to summary dates within ±3 days
// of the window start. Upstream week boundaries do not always align with ISO
// weeks, so an exact match can miss a summary that covers the same week.
const weeklyBroadenDays = 3

// Store resolves a date window to an aggregate payload from persisted data.
// A miss is domain.ErrNotFound, which is an expected outcome for brand-new
// entities, not a fault.
type Store struct {
	repo *Repository
	log  zerolog.Logger
}

// NewStore creates a new historical store over the given repository.
func NewStore(repo *Repository, log zerolog.Logger) *Store {
	return &Store{
		repo: repo,
		log:  log.With().Str("component", "historical_store").Logger(),
	}
}

// Load resolves a window at the granularity implied by its length:
// weekly-shaped windows (<= 8 days) via weekly summaries, everything else via
// monthly summaries with a daily-row aggregation fallback.
func (s *Store) Load(entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error) {
	if period.WeeklyShaped(window) {
		return s.loadWeekly(entityID, window, platform)
	}
	return s.loadMonthly(entityID, window, platform)
}

func (s *Store) loadWeekly(entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error) {
	// Exact match: a weekly summary dated inside the window.
	summary, err := s.repo.FindWeeklyInRange(entityID, window.Start, window.End, platform)
	if err != nil {
		return nil, err
	}

	if summary == nil {
		// Broaden to ±3 days around the window start and take the most recent.
		summary, err = s.repo.FindWeeklyInRange(entityID,
			window.Start.AddDate(0, 0, -weeklyBroadenDays),
			window.Start.AddDate(0, 0, weeklyBroadenDays),
			platform)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			s.log.Debug().
				Str("entity_id", entityID).
				Stringer("window", window).
				Time("summary_date", summary.SummaryDate).
				Msg("Weekly summary resolved via broadened lookup")
		}
	}

	if summary == nil {
		return nil, domain.ErrNotFound
	}

	return payloadFromSummary(summary), nil
}

func (s *Store) loadMonthly(entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error) {
	// Prefer the summary keyed at the first of the month: it carries full
	// line-item detail.
	firstOfMonth := time.Date(window.Start.Year(), window.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	summary, err := s.repo.GetSummary(entityID, firstOfMonth, domain.SummaryMonthly, platform)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		return payloadFromSummary(summary), nil
	}

	// Fall back to aggregating daily rows across the window.
	daily, err := s.repo.GetDailyMetrics(entityID, window, platform)
	if err != nil {
		return nil, err
	}
	if len(daily) == 0 {
		return nil, domain.ErrNotFound
	}

	s.log.Debug().
		Str("entity_id", entityID).
		Stringer("window", window).
		Int("days", len(daily)).
		Msg("Monthly summary absent, aggregating daily metrics")

	metrics := make([]domain.Metrics, 0, len(daily))
	for _, d := range daily {
		metrics = append(metrics, d.Metrics)
	}
	sum := aggregate.Sum(metrics)

	return &domain.AggregatePayload{
		LineItems:    []domain.LineItem{},
		Totals:       aggregate.TotalsFrom(sum),
		Derived:      aggregate.DerivedFrom(sum),
		FromDatabase: true,
		SummaryType:  domain.SummaryMonthly,
	}, nil
}

func payloadFromSummary(s *StoredSummary) *domain.AggregatePayload {
	lineItems := s.LineItems
	if lineItems == nil {
		lineItems = []domain.LineItem{}
	}
	return &domain.AggregatePayload{
		LineItems:    lineItems,
		Totals:       s.Totals,
		Derived:      s.Derived,
		FromDatabase: true,
		SummaryType:  s.SummaryType,
	}
}
