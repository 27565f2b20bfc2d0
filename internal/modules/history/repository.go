// Package history provides the read path over immutable persisted aggregates.
// Summaries are written once a period has fully elapsed (by the ingestion job
// or an out-of-band importer) and are never mutated afterwards; daily metric
// rows are the finer-grained fallback when no summary exists.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/adpulse/adpulse/internal/domain"
)

// StoredSummary is one pre-aggregated period for an entity.
type StoredSummary struct {
	EntityID    string
	SummaryDate time.Time
	SummaryType domain.SummaryType
	Platform    domain.Platform
	Totals      domain.Totals
	Derived     *domain.DerivedMetrics
	LineItems   []domain.LineItem
	CreatedAt   time.Time
}

// DailyMetric is one day of metrics for an entity on one platform.
type DailyMetric struct {
	EntityID string
	Date     time.Time
	Platform domain.Platform
	Metrics  domain.Metrics
}

// summaryAggregates is the JSON shape of the summaries.aggregates column.
type summaryAggregates struct {
	Totals  domain.Totals          `json:"totals"`
	Derived *domain.DerivedMetrics `json:"derived_metrics,omitempty"`
}

// Repository handles reports.db access for summaries and daily metrics.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new history repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "history").Logger(),
	}
}

// GetSummary retrieves the summary stored at an exact (date, type, platform) key.
// Returns nil, nil when no row exists.
func (r *Repository) GetSummary(entityID string, date time.Time, summaryType domain.SummaryType, platform domain.Platform) (*StoredSummary, error) {
	row := r.db.QueryRow(`
		SELECT entity_id, summary_date, summary_type, platform, aggregates, line_items, created_at
		FROM summaries
		WHERE entity_id = ? AND summary_date = ? AND summary_type = ? AND platform = ?
	`, entityID, domain.Day(date).Unix(), string(summaryType), string(platform))

	return r.scanSummary(row)
}

// FindWeeklyInRange retrieves the most recent weekly summary whose summary_date
// falls within [from, to]. Returns nil, nil when none exists.
func (r *Repository) FindWeeklyInRange(entityID string, from, to time.Time, platform domain.Platform) (*StoredSummary, error) {
	row := r.db.QueryRow(`
		SELECT entity_id, summary_date, summary_type, platform, aggregates, line_items, created_at
		FROM summaries
		WHERE entity_id = ? AND summary_type = ? AND platform = ?
		  AND summary_date BETWEEN ? AND ?
		ORDER BY summary_date DESC
		LIMIT 1
	`, entityID, string(domain.SummaryWeekly), string(platform),
		domain.Day(from).Unix(), domain.Day(to).Unix())

	return r.scanSummary(row)
}

func (r *Repository) scanSummary(row *sql.Row) (*StoredSummary, error) {
	var (
		s             StoredSummary
		summaryType   string
		platform      string
		dateUnix      int64
		createdAtUnix int64
		aggregatesRaw string
		lineItemsRaw  string
	)

	err := row.Scan(&s.EntityID, &dateUnix, &summaryType, &platform, &aggregatesRaw, &lineItemsRaw, &createdAtUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}

	s.SummaryDate = time.Unix(dateUnix, 0).UTC()
	s.SummaryType = domain.SummaryType(summaryType)
	s.Platform = domain.Platform(platform)
	s.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

	var agg summaryAggregates
	if err := json.Unmarshal([]byte(aggregatesRaw), &agg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary aggregates: %w", err)
	}
	s.Totals = agg.Totals
	s.Derived = agg.Derived

	if err := json.Unmarshal([]byte(lineItemsRaw), &s.LineItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary line items: %w", err)
	}

	return &s, nil
}

// InsertSummary stores a new summary. Summaries are immutable: a conflicting
// insert replaces the row only via the ingestion job's idempotent re-run, so
// INSERT OR REPLACE is used for upsert behavior.
func (r *Repository) InsertSummary(s *StoredSummary) error {
	aggregates, err := json.Marshal(summaryAggregates{Totals: s.Totals, Derived: s.Derived})
	if err != nil {
		return fmt.Errorf("failed to marshal summary aggregates: %w", err)
	}

	lineItems := s.LineItems
	if lineItems == nil {
		lineItems = []domain.LineItem{}
	}
	items, err := json.Marshal(lineItems)
	if err != nil {
		return fmt.Errorf("failed to marshal summary line items: %w", err)
	}

	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO summaries
			(entity_id, summary_date, summary_type, platform, aggregates, line_items, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.EntityID, domain.Day(s.SummaryDate).Unix(), string(s.SummaryType), string(s.Platform),
		string(aggregates), string(items), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	return nil
}

// GetDailyMetrics retrieves all daily rows for an entity within a window,
// ordered by date ascending.
func (r *Repository) GetDailyMetrics(entityID string, window domain.DateWindow, platform domain.Platform) ([]DailyMetric, error) {
	rows, err := r.db.Query(`
		SELECT entity_id, date, platform, metrics
		FROM daily_metrics
		WHERE entity_id = ? AND platform = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC
	`, entityID, string(platform), window.Start.Unix(), window.End.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	defer rows.Close()

	var result []DailyMetric
	for rows.Next() {
		var (
			m          DailyMetric
			platform   string
			dateUnix   int64
			metricsRaw string
		)
		if err := rows.Scan(&m.EntityID, &dateUnix, &platform, &metricsRaw); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan daily metric row")
			continue
		}
		m.Date = time.Unix(dateUnix, 0).UTC()
		m.Platform = domain.Platform(platform)
		if err := json.Unmarshal([]byte(metricsRaw), &m.Metrics); err != nil {
			r.log.Warn().Err(err).Time("date", m.Date).Msg("Failed to unmarshal daily metrics")
			continue
		}
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily metrics: %w", err)
	}

	return result, nil
}

// InsertDailyMetric stores one daily row. Used by importers and tests.
func (r *Repository) InsertDailyMetric(m DailyMetric) error {
	metrics, err := json.Marshal(m.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal daily metrics: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO daily_metrics (entity_id, date, platform, metrics)
		VALUES (?, ?, ?, ?)
	`, m.EntityID, domain.Day(m.Date).Unix(), string(m.Platform), string(metrics))
	if err != nil {
		return fmt.Errorf("failed to insert daily metric: %w", err)
	}

	return nil
}

// DailyGroup identifies one (entity, platform) pair with daily rows.
type DailyGroup struct {
	EntityID string
	Platform domain.Platform
}

// ListDailyGroups returns the distinct (entity, platform) pairs that have
// daily rows inside the window. The summarize job iterates these.
func (r *Repository) ListDailyGroups(window domain.DateWindow) ([]DailyGroup, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT entity_id, platform
		FROM daily_metrics
		WHERE date BETWEEN ? AND ?
		ORDER BY entity_id, platform
	`, window.Start.Unix(), window.End.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list daily groups: %w", err)
	}
	defer rows.Close()

	var result []DailyGroup
	for rows.Next() {
		var (
			g        DailyGroup
			platform string
		)
		if err := rows.Scan(&g.EntityID, &platform); err != nil {
			return nil, fmt.Errorf("failed to scan daily group: %w", err)
		}
		g.Platform = domain.Platform(platform)
		result = append(result, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily groups: %w", err)
	}

	return result, nil
}
