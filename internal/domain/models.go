// Package domain contains the pure data contracts shared by all adpulse modules.
// Nothing here touches storage, transport, or logging.
package domain

import (
	"fmt"
	"time"
)

// Platform identifies the advertising platform a request is scoped to.
type Platform string

const (
	PlatformGoogle Platform = "google"
	PlatformMeta   Platform = "meta"
	PlatformTikTok Platform = "tiktok"
	// PlatformAll aggregates across every connected platform.
	PlatformAll Platform = "all"
)

// ParsePlatform converts a string to a Platform.
// An empty string defaults to PlatformAll.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformGoogle, PlatformMeta, PlatformTikTok, PlatformAll:
		return Platform(s), nil
	case "":
		return PlatformAll, nil
	default:
		return "", NewValidationError("unknown platform: %s", s)
	}
}

// DateWindow is an inclusive day-precision date range.
// All windows are normalized to UTC midnight via Day().
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates a timestamp to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateWindow builds a normalized window from two timestamps.
func NewDateWindow(start, end time.Time) DateWindow {
	return DateWindow{Start: Day(start), End: Day(end)}
}

// LengthDays returns the inclusive length of the window in days (end - start + 1).
func (w DateWindow) LengthDays() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Validate checks the start <= end invariant.
func (w DateWindow) Validate() error {
	if w.Start.After(w.End) {
		return NewValidationError("invalid window: start %s is after end %s",
			w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether the given day falls inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w DateWindow) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// Metrics is the additive metric set carried by both raw line items and
// daily rows. Summing two Metrics field-by-field is always meaningful.
type Metrics struct {
	Spend                   float64 `json:"spend" msgpack:"spend"`
	Impressions             int64   `json:"impressions" msgpack:"impressions"`
	Clicks                  int64   `json:"clicks" msgpack:"clicks"`
	Conversions             float64 `json:"conversions" msgpack:"conversions"`
	ViewThroughConversions  float64 `json:"view_through_conversions" msgpack:"view_through_conversions"`
	ClickThroughConversions float64 `json:"click_through_conversions" msgpack:"click_through_conversions"`
	ConversionValue         float64 `json:"conversion_value" msgpack:"conversion_value"`
}

// Add accumulates other into m.
func (m *Metrics) Add(other Metrics) {
	m.Spend += other.Spend
	m.Impressions += other.Impressions
	m.Clicks += other.Clicks
	m.Conversions += other.Conversions
	m.ViewThroughConversions += other.ViewThroughConversions
	m.ClickThroughConversions += other.ClickThroughConversions
	m.ConversionValue += other.ConversionValue
}

// LineItem is a single raw performance record (one campaign's metrics for the
// window) prior to aggregation.
type LineItem struct {
	CampaignID   string `json:"campaign_id" msgpack:"campaign_id"`
	CampaignName string `json:"campaign_name" msgpack:"campaign_name"`
	Metrics      `msgpack:",inline"`
}

// Totals is the aggregated headline block of a payload.
type Totals struct {
	Spend       float64 `json:"spend" msgpack:"spend"`
	Impressions int64   `json:"impressions" msgpack:"impressions"`
	Clicks      int64   `json:"clicks" msgpack:"clicks"`
	Conversions float64 `json:"conversions" msgpack:"conversions"`
	CTR         float64 `json:"ctr" msgpack:"ctr"`
	CPC         float64 `json:"cpc" msgpack:"cpc"`
}

// DerivedMetrics is the conversion detail block. It is carried as a pointer on
// AggregatePayload: either the whole block is present (real values) or the
// whole block is absent (requires enrichment). Partial population is not
// representable on purpose.
type DerivedMetrics struct {
	ViewThroughConversions  float64 `json:"view_through_conversions" msgpack:"view_through_conversions"`
	ClickThroughConversions float64 `json:"click_through_conversions" msgpack:"click_through_conversions"`
	ConversionValue         float64 `json:"conversion_value" msgpack:"conversion_value"`
	CostPerConversion       float64 `json:"cost_per_conversion" msgpack:"cost_per_conversion"`
	ConversionRate          float64 `json:"conversion_rate" msgpack:"conversion_rate"`
}

// AllZero reports whether every field of the block is zero.
func (d *DerivedMetrics) AllZero() bool {
	if d == nil {
		return true
	}
	return d.ViewThroughConversions == 0 &&
		d.ClickThroughConversions == 0 &&
		d.ConversionValue == 0 &&
		d.CostPerConversion == 0 &&
		d.ConversionRate == 0
}

// SummaryType is the granularity of a stored summary.
type SummaryType string

const (
	SummaryWeekly  SummaryType = "weekly"
	SummaryMonthly SummaryType = "monthly"
)

// AggregatePayload is the canonical response shape of the reporting subsystem.
type AggregatePayload struct {
	LineItems []LineItem      `json:"line_items" msgpack:"line_items"`
	Totals    Totals          `json:"totals" msgpack:"totals"`
	Derived   *DerivedMetrics `json:"derived_metrics,omitempty" msgpack:"derived_metrics"`

	// FromDatabase marks payloads resolved from stored summaries or daily rows.
	FromDatabase bool        `json:"from_database,omitempty" msgpack:"from_database"`
	SummaryType  SummaryType `json:"summary_type,omitempty" msgpack:"summary_type"`

	// Degraded marks the all-zero payload returned when a cache read fails on
	// a current-period request. Dashboards render it as "no data yet" instead
	// of an error page.
	Degraded bool `json:"degraded,omitempty" msgpack:"degraded"`
}

// EmptyPayload returns the all-zero degraded payload.
func EmptyPayload() AggregatePayload {
	return AggregatePayload{
		LineItems: []LineItem{},
		Degraded:  true,
	}
}
