// Package aggregate is the single summation path for advertising metrics.
// Both the historical daily-row fallback and the live upstream fetch go
// through these functions, so the two sources produce bit-for-bit identical
// totals for identical inputs.
package aggregate

import (
	"gonum.org/v1/gonum/stat"

	"github.com/adpulse/adpulse/internal/domain"
)

// Sum accumulates a slice of metric sets into one.
func Sum(ms []domain.Metrics) domain.Metrics {
	var total domain.Metrics
	for i := range ms {
		total.Add(ms[i])
	}
	return total
}

// SumLineItems accumulates the metric portion of raw line items.
func SumLineItems(items []domain.LineItem) domain.Metrics {
	var total domain.Metrics
	for i := range items {
		total.Add(items[i].Metrics)
	}
	return total
}

// TotalsFrom computes the headline block from summed metrics.
// CTR is clicks/impressions*100, CPC is spend/clicks; both guard
// divide-by-zero to 0.
func TotalsFrom(m domain.Metrics) domain.Totals {
	t := domain.Totals{
		Spend:       m.Spend,
		Impressions: m.Impressions,
		Clicks:      m.Clicks,
		Conversions: m.Conversions,
	}
	if m.Impressions > 0 {
		t.CTR = float64(m.Clicks) / float64(m.Impressions) * 100
	}
	if m.Clicks > 0 {
		t.CPC = m.Spend / float64(m.Clicks)
	}
	return t
}

// DerivedFrom computes the conversion detail block from summed metrics.
func DerivedFrom(m domain.Metrics) *domain.DerivedMetrics {
	d := &domain.DerivedMetrics{
		ViewThroughConversions:  m.ViewThroughConversions,
		ClickThroughConversions: m.ClickThroughConversions,
		ConversionValue:         m.ConversionValue,
	}
	if m.Conversions > 0 {
		d.CostPerConversion = m.Spend / m.Conversions
	}
	if m.Clicks > 0 {
		d.ConversionRate = m.Conversions / float64(m.Clicks) * 100
	}
	return d
}

// Stats summarizes a daily value series for the insights endpoint.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	// Trend is the slope of an ordinary least squares fit over day index,
	// i.e. the average per-day change across the window.
	Trend float64 `json:"trend"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// DailyStats computes summary statistics over a daily series.
// Returns the zero Stats for an empty series.
func DailyStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{
		Mean: stat.Mean(values, nil),
		Min:  values[0],
		Max:  values[0],
	}
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}

	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)

		xs := make([]float64, len(values))
		for i := range xs {
			xs[i] = float64(i)
		}
		_, s.Trend = stat.LinearRegression(xs, values, nil, false)
	}

	return s
}
