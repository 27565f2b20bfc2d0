// Package period classifies date windows relative to "now" and derives the
// canonical period identifiers used as cache keys.
package period

import (
	"fmt"
	"time"

	"github.com/adpulse/adpulse/internal/domain"
)

// Classification is the period bucket a window falls into. The freshness
// router's whole decision table keys off this value.
type Classification string

const (
	// CurrentMonth: the window sits entirely inside the calendar month
	// containing now AND reaches today. A window ending yesterday inside the
	// current month is Historical: it is knowably incomplete relative to a
	// newer possible window, so caching it would be wrong.
	CurrentMonth Classification = "current_month"
	// CurrentWeek: exactly the canonical ISO week containing now, reaching today.
	CurrentWeek Classification = "current_week"
	// Historical: any elapsed window within the upstream lookback.
	Historical Classification = "historical"
	// AllTimeOrLarge: windows before the epoch threshold, spanning more than
	// ~2 years, or explicitly hinted all-time. Exempt from lookback validation.
	AllTimeOrLarge Classification = "all_time_or_large"
)

const (
	// HintAllTime is the caller-supplied override for all-time requests.
	HintAllTime = "all-time"

	// weeklyShapeMaxDays is 8, not 7: an upstream accounting week can
	// straddle a month boundary, so one day of slack is intentional.
	weeklyShapeMaxDays = 8

	epochThresholdYear = 2010
	largeWindowDays    = 730
)

// WeeklyShaped reports whether a window should be resolved at weekly
// granularity (length <= 8 days) rather than monthly.
func WeeklyShaped(w domain.DateWindow) bool {
	return w.LengthDays() <= weeklyShapeMaxDays
}

// Classify buckets a window relative to now. Pure and deterministic: same
// inputs, same answer, no I/O.
func Classify(w domain.DateWindow, now time.Time, hint string) Classification {
	today := domain.Day(now)

	if hint == HintAllTime || w.Start.Year() <= epochThresholdYear || w.LengthDays() > largeWindowDays {
		return AllTimeOrLarge
	}

	if isCurrentWeek(w, now, today) {
		return CurrentWeek
	}

	nowUTC := now.UTC()
	if w.Start.Year() == nowUTC.Year() && w.Start.Month() == nowUTC.Month() &&
		w.End.Year() == nowUTC.Year() && w.End.Month() == nowUTC.Month() &&
		!w.End.Before(today) {
		return CurrentMonth
	}

	return Historical
}

func isCurrentWeek(w domain.DateWindow, now, today time.Time) bool {
	if w.LengthDays() != 7 || w.Start.Weekday() != time.Monday {
		return false
	}
	weekStart := ISOWeekStart(now)
	return w.Start.Equal(weekStart) &&
		w.End.Equal(weekStart.AddDate(0, 0, 6)) &&
		!w.End.Before(today)
}

// ISOWeekStart returns the Monday of the ISO week containing t, at UTC midnight.
func ISOWeekStart(t time.Time) time.Time {
	d := domain.Day(t)
	// time.Weekday is Sunday=0; shift so Monday=0.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthID returns the canonical month identifier, e.g. "2024-03".
func MonthID(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ISOWeekID returns the canonical ISO week identifier, e.g. "2024-W11".
func ISOWeekID(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// IDFor derives the canonical periodId for a window under a classification.
// Weekly-shaped windows key by ISO week, everything else by month.
func IDFor(w domain.DateWindow, c Classification) string {
	switch c {
	case CurrentWeek:
		return ISOWeekID(w.Start)
	case CurrentMonth:
		return MonthID(w.Start)
	default:
		if WeeklyShaped(w) {
			return ISOWeekID(w.Start)
		}
		return MonthID(w.Start)
	}
}
