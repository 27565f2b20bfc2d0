package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adpulse/adpulse/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func window(start, end time.Time) domain.DateWindow {
	return domain.NewDateWindow(start, end)
}

func TestClassifyCurrentMonthBoundary(t *testing.T) {
	w := window(date(2024, 3, 1), date(2024, 3, 15))

	// Evaluated after the window has elapsed it is historical: it no longer
	// reaches today, so its numbers are frozen.
	assert.Equal(t, Historical, Classify(w, date(2024, 3, 20), ""))

	// Evaluated on its own end date, it is the live current month.
	assert.Equal(t, CurrentMonth, Classify(w, date(2024, 3, 15), ""))
}

func TestClassifyCurrentWeekRequiresMondayStart(t *testing.T) {
	// now is Wednesday 2024-03-13; the ISO week is Mon 03-11 .. Sun 03-17.
	now := date(2024, 3, 13)

	canonical := window(date(2024, 3, 11), date(2024, 3, 17))
	assert.Equal(t, CurrentWeek, Classify(canonical, now, ""))

	// A 7-day window overlapping the current week but starting on Tuesday
	// is never the current week.
	shifted := window(date(2024, 3, 12), date(2024, 3, 18))
	assert.NotEqual(t, CurrentWeek, Classify(shifted, now, ""))
}

func TestClassifyElapsedWeekIsHistorical(t *testing.T) {
	now := date(2024, 3, 20)
	lastWeek := window(date(2024, 3, 11), date(2024, 3, 17))
	assert.Equal(t, Historical, Classify(lastWeek, now, ""))
}

func TestClassifyAllTime(t *testing.T) {
	now := date(2024, 6, 1)

	// Explicit hint wins regardless of the window.
	small := window(date(2024, 5, 1), date(2024, 5, 31))
	assert.Equal(t, AllTimeOrLarge, Classify(small, now, HintAllTime))

	// Windows reaching back before the epoch threshold.
	ancient := window(date(2009, 1, 1), date(2024, 5, 31))
	assert.Equal(t, AllTimeOrLarge, Classify(ancient, now, ""))

	// Very large windows even with a recent start.
	large := window(date(2021, 1, 1), date(2024, 5, 31))
	assert.Equal(t, AllTimeOrLarge, Classify(large, now, ""))
}

func TestClassifyIdempotent(t *testing.T) {
	now := date(2024, 3, 13)
	w := window(date(2024, 3, 11), date(2024, 3, 17))

	first := Classify(w, now, "")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(w, now, ""))
	}
}

func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	w := window(date(2024, 3, 1), date(2024, 3, 15))
	morning := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	night := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, Classify(w, morning, ""), Classify(w, night, ""))
}

func TestISOWeekStart(t *testing.T) {
	// Wednesday -> preceding Monday.
	assert.Equal(t, date(2024, 3, 11), ISOWeekStart(date(2024, 3, 13)))
	// Monday maps to itself.
	assert.Equal(t, date(2024, 3, 11), ISOWeekStart(date(2024, 3, 11)))
	// Sunday still belongs to the week begun the previous Monday.
	assert.Equal(t, date(2024, 3, 11), ISOWeekStart(date(2024, 3, 17)))
}

func TestIDFor(t *testing.T) {
	week := window(date(2024, 3, 11), date(2024, 3, 17))
	assert.Equal(t, "2024-W11", IDFor(week, CurrentWeek))

	month := window(date(2024, 3, 1), date(2024, 3, 31))
	assert.Equal(t, "2024-03", IDFor(month, CurrentMonth))

	// Historical windows key by shape: short ones weekly, long ones monthly.
	assert.Equal(t, "2024-W11", IDFor(week, Historical))
	assert.Equal(t, "2024-03", IDFor(month, Historical))
}

func TestWeeklyShaped(t *testing.T) {
	assert.True(t, WeeklyShaped(window(date(2024, 3, 11), date(2024, 3, 17))))
	// Eight days still counts: accounting weeks may straddle month ends.
	assert.True(t, WeeklyShaped(window(date(2024, 2, 26), date(2024, 3, 4))))
	assert.False(t, WeeklyShaped(window(date(2024, 3, 1), date(2024, 3, 31))))
}
