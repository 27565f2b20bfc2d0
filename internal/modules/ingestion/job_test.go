package ingestion

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/domain"
	"github.com/adpulse/adpulse/internal/modules/history"

	_ "github.com/mattn/go-sqlite3"
)

func setupJob(t *testing.T, now time.Time) (*SummarizeJob, *history.Repository) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE summaries (
			entity_id TEXT NOT NULL,
			summary_date INTEGER NOT NULL,
			summary_type TEXT NOT NULL,
			platform TEXT NOT NULL,
			aggregates TEXT NOT NULL,
			line_items TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (entity_id, summary_date, summary_type, platform)
		);
		CREATE TABLE daily_metrics (
			entity_id TEXT NOT NULL,
			date INTEGER NOT NULL,
			platform TEXT NOT NULL,
			metrics TEXT NOT NULL,
			PRIMARY KEY (entity_id, date, platform)
		);
	`)
	require.NoError(t, err)

	repo := history.NewRepository(db, zerolog.Nop())
	job := NewSummarizeJob(repo)
	job.now = func() time.Time { return now }
	return job, repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func insertDays(t *testing.T, repo *history.Repository, entityID string, from time.Time, n int) {
	for i := 0; i < n; i++ {
		require.NoError(t, repo.InsertDailyMetric(history.DailyMetric{
			EntityID: entityID,
			Date:     from.AddDate(0, 0, i),
			Platform: domain.PlatformAll,
			Metrics:  domain.Metrics{Spend: 10, Impressions: 1000, Clicks: 25, Conversions: 1},
		}))
	}
}

func TestRunSummarizesElapsedWeekAndMonth(t *testing.T) {
	// Wednesday 2024-03-13: last full ISO week is Mar 4-10, last full
	// month is February.
	job, repo := setupJob(t, day(2024, 3, 13))

	insertDays(t, repo, "acct-1", day(2024, 3, 4), 7)
	insertDays(t, repo, "acct-1", day(2024, 2, 1), 29)

	require.NoError(t, job.Run())

	weekly, err := repo.GetSummary("acct-1", day(2024, 3, 4), domain.SummaryWeekly, domain.PlatformAll)
	require.NoError(t, err)
	require.NotNil(t, weekly)
	assert.InDelta(t, 70.0, weekly.Totals.Spend, 1e-9)
	require.NotNil(t, weekly.Derived)
	assert.InDelta(t, 10.0, weekly.Derived.CostPerConversion, 1e-9)

	monthly, err := repo.GetSummary("acct-1", day(2024, 2, 1), domain.SummaryMonthly, domain.PlatformAll)
	require.NoError(t, err)
	require.NotNil(t, monthly)
	assert.InDelta(t, 290.0, monthly.Totals.Spend, 1e-9)
}

func TestRunNeverSummarizesOpenPeriods(t *testing.T) {
	job, repo := setupJob(t, day(2024, 3, 13))

	// Data only in the current, still-open week and month.
	insertDays(t, repo, "acct-1", day(2024, 3, 11), 3)

	require.NoError(t, job.Run())

	weekly, err := repo.GetSummary("acct-1", day(2024, 3, 11), domain.SummaryWeekly, domain.PlatformAll)
	require.NoError(t, err)
	assert.Nil(t, weekly, "the open week must never be frozen into a summary")

	monthly, err := repo.GetSummary("acct-1", day(2024, 3, 1), domain.SummaryMonthly, domain.PlatformAll)
	require.NoError(t, err)
	assert.Nil(t, monthly)
}

func TestRunIsIdempotent(t *testing.T) {
	job, repo := setupJob(t, day(2024, 3, 13))
	insertDays(t, repo, "acct-1", day(2024, 3, 4), 7)

	require.NoError(t, job.Run())
	require.NoError(t, job.Run())

	weekly, err := repo.GetSummary("acct-1", day(2024, 3, 4), domain.SummaryWeekly, domain.PlatformAll)
	require.NoError(t, err)
	require.NotNil(t, weekly)
	assert.InDelta(t, 70.0, weekly.Totals.Spend, 1e-9)
}

func TestRunSummarizesPerPlatform(t *testing.T) {
	job, repo := setupJob(t, day(2024, 3, 13))

	insertDays(t, repo, "acct-1", day(2024, 3, 4), 7)
	require.NoError(t, repo.InsertDailyMetric(history.DailyMetric{
		EntityID: "acct-1",
		Date:     day(2024, 3, 5),
		Platform: domain.PlatformGoogle,
		Metrics:  domain.Metrics{Spend: 42},
	}))

	require.NoError(t, job.Run())

	google, err := repo.GetSummary("acct-1", day(2024, 3, 4), domain.SummaryWeekly, domain.PlatformGoogle)
	require.NoError(t, err)
	require.NotNil(t, google)
	assert.InDelta(t, 42.0, google.Totals.Spend, 1e-9)
}
