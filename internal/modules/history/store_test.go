package history

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory reports database matching the
// production schema.
func setupTestDB(t *testing.T) *sql.DB {
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

	return db
}

func newTestStore(t *testing.T) (*Store, *Repository) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	return NewStore(repo, zerolog.Nop()), repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func insertWeekly(t *testing.T, repo *Repository, entityID string, date time.Time) {
	require.NoError(t, repo.InsertSummary(&StoredSummary{
		EntityID:    entityID,
		SummaryDate: date,
		SummaryType: domain.SummaryWeekly,
		Platform:    domain.PlatformAll,
		Totals:      domain.Totals{Spend: 100, Impressions: 1000, Clicks: 50},
		Derived:     &domain.DerivedMetrics{ConversionRate: 4},
	}))
}

func TestLoadWeeklyExactMatch(t *testing.T) {
	store, repo := newTestStore(t)
	insertWeekly(t, repo, "acct-1", day(2024, 3, 11))

	payload, err := store.Load("acct-1", domain.NewDateWindow(day(2024, 3, 11), day(2024, 3, 17)), domain.PlatformAll)
	require.NoError(t, err)

	assert.True(t, payload.FromDatabase)
	assert.Equal(t, domain.SummaryWeekly, payload.SummaryType)
	assert.InDelta(t, 100.0, payload.Totals.Spend, 1e-9)
	require.NotNil(t, payload.Derived)
	assert.InDelta(t, 4.0, payload.Derived.ConversionRate, 1e-9)
}

func TestLoadWeeklyBroadenedMatch(t *testing.T) {
	store, repo := newTestStore(t)

	// Summary dated Saturday 2024-03-09; the requested week starts Monday
	// 2024-03-11. Exact range misses, the broadened lookup resolves it.
	insertWeekly(t, repo, "acct-1", day(2024, 3, 9))

	payload, err := store.Load("acct-1", domain.NewDateWindow(day(2024, 3, 11), day(2024, 3, 17)), domain.PlatformAll)
	require.NoError(t, err)
	assert.True(t, payload.FromDatabase)
}

func TestLoadWeeklyOutsideBroadenedRange(t *testing.T) {
	store, repo := newTestStore(t)

	// Four days before the window start is beyond the broadening slack.
	insertWeekly(t, repo, "acct-1", day(2024, 3, 7))

	_, err := store.Load("acct-1", domain.NewDateWindow(day(2024, 3, 11), day(2024, 3, 17)), domain.PlatformAll)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadMonthlyFromSummary(t *testing.T) {
	store, repo := newTestStore(t)

	require.NoError(t, repo.InsertSummary(&StoredSummary{
		EntityID:    "acct-1",
		SummaryDate: day(2024, 2, 1),
		SummaryType: domain.SummaryMonthly,
		Platform:    domain.PlatformAll,
		Totals:      domain.Totals{Spend: 900, Impressions: 40000, Clicks: 800},
		LineItems: []domain.LineItem{
			{CampaignID: "c1", CampaignName: "Spring promo", Metrics: domain.Metrics{Spend: 900}},
		},
	}))

	payload, err := store.Load("acct-1", domain.NewDateWindow(day(2024, 2, 1), day(2024, 2, 29)), domain.PlatformAll)
	require.NoError(t, err)

	assert.Equal(t, domain.SummaryMonthly, payload.SummaryType)
	assert.InDelta(t, 900.0, payload.Totals.Spend, 1e-9)
	require.Len(t, payload.LineItems, 1)
	assert.Equal(t, "c1", payload.LineItems[0].CampaignID)
}

func TestLoadMonthlyDailyFallback(t *testing.T) {
	store, repo := newTestStore(t)

	for d := 1; d <= 10; d++ {
		require.NoError(t, repo.InsertDailyMetric(DailyMetric{
			EntityID: "acct-1",
			Date:     day(2024, 2, d),
			Platform: domain.PlatformAll,
			Metrics:  domain.Metrics{Spend: 10, Impressions: 1000, Clicks: 20, Conversions: 1},
		}))
	}

	payload, err := store.Load("acct-1", domain.NewDateWindow(day(2024, 2, 1), day(2024, 2, 29)), domain.PlatformAll)
	require.NoError(t, err)

	assert.True(t, payload.FromDatabase)
	assert.InDelta(t, 100.0, payload.Totals.Spend, 1e-9)
	assert.InDelta(t, 2.0, payload.Totals.CTR, 1e-9)
	require.NotNil(t, payload.Derived)
	assert.InDelta(t, 10.0, payload.Derived.CostPerConversion, 1e-9)
}

func TestLoadMonthlyNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load("acct-1", domain.NewDateWindow(day(2024, 2, 1), day(2024, 2, 29)), domain.PlatformAll)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadRespectsPlatform(t *testing.T) {
	store, repo := newTestStore(t)
	insertWeekly(t, repo, "acct-1", day(2024, 3, 11))

	_, err := store.Load("acct-1", domain.NewDateWindow(day(2024, 3, 11), day(2024, 3, 17)), domain.PlatformGoogle)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListDailyGroups(t *testing.T) {
	_, repo := newTestStore(t)

	require.NoError(t, repo.InsertDailyMetric(DailyMetric{
		EntityID: "acct-1", Date: day(2024, 2, 5), Platform: domain.PlatformAll,
		Metrics: domain.Metrics{Spend: 5},
	}))
	require.NoError(t, repo.InsertDailyMetric(DailyMetric{
		EntityID: "acct-2", Date: day(2024, 2, 6), Platform: domain.PlatformGoogle,
		Metrics: domain.Metrics{Spend: 7},
	}))

	groups, err := repo.ListDailyGroups(domain.NewDateWindow(day(2024, 2, 1), day(2024, 2, 29)))
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "acct-1", groups[0].EntityID)
	assert.Equal(t, domain.PlatformGoogle, groups[1].Platform)
}
