package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/domain"
	"github.com/adpulse/adpulse/internal/modules/smartcache"
)

// Fixed clock: Wednesday 2024-03-13. The current ISO week is Mar 11-17,
// the current month is March 2024.
var testNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeHistorical struct {
	payload *domain.AggregatePayload
	err     error
	calls   int
}

func (f *fakeHistorical) Load(entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type putCall struct {
	entityID string
	periodID string
}

type fakeCache struct {
	entry    *smartcache.Entry
	getErr   error
	putCalls []putCall
}

func (f *fakeCache) Get(entityID, periodID string) (*smartcache.Entry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entry, nil
}

func (f *fakeCache) Put(entityID, periodID string, payload domain.AggregatePayload) error {
	f.putCalls = append(f.putCalls, putCall{entityID, periodID})
	return nil
}

type fakeFetcher struct {
	payload *domain.AggregatePayload
	err     error
	calls   int
}

func (f *fakeFetcher) FetchAndAggregate(ctx context.Context, entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type fakeEnricher struct {
	needs bool
	calls int
}

func (f *fakeEnricher) NeedsEnrichment(payload *domain.AggregatePayload) bool {
	return f.needs
}

func (f *fakeEnricher) Enrich(payload *domain.AggregatePayload, entityID string, window domain.DateWindow, platform domain.Platform, summaryType domain.SummaryType) {
	f.calls++
	payload.Derived = &domain.DerivedMetrics{ConversionRate: 1}
}

type routerFixture struct {
	router     *Router
	historical *fakeHistorical
	cache      *fakeCache
	fetcher    *fakeFetcher
	enricher   *fakeEnricher
}

func newFixture(policy Policy) *routerFixture {
	f := &routerFixture{
		historical: &fakeHistorical{},
		cache:      &fakeCache{},
		fetcher:    &fakeFetcher{payload: &domain.AggregatePayload{Totals: domain.Totals{Spend: 77}}},
		enricher:   &fakeEnricher{},
	}
	f.router = NewRouter(f.historical, f.cache, f.fetcher, f.enricher, policy)
	f.router.now = func() time.Time { return testNow }
	return f
}

func defaultPolicy() Policy {
	return Policy{
		FreshnessThreshold:   4 * time.Hour,
		EnforceCacheFirst:    true,
		UpstreamLookbackDays: 1460,
	}
}

func historicalRequest() ReportRequest {
	return ReportRequest{
		EntityID: "acct-1",
		Window:   domain.NewDateWindow(day(2024, 3, 1), day(2024, 3, 10)),
		Platform: domain.PlatformAll,
	}
}

func currentMonthRequest() ReportRequest {
	return ReportRequest{
		EntityID: "acct-1",
		Window:   domain.NewDateWindow(day(2024, 3, 1), day(2024, 3, 15)),
		Platform: domain.PlatformAll,
	}
}

func TestHistoricalHitServedFromDatabase(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.historical.payload = &domain.AggregatePayload{Totals: domain.Totals{Spend: 500}, FromDatabase: true}

	resp := f.router.GetReport(context.Background(), historicalRequest())

	require.True(t, resp.Success)
	assert.Equal(t, SourceDatabase, resp.Provenance.Source)
	assert.Equal(t, SourceDatabase, resp.Provenance.ExpectedSource)
	assert.False(t, resp.Provenance.IsCurrentPeriod)
	assert.Zero(t, f.fetcher.calls)
	assert.NotEmpty(t, resp.Provenance.TraceID)
}

func TestCacheFirstEnforcementBlocksUpstream(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.historical.err = domain.ErrNotFound

	resp := f.router.GetReport(context.Background(), historicalRequest())

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrKindNoDataAvailable, resp.Error.Kind)
	assert.Zero(t, f.fetcher.calls, "upstream must never be invoked on a blocked historical miss")
	assert.Empty(t, f.cache.putCalls)
}

func TestEscapeValveFallsThroughToUpstream(t *testing.T) {
	policy := defaultPolicy()
	policy.EnforceCacheFirst = false
	f := newFixture(policy)
	f.historical.err = domain.ErrNotFound

	resp := f.router.GetReport(context.Background(), historicalRequest())

	require.True(t, resp.Success)
	assert.Equal(t, SourceLiveHistorical, resp.Provenance.Source)
	assert.Equal(t, 1, f.fetcher.calls)
	// Past periods never write back, even via the escape valve.
	assert.Empty(t, f.cache.putCalls)
}

func TestForceFreshHistoricalSkipsDatabase(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.historical.payload = &domain.AggregatePayload{FromDatabase: true}

	req := historicalRequest()
	req.ForceFresh = true
	resp := f.router.GetReport(context.Background(), req)

	require.True(t, resp.Success)
	assert.Equal(t, SourceLiveHistorical, resp.Provenance.Source)
	assert.Zero(t, f.historical.calls)
	assert.Equal(t, 1, f.fetcher.calls)
	assert.Empty(t, f.cache.putCalls)
}

func TestCurrentPeriodFreshCacheHit(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.cache.entry = &smartcache.Entry{
		EntityID:    "acct-1",
		PeriodID:    "2024-03",
		Payload:     domain.AggregatePayload{Totals: domain.Totals{Spend: 300}},
		LastUpdated: testNow.Add(-time.Hour),
	}

	resp := f.router.GetReport(context.Background(), currentMonthRequest())

	require.True(t, resp.Success)
	assert.Equal(t, SourceCacheFresh, resp.Provenance.Source)
	assert.True(t, resp.Provenance.IsCurrentPeriod)
	assert.False(t, resp.Provenance.StaleData)
	assert.InDelta(t, float64(time.Hour.Milliseconds()), float64(resp.Provenance.CacheAgeMs), 1)
	assert.Zero(t, f.fetcher.calls)
}

func TestStaleServe(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.cache.entry = &smartcache.Entry{
		EntityID:    "acct-1",
		PeriodID:    "2024-03",
		Payload:     domain.AggregatePayload{Totals: domain.Totals{Spend: 300}},
		LastUpdated: testNow.Add(-10 * time.Hour),
	}

	resp := f.router.GetReport(context.Background(), currentMonthRequest())

	require.True(t, resp.Success)
	assert.Equal(t, SourceCacheStale, resp.Provenance.Source)
	assert.True(t, resp.Provenance.StaleData)
	assert.Zero(t, f.fetcher.calls, "staleness alone must never escalate to upstream")
}

func TestCacheHitRunsEnrichment(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.enricher.needs = true
	f.cache.entry = &smartcache.Entry{
		Payload:     domain.AggregatePayload{Totals: domain.Totals{Spend: 300}},
		LastUpdated: testNow.Add(-time.Hour),
	}

	resp := f.router.GetReport(context.Background(), currentMonthRequest())

	require.True(t, resp.Success)
	assert.Equal(t, 1, f.enricher.calls)
	require.NotNil(t, resp.Payload.Derived)
}

func TestCacheMissFetchesAndWritesBack(t *testing.T) {
	f := newFixture(defaultPolicy())

	resp := f.router.GetReport(context.Background(), currentMonthRequest())

	require.True(t, resp.Success)
	assert.Equal(t, SourceLiveCached, resp.Provenance.Source)
	assert.Equal(t, 1, f.fetcher.calls)
	require.Len(t, f.cache.putCalls, 1)
	assert.Equal(t, putCall{"acct-1", "2024-03"}, f.cache.putCalls[0])
}

func TestForceFreshCurrentWritesBack(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.cache.entry = &smartcache.Entry{
		Payload:     domain.AggregatePayload{Totals: domain.Totals{Spend: 300}},
		LastUpdated: testNow.Add(-time.Minute),
	}

	req := currentMonthRequest()
	req.ForceFresh = true
	resp := f.router.GetReport(context.Background(), req)

	require.True(t, resp.Success)
	assert.Equal(t, SourceLiveFresh, resp.Provenance.Source)
	assert.Equal(t, 1, f.fetcher.calls)
	require.Len(t, f.cache.putCalls, 1)
}

func TestCurrentWeekUsesWeekPeriodID(t *testing.T) {
	f := newFixture(defaultPolicy())

	resp := f.router.GetReport(context.Background(), ReportRequest{
		EntityID: "acct-1",
		Window:   domain.NewDateWindow(day(2024, 3, 11), day(2024, 3, 17)),
		Platform: domain.PlatformAll,
	})

	require.True(t, resp.Success)
	assert.Equal(t, "current_week", resp.Provenance.Classification)
	require.Len(t, f.cache.putCalls, 1)
	assert.Equal(t, "2024-W11", f.cache.putCalls[0].periodID)
}

func TestCacheReadErrorDegradesToEmpty(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.cache.getErr = errors.New("disk I/O error")

	resp := f.router.GetReport(context.Background(), currentMonthRequest())

	// Explicitly a success with an all-zero payload, not a failure.
	require.True(t, resp.Success)
	require.NotNil(t, resp.Payload)
	assert.True(t, resp.Payload.Degraded)
	assert.Zero(t, resp.Payload.Totals.Spend)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrKindStorage, resp.Error.Kind)
	assert.Zero(t, f.fetcher.calls)
}

func TestUpstreamErrorPropagates(t *testing.T) {
	f := newFixture(defaultPolicy())
	f.fetcher.err = &domain.UpstreamError{Reason: domain.UpstreamRateLimit, Err: errors.New("429")}

	resp := f.router.GetReport(context.Background(), currentMonthRequest())

	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrKindUpstream, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "rate_limit")
}

func TestValidationRejectsInvertedWindow(t *testing.T) {
	f := newFixture(defaultPolicy())

	resp := f.router.GetReport(context.Background(), ReportRequest{
		EntityID: "acct-1",
		Window:   domain.DateWindow{Start: day(2024, 3, 10), End: day(2024, 3, 1)},
	})

	require.False(t, resp.Success)
	assert.Equal(t, ErrKindValidation, resp.Error.Kind)
	assert.Zero(t, f.historical.calls)
	assert.Zero(t, f.fetcher.calls)
}

func TestValidationRejectsMissingEntity(t *testing.T) {
	f := newFixture(defaultPolicy())

	resp := f.router.GetReport(context.Background(), ReportRequest{
		Window: domain.NewDateWindow(day(2024, 3, 1), day(2024, 3, 10)),
	})

	require.False(t, resp.Success)
	assert.Equal(t, ErrKindValidation, resp.Error.Kind)
}

func TestValidationRejectsWindowBeyondLookback(t *testing.T) {
	policy := defaultPolicy()
	policy.UpstreamLookbackDays = 30
	f := newFixture(policy)

	resp := f.router.GetReport(context.Background(), ReportRequest{
		EntityID: "acct-1",
		Window:   domain.NewDateWindow(day(2024, 1, 1), day(2024, 1, 10)),
		Platform: domain.PlatformAll,
	})

	require.False(t, resp.Success)
	assert.Equal(t, ErrKindValidation, resp.Error.Kind)
}

func TestAllTimeWindowExemptFromLookback(t *testing.T) {
	policy := defaultPolicy()
	policy.UpstreamLookbackDays = 30
	f := newFixture(policy)
	f.historical.payload = &domain.AggregatePayload{FromDatabase: true}

	resp := f.router.GetReport(context.Background(), ReportRequest{
		EntityID: "acct-1",
		Window:   domain.NewDateWindow(day(2024, 1, 1), day(2024, 1, 10)),
		Platform: domain.PlatformAll,
		Hint:     "all-time",
	})

	require.True(t, resp.Success)
	assert.Equal(t, SourceDatabase, resp.Provenance.Source)
}
