package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adpulse/adpulse/internal/domain"
	"github.com/adpulse/adpulse/internal/modules/period"
	"github.com/adpulse/adpulse/internal/modules/smartcache"
)

// historicalStore reads immutable summaries for past periods.
type historicalStore interface {
	Load(entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error)
}

// cacheStore reads and writes TTL-bounded payloads for current periods.
type cacheStore interface {
	Get(entityID, periodID string) (*smartcache.Entry, error)
	Put(entityID, periodID string, payload domain.AggregatePayload) error
}

// liveFetcher performs the expensive upstream fetch-and-aggregate.
type liveFetcher interface {
	FetchAndAggregate(ctx context.Context, entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error)
}

// enricher backfills derived metrics on incomplete cached payloads.
type enricher interface {
	NeedsEnrichment(payload *domain.AggregatePayload) bool
	Enrich(payload *domain.AggregatePayload, entityID string, window domain.DateWindow, platform domain.Platform, summaryType domain.SummaryType)
}

// Policy holds the routing policy switches.
type Policy struct {
	// FreshnessThreshold bounds how old a cache entry can be and still
	// count as fresh. Stale entries are still served, just flagged.
	FreshnessThreshold time.Duration
	// EnforceCacheFirst, when true, turns a historical miss into a hard
	// NoDataAvailable stop instead of an upstream fallback. Disabling it is
	// an escape-valve configuration.
	EnforceCacheFirst bool
	// UpstreamLookbackDays is how far back the provider can report. A
	// historical window older than this cannot be answered live, so it is
	// rejected up front unless it classifies as all-time.
	UpstreamLookbackDays int
}

// Router decides, per request, which source answers: stored summaries for
// past periods, the smart cache for current ones, and a live fetch only
// when nothing cheaper can serve. The fallback order is the decision table
// in GetReport, evaluated top to bottom, first match wins.
//
// The router is stateless per request. Concurrent cache misses for the
// same (entity, period) may each fetch upstream; collapsing those into a
// single flight is a known hardening, not implemented here.
type Router struct {
	historical historicalStore
	cache      cacheStore
	fetcher    liveFetcher
	enrich     enricher
	policy     Policy
	now        func() time.Time
	log        zerolog.Logger
}

// NewRouter creates a freshness router over the given collaborators.
func NewRouter(historical historicalStore, cache cacheStore, fetcher liveFetcher, enrich enricher, policy Policy) *Router {
	return &Router{
		historical: historical,
		cache:      cache,
		fetcher:    fetcher,
		enrich:     enrich,
		policy:     policy,
		now:        time.Now,
		log:        log.With().Str("component", "freshness_router").Logger(),
	}
}

// GetReport answers one report request. It never returns a Go error: every
// outcome, including failures, is a ReportResponse with provenance.
func (r *Router) GetReport(ctx context.Context, req ReportRequest) *ReportResponse {
	start := r.now()
	traceID := uuid.NewString()

	if err := r.validate(req); err != nil {
		return r.fail(start, traceID, "", false, ErrKindValidation, err.Error())
	}

	classification := period.Classify(req.Window, start, req.Hint)
	if err := r.checkLookback(req.Window, classification); err != nil {
		return r.fail(start, traceID, string(classification), false, ErrKindValidation, err.Error())
	}

	current := classification == period.CurrentWeek || classification == period.CurrentMonth
	prov := Provenance{
		ExpectedSource:     expectedSource(classification, req.ForceFresh),
		Classification:     string(classification),
		IsCurrentPeriod:    current,
		CacheFirstEnforced: r.policy.EnforceCacheFirst,
		TraceID:            traceID,
	}

	var resp *ReportResponse
	switch {
	case !current && !req.ForceFresh:
		resp = r.serveHistorical(ctx, req, prov)
	case !current && req.ForceFresh:
		resp = r.serveLiveHistorical(ctx, req, prov)
	case current && !req.ForceFresh:
		resp = r.serveCurrent(ctx, req, classification, prov)
	default:
		resp = r.serveLiveFresh(ctx, req, classification, prov)
	}

	resp.Provenance.ResponseTimeMs = r.now().Sub(start).Milliseconds()
	r.logOutcome(req, resp)
	return resp
}

// validate rejects malformed requests before any store access.
func (r *Router) validate(req ReportRequest) error {
	if req.EntityID == "" {
		return domain.NewValidationError("entity_id is required")
	}
	return req.Window.Validate()
}

// checkLookback rejects historical windows the upstream could never answer.
// All-time windows are exempt: they are served from storage only.
func (r *Router) checkLookback(w domain.DateWindow, c period.Classification) error {
	if c != period.Historical {
		return nil
	}
	horizon := r.now().UTC().AddDate(0, 0, -r.policy.UpstreamLookbackDays)
	if w.Start.Before(horizon) {
		return domain.NewValidationError("window start %s exceeds the %d-day upstream lookback",
			w.Start.Format("2006-01-02"), r.policy.UpstreamLookbackDays)
	}
	return nil
}

// serveHistorical answers past-period requests from stored summaries. A
// miss is a hard NoDataAvailable stop under cache-first enforcement; the
// upstream is never hit silently for a past period.
func (r *Router) serveHistorical(ctx context.Context, req ReportRequest, prov Provenance) *ReportResponse {
	payload, err := r.historical.Load(req.EntityID, req.Window, req.Platform)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if r.policy.EnforceCacheFirst {
			prov.Source = SourceNone
			prov.ActualSource = SourceNone
			return &ReportResponse{
				Success:    false,
				Provenance: prov,
				Error:      &ReportError{Kind: ErrKindNoDataAvailable, Message: "no stored data for window"},
			}
		}
		// Escape valve: cache-first disabled, fall through to upstream.
		return r.serveLiveHistorical(ctx, req, prov)
	case err != nil:
		return r.failWith(prov, ErrKindStorage, err.Error())
	}

	prov.Source = SourceDatabase
	prov.ActualSource = SourceDatabase
	return &ReportResponse{Success: true, Payload: payload, Provenance: prov}
}

// serveLiveHistorical is the forced-fresh path for past periods. The result
// is never written back; write-back is reserved for current periods.
func (r *Router) serveLiveHistorical(ctx context.Context, req ReportRequest, prov Provenance) *ReportResponse {
	payload, err := r.fetcher.FetchAndAggregate(ctx, req.EntityID, req.Window, req.Platform)
	if err != nil {
		return r.failWith(prov, ErrKindUpstream, err.Error())
	}

	prov.Source = SourceLiveHistorical
	prov.ActualSource = SourceLiveHistorical
	return &ReportResponse{Success: true, Payload: payload, Provenance: prov}
}

// serveCurrent answers current-period requests cache-first. Fresh and stale
// hits are both served (stale flagged, never silently escalated); only a
// true miss reaches upstream, and that result is written back.
func (r *Router) serveCurrent(ctx context.Context, req ReportRequest, c period.Classification, prov Provenance) *ReportResponse {
	periodID := period.IDFor(req.Window, c)

	entry, err := r.cache.Get(req.EntityID, periodID)
	if err != nil {
		// A broken cache read degrades to an explicit zero payload instead
		// of failing the request. Dashboards get an empty report, not a 500.
		r.log.Error().Err(err).
			Str("entity_id", req.EntityID).
			Str("period_id", periodID).
			Msg("Cache read failed, degrading to empty payload")
		empty := domain.EmptyPayload()
		prov.Source = SourceNone
		prov.ActualSource = SourceNone
		return &ReportResponse{
			Success:    true,
			Payload:    &empty,
			Provenance: prov,
			Error:      &ReportError{Kind: ErrKindStorage, Message: "cache read failed, returning empty payload"},
		}
	}

	if entry != nil {
		payload := entry.Payload
		if r.enrich.NeedsEnrichment(&payload) {
			r.enrich.Enrich(&payload, req.EntityID, req.Window, req.Platform, summaryTypeFor(c))
		}

		now := r.now()
		prov.CacheAgeMs = entry.Age(now).Milliseconds()
		if entry.Fresh(now, r.policy.FreshnessThreshold) {
			prov.Source = SourceCacheFresh
			prov.ActualSource = SourceCacheFresh
		} else {
			prov.Source = SourceCacheStale
			prov.ActualSource = SourceCacheStale
			prov.StaleData = true
		}
		return &ReportResponse{Success: true, Payload: &payload, Provenance: prov}
	}

	payload, err := r.fetcher.FetchAndAggregate(ctx, req.EntityID, req.Window, req.Platform)
	if err != nil {
		return r.failWith(prov, ErrKindUpstream, err.Error())
	}
	r.writeBack(req.EntityID, periodID, payload)

	prov.Source = SourceLiveCached
	prov.ActualSource = SourceLiveCached
	return &ReportResponse{Success: true, Payload: payload, Provenance: prov}
}

// serveLiveFresh is the forced-fresh path for current periods. The fetched
// payload is always written back so later requests hit the cache.
func (r *Router) serveLiveFresh(ctx context.Context, req ReportRequest, c period.Classification, prov Provenance) *ReportResponse {
	payload, err := r.fetcher.FetchAndAggregate(ctx, req.EntityID, req.Window, req.Platform)
	if err != nil {
		return r.failWith(prov, ErrKindUpstream, err.Error())
	}
	r.writeBack(req.EntityID, period.IDFor(req.Window, c), payload)

	prov.Source = SourceLiveFresh
	prov.ActualSource = SourceLiveFresh
	return &ReportResponse{Success: true, Payload: payload, Provenance: prov}
}

// writeBack stores a live payload for a current period. A write-back
// failure is logged but never fails the request being served.
func (r *Router) writeBack(entityID, periodID string, payload *domain.AggregatePayload) {
	if err := r.cache.Put(entityID, periodID, *payload); err != nil {
		r.log.Error().Err(err).
			Str("entity_id", entityID).
			Str("period_id", periodID).
			Msg("Cache write-back failed")
	}
}

func (r *Router) fail(start time.Time, traceID, classification string, current bool, kind, message string) *ReportResponse {
	return &ReportResponse{
		Success: false,
		Provenance: Provenance{
			Source:             SourceNone,
			ExpectedSource:     SourceNone,
			ActualSource:       SourceNone,
			Classification:     classification,
			IsCurrentPeriod:    current,
			CacheFirstEnforced: r.policy.EnforceCacheFirst,
			ResponseTimeMs:     r.now().Sub(start).Milliseconds(),
			TraceID:            traceID,
		},
		Error: &ReportError{Kind: kind, Message: message},
	}
}

func (r *Router) failWith(prov Provenance, kind, message string) *ReportResponse {
	prov.Source = SourceNone
	prov.ActualSource = SourceNone
	return &ReportResponse{Success: false, Provenance: prov, Error: &ReportError{Kind: kind, Message: message}}
}

func (r *Router) logOutcome(req ReportRequest, resp *ReportResponse) {
	evt := r.log.Debug()
	if !resp.Success {
		evt = r.log.Warn()
	}
	evt.
		Str("entity_id", req.EntityID).
		Str("window", req.Window.String()).
		Str("classification", resp.Provenance.Classification).
		Str("source", resp.Provenance.Source).
		Str("expected_source", resp.Provenance.ExpectedSource).
		Bool("stale", resp.Provenance.StaleData).
		Int64("response_time_ms", resp.Provenance.ResponseTimeMs).
		Str("trace_id", resp.Provenance.TraceID).
		Msg("Report request routed")
}

// expectedSource is the source policy predicts before any store access;
// comparing it with the actual source makes policy bypasses observable.
func expectedSource(c period.Classification, forceFresh bool) string {
	switch {
	case c == period.CurrentWeek || c == period.CurrentMonth:
		if forceFresh {
			return SourceLiveFresh
		}
		return SourceCacheFresh
	case forceFresh:
		return SourceLiveHistorical
	default:
		return SourceDatabase
	}
}

func summaryTypeFor(c period.Classification) domain.SummaryType {
	if c == period.CurrentWeek {
		return domain.SummaryWeekly
	}
	return domain.SummaryMonthly
}
