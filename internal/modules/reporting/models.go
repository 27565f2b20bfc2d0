// Package reporting contains the freshness router: the decision layer that
// answers report requests from the cheapest source that is still correct
// for the requested window.
package reporting

import (
	"github.com/adpulse/adpulse/internal/domain"
)

// Data sources a response can be served from.
const (
	SourceDatabase       = "database"
	SourceLiveHistorical = "live-historical"
	SourceCacheFresh     = "cache-fresh"
	SourceCacheStale     = "cache-stale"
	SourceLiveCached     = "live-cached"
	SourceLiveFresh      = "live-fresh"
	SourceNone           = "none"
)

// Error kinds surfaced in a ReportResponse.
const (
	ErrKindValidation      = "validation"
	ErrKindNoDataAvailable = "no_data_available"
	ErrKindUpstream        = "upstream"
	ErrKindStorage         = "storage"
)

// ReportRequest is a single report query for an entity over a date window.
type ReportRequest struct {
	EntityID   string            `json:"entity_id"`
	Window     domain.DateWindow `json:"window"`
	Platform   domain.Platform   `json:"platform"`
	ForceFresh bool              `json:"force_fresh"`
	// Hint optionally carries a caller-supplied classification override,
	// e.g. "all-time".
	Hint string `json:"hint,omitempty"`
}

// Provenance records where a response came from and where policy expected
// it to come from, so that an upstream hit that cache or database should
// have absorbed is observable rather than silent.
type Provenance struct {
	Source             string `json:"source"`
	ExpectedSource     string `json:"expected_source"`
	ActualSource       string `json:"actual_source"`
	Classification     string `json:"classification"`
	IsCurrentPeriod    bool   `json:"is_current_period"`
	CacheFirstEnforced bool   `json:"cache_first_enforced"`
	StaleData          bool   `json:"stale_data,omitempty"`
	CacheAgeMs         int64  `json:"cache_age_ms,omitempty"`
	ResponseTimeMs     int64  `json:"response_time_ms"`
	TraceID            string `json:"trace_id"`
}

// ReportError is the error record attached to unsuccessful (or degraded)
// responses.
type ReportError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ReportResponse is the router's terminal result for one request.
type ReportResponse struct {
	Success    bool                     `json:"success"`
	Payload    *domain.AggregatePayload `json:"payload,omitempty"`
	Provenance Provenance               `json:"provenance"`
	Error      *ReportError             `json:"error,omitempty"`
}
