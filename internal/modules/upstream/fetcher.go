package upstream

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adpulse/adpulse/internal/aggregate"
	"github.com/adpulse/adpulse/internal/domain"
)

// Fetcher performs live fetches and aggregates the rows into a report
// payload. It shares the aggregation path with the historical daily
// fallback, so live and stored numbers for the same rows are identical.
// The fetcher never writes to the cache itself; write-back is a routing
// decision.
type Fetcher struct {
	provider Provider
	log      zerolog.Logger
}

// NewFetcher creates a fetcher over the given provider.
func NewFetcher(provider Provider) *Fetcher {
	return &Fetcher{
		provider: provider,
		log:      log.With().Str("component", "upstream_fetcher").Logger(),
	}
}

// FetchAndAggregate pulls campaign rows for the window and rolls them up
// into a payload with totals and derived metrics. An empty result is a
// valid zero payload, not an error.
func (f *Fetcher) FetchAndAggregate(ctx context.Context, entityID string, window domain.DateWindow, platform domain.Platform) (*domain.AggregatePayload, error) {
	items, err := f.provider.FetchLineItems(ctx, entityID, window.Start, window.End, platform)
	if err != nil {
		f.log.Error().Err(err).
			Str("entity_id", entityID).
			Str("window", window.String()).
			Msg("Live fetch failed")
		return nil, err
	}

	total := aggregate.SumLineItems(items)

	return &domain.AggregatePayload{
		LineItems: items,
		Totals:    aggregate.TotalsFrom(total),
		Derived:   aggregate.DerivedFrom(total),
	}, nil
}
