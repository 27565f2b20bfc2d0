// Package upstream fetches raw campaign metrics from the advertising
// platform API. A live fetch is the most expensive data path in the system;
// the router only reaches for it when neither database nor cache can serve.
package upstream

import (
	"context"
	"time"

	"github.com/adpulse/adpulse/internal/domain"
)

// Provider is the transport-level contract with the advertising platform.
// Implementations return per-campaign rows for the requested range; callers
// aggregate them.
type Provider interface {
	// FetchLineItems returns campaign rows for the entity over [start, end]
	// inclusive. A range with no activity returns an empty slice, not an
	// error.
	FetchLineItems(ctx context.Context, entityID string, start, end time.Time, platform domain.Platform) ([]domain.LineItem, error)

	// ValidateCredential verifies the configured credential is usable.
	ValidateCredential(ctx context.Context) error
}
