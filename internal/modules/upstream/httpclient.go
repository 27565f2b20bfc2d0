package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adpulse/adpulse/internal/domain"
)

const requestTimeout = 30 * time.Second

// HTTPProvider is a JSON-over-HTTP Provider against the reporting API.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewHTTPProvider creates a provider for the given API base URL and key.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		client: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     log.With().Str("client", "upstream").Logger(),
	}
}

// lineItemRow is the wire shape of a single campaign row.
type lineItemRow struct {
	CampaignID              string  `json:"campaign_id"`
	CampaignName            string  `json:"campaign_name"`
	Spend                   float64 `json:"spend"`
	Impressions             int64   `json:"impressions"`
	Clicks                  int64   `json:"clicks"`
	Conversions             float64 `json:"conversions"`
	ViewThroughConversions  float64 `json:"view_through_conversions"`
	ClickThroughConversions float64 `json:"click_through_conversions"`
	ConversionValue         float64 `json:"conversion_value"`
}

type lineItemsResponse struct {
	Data  []lineItemRow `json:"data"`
	Error string        `json:"error,omitempty"`
}

// FetchLineItems retrieves campaign rows for the entity over [start, end].
func (p *HTTPProvider) FetchLineItems(ctx context.Context, entityID string, start, end time.Time, platform domain.Platform) ([]domain.LineItem, error) {
	params := url.Values{}
	params.Set("entity_id", entityID)
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	if platform != domain.PlatformAll {
		params.Set("platform", string(platform))
	}

	endpoint := fmt.Sprintf("%s/v1/reports/line-items?%s", p.baseURL, params.Encode())

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp lineItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.UpstreamError{Reason: domain.UpstreamTransport, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if resp.Error != "" {
		return nil, &domain.UpstreamError{Reason: domain.UpstreamTransport, Err: fmt.Errorf("api error: %s", resp.Error)}
	}

	items := make([]domain.LineItem, 0, len(resp.Data))
	for _, row := range resp.Data {
		items = append(items, domain.LineItem{
			CampaignID:   row.CampaignID,
			CampaignName: row.CampaignName,
			Metrics: domain.Metrics{
				Spend:                   row.Spend,
				Impressions:             row.Impressions,
				Clicks:                  row.Clicks,
				Conversions:             row.Conversions,
				ViewThroughConversions:  row.ViewThroughConversions,
				ClickThroughConversions: row.ClickThroughConversions,
				ConversionValue:         row.ConversionValue,
			},
		})
	}

	p.log.Debug().
		Str("entity_id", entityID).
		Int("rows", len(items)).
		Msg("Fetched line items from upstream")

	return items, nil
}

// ValidateCredential checks the API key against the credential endpoint.
func (p *HTTPProvider) ValidateCredential(ctx context.Context) error {
	_, err := p.get(ctx, p.baseURL+"/v1/credential")
	return err
}

// get performs an authenticated GET and maps HTTP failures onto the
// upstream error taxonomy.
func (p *HTTPProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.UpstreamError{Reason: domain.UpstreamTransport, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Reason: domain.UpstreamTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Reason: domain.UpstreamTransport, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &domain.UpstreamError{Reason: domain.UpstreamCredential, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &domain.UpstreamError{Reason: domain.UpstreamRateLimit, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.UpstreamError{Reason: domain.UpstreamTransport, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	return body, nil
}
