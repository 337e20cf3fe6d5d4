package signals

import (
	"context"
	"time"

	"github.com/modvault/monetization-agent/internal/ports"
)

// HTTPAffiliateCatalog reads the partner network's offer feed.
type HTTPAffiliateCatalog struct {
	client *client
}

func NewHTTPAffiliateCatalog(baseURL, apiKey string, timeout time.Duration) *HTTPAffiliateCatalog {
	return &HTTPAffiliateCatalog{client: newClient(baseURL, apiKey, timeout)}
}

func (c *HTTPAffiliateCatalog) ListOffers(ctx context.Context) ([]ports.AffiliateOffer, error) {
	var payload struct {
		Offers []ports.AffiliateOffer `json:"offers"`
	}
	if err := c.client.getJSON(ctx, "/v1/offers", &payload); err != nil {
		return nil, err
	}
	return payload.Offers, nil
}

var _ ports.AffiliateCatalog = (*HTTPAffiliateCatalog)(nil)
