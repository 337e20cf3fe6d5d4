package signals

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/ports"
)

// HTTPAnalyticsSource reads aggregated page metrics and the revenue
// ledger from the analytics export API. Both views are served by the
// same upstream, so one adapter implements both ports.
type HTTPAnalyticsSource struct {
	client *client
}

func NewHTTPAnalyticsSource(baseURL, apiKey string, timeout time.Duration) *HTTPAnalyticsSource {
	return &HTTPAnalyticsSource{client: newClient(baseURL, apiKey, timeout)}
}

func (s *HTTPAnalyticsSource) PageMetrics(ctx context.Context, since time.Time) ([]ports.PageMetrics, error) {
	var payload struct {
		Pages []ports.PageMetrics `json:"pages"`
	}
	path := "/v1/pages?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	if err := s.client.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Pages, nil
}

func (s *HTTPAnalyticsSource) MonthlyHistory(ctx context.Context, months int) ([]ports.MonthlyRevenue, error) {
	var payload struct {
		Months []ports.MonthlyRevenue `json:"months"`
	}
	path := fmt.Sprintf("/v1/revenue/monthly?months=%d", months)
	if err := s.client.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Months, nil
}

func (s *HTTPAnalyticsSource) MonthlyRevenue(ctx context.Context, month time.Time) (ports.MonthlyRevenue, error) {
	var payload ports.MonthlyRevenue
	path := "/v1/revenue/monthly/" + month.UTC().Format("2006-01")
	if err := s.client.getJSON(ctx, path, &payload); err != nil {
		return ports.MonthlyRevenue{}, err
	}
	return payload, nil
}

func (s *HTTPAnalyticsSource) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var payload struct {
		Total decimal.Decimal `json:"total"`
	}
	path := "/v1/revenue/window?from=" + url.QueryEscape(from.UTC().Format(time.RFC3339)) +
		"&to=" + url.QueryEscape(to.UTC().Format(time.RFC3339))
	if err := s.client.getJSON(ctx, path, &payload); err != nil {
		return decimal.Decimal{}, err
	}
	return payload.Total, nil
}

var _ ports.AnalyticsSource = (*HTTPAnalyticsSource)(nil)
var _ ports.RevenueLedger = (*HTTPAnalyticsSource)(nil)
