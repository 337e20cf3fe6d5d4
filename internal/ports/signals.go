package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AffiliateOffer is one row of the partner catalog feed. EPC is the
// network-reported earnings per click in the site's base currency.
type AffiliateOffer struct {
	OfferID        string          `json:"offer_id"`
	Merchant       string          `json:"merchant"`
	Category       string          `json:"category"`
	Placement      string          `json:"placement"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	EPC            decimal.Decimal `json:"epc"`
	Active         bool            `json:"active"`
}

type AffiliateCatalog interface {
	ListOffers(ctx context.Context) ([]AffiliateOffer, error)
}

// PageMetrics aggregates analytics for one page over the requested
// window.
type PageMetrics struct {
	PagePath  string          `json:"page_path"`
	Sessions  int             `json:"sessions"`
	Pageviews int             `json:"pageviews"`
	AdRevenue decimal.Decimal `json:"ad_revenue"`
}

type AnalyticsSource interface {
	PageMetrics(ctx context.Context, since time.Time) ([]PageMetrics, error)
}

type MonthlyRevenue struct {
	Month            time.Time       `json:"month"`
	AdRevenue        decimal.Decimal `json:"ad_revenue"`
	AffiliateRevenue decimal.Decimal `json:"affiliate_revenue"`
}

func (m MonthlyRevenue) Total() decimal.Decimal {
	return m.AdRevenue.Add(m.AffiliateRevenue)
}

// RevenueLedger exposes the historical revenue record the forecaster
// and impact tracker consume.
type RevenueLedger interface {
	// MonthlyHistory returns up to `months` fully closed months,
	// oldest first.
	MonthlyHistory(ctx context.Context, months int) ([]MonthlyRevenue, error)
	MonthlyRevenue(ctx context.Context, month time.Time) (MonthlyRevenue, error)
	// RevenueBetween sums total revenue over [from, to).
	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}
