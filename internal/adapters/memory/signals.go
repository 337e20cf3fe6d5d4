package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
	"github.com/modvault/monetization-agent/internal/ports"
)

// AffiliateCatalog is a fixture-backed catalog for local runs and
// tests.
type AffiliateCatalog struct {
	mu     sync.Mutex
	offers []ports.AffiliateOffer
}

func NewAffiliateCatalog(offers []ports.AffiliateOffer) *AffiliateCatalog {
	return &AffiliateCatalog{offers: offers}
}

func (c *AffiliateCatalog) ListOffers(_ context.Context) ([]ports.AffiliateOffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.AffiliateOffer, len(c.offers))
	copy(out, c.offers)
	return out, nil
}

func (c *AffiliateCatalog) SetOffers(offers []ports.AffiliateOffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offers = offers
}

// AnalyticsSource serves fixed page metrics regardless of the window.
type AnalyticsSource struct {
	mu      sync.Mutex
	metrics []ports.PageMetrics
}

func NewAnalyticsSource(metrics []ports.PageMetrics) *AnalyticsSource {
	return &AnalyticsSource{metrics: metrics}
}

func (s *AnalyticsSource) PageMetrics(_ context.Context, _ time.Time) ([]ports.PageMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.PageMetrics, len(s.metrics))
	copy(out, s.metrics)
	return out, nil
}

func (s *AnalyticsSource) SetMetrics(metrics []ports.PageMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
}

// RevenueEntry is one dated revenue observation in the fixture ledger.
type RevenueEntry struct {
	Date             time.Time
	AdRevenue        decimal.Decimal
	AffiliateRevenue decimal.Decimal
}

// RevenueLedger aggregates dated entries into the monthly and windowed
// views the forecaster and impact tracker need.
type RevenueLedger struct {
	mu      sync.Mutex
	entries []RevenueEntry
	nowFn   func() time.Time
}

func NewRevenueLedger(entries []RevenueEntry) *RevenueLedger {
	return &RevenueLedger{entries: entries, nowFn: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the ledger clock used to decide which months are
// closed. Test hook.
func (l *RevenueLedger) WithClock(nowFn func() time.Time) *RevenueLedger {
	l.nowFn = nowFn
	return l
}

func (l *RevenueLedger) Append(entries ...RevenueEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
}

func (l *RevenueLedger) MonthlyHistory(_ context.Context, months int) ([]ports.MonthlyRevenue, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	currentMonth := domain.FirstOfMonth(l.nowFn())
	byMonth := map[time.Time]*ports.MonthlyRevenue{}
	for _, e := range l.entries {
		month := domain.FirstOfMonth(e.Date)
		if !month.Before(currentMonth) {
			continue
		}
		agg, ok := byMonth[month]
		if !ok {
			agg = &ports.MonthlyRevenue{Month: month}
			byMonth[month] = agg
		}
		agg.AdRevenue = agg.AdRevenue.Add(e.AdRevenue)
		agg.AffiliateRevenue = agg.AffiliateRevenue.Add(e.AffiliateRevenue)
	}
	out := make([]ports.MonthlyRevenue, 0, len(byMonth))
	for _, agg := range byMonth {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	if months > 0 && len(out) > months {
		out = out[len(out)-months:]
	}
	return out, nil
}

func (l *RevenueLedger) MonthlyRevenue(_ context.Context, month time.Time) (ports.MonthlyRevenue, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	target := domain.FirstOfMonth(month)
	agg := ports.MonthlyRevenue{Month: target}
	for _, e := range l.entries {
		if domain.FirstOfMonth(e.Date).Equal(target) {
			agg.AdRevenue = agg.AdRevenue.Add(e.AdRevenue)
			agg.AffiliateRevenue = agg.AffiliateRevenue.Add(e.AffiliateRevenue)
		}
	}
	return agg, nil
}

func (l *RevenueLedger) RevenueBetween(_ context.Context, from, to time.Time) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, e := range l.entries {
		if e.Date.Before(from) || !e.Date.Before(to) {
			continue
		}
		total = total.Add(e.AdRevenue).Add(e.AffiliateRevenue)
	}
	return total, nil
}

var _ ports.AffiliateCatalog = (*AffiliateCatalog)(nil)
var _ ports.AnalyticsSource = (*AnalyticsSource)(nil)
var _ ports.RevenueLedger = (*RevenueLedger)(nil)
