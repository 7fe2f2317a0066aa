package services

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"shopforge/internal/domain"
	"shopforge/internal/repos"
)

const (
	DefaultPeriodDays = 30
	MaxPeriodDays     = 365
	topProductsLimit  = 5
	recentOrdersLimit = 5
)

type AnalyticsService struct {
	Stores *repos.StoreRepo
	Prods  *repos.ProductRepo
	Orders *repos.OrderRepo
	Now    func() time.Time
}

func NewAnalyticsService(stores *repos.StoreRepo, prods *repos.ProductRepo, orders *repos.OrderRepo) *AnalyticsService {
	return &AnalyticsService{Stores: stores, Prods: prods, Orders: orders, Now: time.Now}
}

// ComputeAnalytics aggregates a store's orders over the trailing periodDays.
// totalProducts and recentOrders ignore the window. Read only.
func (s *AnalyticsService) ComputeAnalytics(ctx context.Context, storeID string, periodDays int) (domain.AnalyticsReport, error) {
	if periodDays < 1 || periodDays > MaxPeriodDays {
		return domain.AnalyticsReport{}, invalid("period must be between 1 and %d days", MaxPeriodDays)
	}
	if _, err := s.Stores.Get(ctx, storeID); err != nil {
		if repos.IsNoRows(err) {
			return domain.AnalyticsReport{}, notFound("store")
		}
		return domain.AnalyticsReport{}, err
	}

	since := s.Now().UTC().Add(-time.Duration(periodDays) * 24 * time.Hour)

	var (
		counts       repos.WindowCounts
		revenueCents int64
		products     int
		top          []domain.TopProduct
		recent       []domain.Order
		sales        []repos.SaleRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = s.Orders.CountsSince(gctx, storeID, since)
		return err
	})
	g.Go(func() (err error) {
		revenueCents, err = s.Orders.RevenueSince(gctx, storeID, since)
		return err
	})
	g.Go(func() (err error) {
		products, err = s.Prods.CountActive(gctx, storeID)
		return err
	})
	g.Go(func() (err error) {
		top, err = s.Orders.TopProductsSince(gctx, storeID, since, topProductsLimit)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.Orders.Recent(gctx, storeID, recentOrdersLimit)
		return err
	})
	g.Go(func() (err error) {
		sales, err = s.Orders.SalesSince(gctx, storeID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.AnalyticsReport{}, err
	}

	return domain.AnalyticsReport{
		PeriodDays:      periodDays,
		TotalOrders:     counts.Total,
		TotalRevenue:    domain.FromCents(revenueCents),
		TotalProducts:   products,
		CompletedOrders: counts.Completed,
		PendingOrders:   counts.Pending,
		ConversionRate:  conversionRate(counts.Completed, counts.Total),
		TopProducts:     top,
		RecentOrders:    recent,
		ChartData:       dailyBuckets(sales),
	}, nil
}

// conversionRate is completed/total as a percentage with one decimal; 0 when there are no orders.
func conversionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}

// dailyBuckets groups sales by UTC calendar day, ascending.
func dailyBuckets(rows []repos.SaleRow) []domain.ChartPoint {
	byDay := map[string]*domain.ChartPoint{}
	for _, r := range rows {
		day := r.CreatedAt.UTC().Format("2006-01-02")
		p, ok := byDay[day]
		if !ok {
			p = &domain.ChartPoint{Date: day}
			byDay[day] = p
		}
		p.Sales = p.Sales.Add(domain.FromCents(r.TotalCents))
		p.Orders++
	}
	out := make([]domain.ChartPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
