// Package analytics aggregates paid orders into the admin sales report.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

const dayLayout = "2006-01-02"

// Service handles analytics operations
type Service struct {
	db *bun.DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Filter narrows the orders a report covers. From is inclusive, To exclusive.
type Filter struct {
	Status models.OrderStatus
	From   *time.Time
	To     *time.Time
}

// SalesAnalytics is the admin dashboard summary.
type SalesAnalytics struct {
	Currency          string              `json:"currency,omitempty"`
	TotalRevenueMinor int64               `json:"total_revenue_minor"`
	TotalRevenue      decimal.Decimal     `json:"total_revenue"`
	OrderCount        int                 `json:"order_count"`
	TicketsSold       int                 `json:"tickets_sold"`
	BottlesSold       int                 `json:"bottles_sold"`
	DailySales        []DailySalesMetrics `json:"daily_sales"`
	SalesByTier       []TierSalesMetrics  `json:"sales_by_tier"`
	PromoUsage        []PromoUsage        `json:"promo_usage"`
}

// DailySalesMetrics contains metrics for a single UTC day
type DailySalesMetrics struct {
	Date         string `json:"date"`
	RevenueMinor int64  `json:"revenue_minor"`
	Orders       int    `json:"orders"`
	TicketsSold  int    `json:"tickets_sold"`
}

// TierSalesMetrics comes from the inventory counters, not from the orders in
// the filter window.
type TierSalesMetrics struct {
	Tier              string `json:"tier"`
	Capacity          int    `json:"capacity"`
	Sold              int    `json:"sold"`
	Remaining         int    `json:"remaining"`
	GrossRevenueMinor int64  `json:"gross_revenue_minor"`
}

type PromoUsage struct {
	Code         string `json:"code"`
	Redemptions  int    `json:"redemptions"`
	Orders       int    `json:"orders"`
	RevenueMinor int64  `json:"revenue_minor"`
}

type orderItemCount struct {
	OrderID string `bun:"order_id"`
	N       int    `bun:"n"`
}

// GetSalesAnalytics builds the report. Days are bucketed in Go so the same
// query works on every dialect.
func (s *Service) GetSalesAnalytics(ctx context.Context, f Filter) (*SalesAnalytics, error) {
	if f.Status == "" {
		f.Status = models.OrderStatusPaid
	}

	// Step 1: orders in the window
	var orders []models.Order
	query := s.db.NewSelect().
		Model(&orders).
		Where("status = ?", f.Status).
		Order("created_at ASC")
	if f.From != nil {
		query = query.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("created_at < ?", f.To.UTC())
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	// Step 2: tickets and bottles per order
	ticketCounts, err := s.countByOrder(ctx, (*models.Ticket)(nil), "COUNT(*)", orders)
	if err != nil {
		return nil, err
	}
	bottleCounts, err := s.countByOrder(ctx, (*models.OrderBottle)(nil), "SUM(count)", orders)
	if err != nil {
		return nil, err
	}

	report := &SalesAnalytics{
		DailySales:  []DailySalesMetrics{},
		SalesByTier: []TierSalesMetrics{},
		PromoUsage:  []PromoUsage{},
	}

	// Step 3: totals, daily buckets and promo usage
	days := map[string]*DailySalesMetrics{}
	usage := map[string]*PromoUsage{}
	for _, o := range orders {
		tickets := ticketCounts[o.ID]
		report.OrderCount++
		report.TotalRevenueMinor += o.AmountTotalMinor
		report.TicketsSold += tickets
		report.BottlesSold += bottleCounts[o.ID]
		if report.Currency == "" {
			report.Currency = o.Currency
		}

		key := o.CreatedAt.UTC().Format(dayLayout)
		day, ok := days[key]
		if !ok {
			day = &DailySalesMetrics{Date: key}
			days[key] = day
		}
		day.Orders++
		day.RevenueMinor += o.AmountTotalMinor
		day.TicketsSold += tickets

		if o.PromoCode != "" {
			u, ok := usage[o.PromoCode]
			if !ok {
				u = &PromoUsage{Code: o.PromoCode}
				usage[o.PromoCode] = u
			}
			u.Orders++
			u.RevenueMinor += o.AmountTotalMinor
		}
	}
	report.TotalRevenue = decimal.New(report.TotalRevenueMinor, -2)

	for _, day := range days {
		report.DailySales = append(report.DailySales, *day)
	}
	sort.Slice(report.DailySales, func(i, j int) bool {
		return report.DailySales[i].Date < report.DailySales[j].Date
	})

	// Step 4: redemption counters of every promo
	var promos []models.PromoCode
	if err := s.db.NewSelect().Model(&promos).Order("code ASC").Scan(ctx); err != nil {
		return nil, err
	}
	for _, p := range promos {
		u, ok := usage[p.Code]
		if !ok {
			if p.Redemptions == 0 {
				continue
			}
			u = &PromoUsage{Code: p.Code}
			usage[p.Code] = u
		}
		u.Redemptions = p.Redemptions
	}
	for _, u := range usage {
		report.PromoUsage = append(report.PromoUsage, *u)
	}
	sort.Slice(report.PromoUsage, func(i, j int) bool {
		return report.PromoUsage[i].Code < report.PromoUsage[j].Code
	})

	// Step 5: tier counters
	var rows []models.InventoryRow
	if err := s.db.NewSelect().Model(&rows).Order("tier ASC").Scan(ctx); err != nil {
		return nil, err
	}
	for _, row := range rows {
		report.SalesByTier = append(report.SalesByTier, TierSalesMetrics{
			Tier:              row.Tier,
			Capacity:          row.Capacity,
			Sold:              row.SoldCount,
			Remaining:         row.Remaining(),
			GrossRevenueMinor: int64(row.SoldCount) * row.UnitPriceMinor,
		})
	}

	return report, nil
}

// countByOrder runs agg grouped by order_id over the given orders.
func (s *Service) countByOrder(ctx context.Context, model interface{}, agg string, orders []models.Order) (map[string]int, error) {
	counts := make(map[string]int, len(orders))
	if len(orders) == 0 {
		return counts, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	var rows []orderItemCount
	err := s.db.NewSelect().
		Model(model).
		Column("order_id").
		ColumnExpr(agg+" AS n").
		Where("order_id IN (?)", bun.In(ids)).
		Group("order_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.OrderID] = row.N
	}
	return counts, nil
}
