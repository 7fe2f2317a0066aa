package domain

import "github.com/shopspring/decimal"

type TopProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type ChartPoint struct {
	Date   string          `json:"date"` // YYYY-MM-DD, UTC
	Sales  decimal.Decimal `json:"sales"`
	Orders int             `json:"orders"`
}

type AnalyticsReport struct {
	PeriodDays      int             `json:"period"`
	TotalOrders     int             `json:"totalOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TotalProducts   int             `json:"totalProducts"`
	CompletedOrders int             `json:"completedOrders"`
	PendingOrders   int             `json:"pendingOrders"`
	ConversionRate  float64         `json:"conversionRate"`
	TopProducts     []TopProduct    `json:"topProducts"`
	RecentOrders    []Order         `json:"recentOrders"`
	ChartData       []ChartPoint    `json:"chartData"`
}
