package domain

import (
	"fmt"
	"strings"
	"time"
)

type ReportType string

const (
	ReportTypeSales      ReportType = "sales"
	ReportTypeInventory  ReportType = "inventory"
	ReportTypeCustomer   ReportType = "customer"
	ReportTypeFinancial  ReportType = "financial"
	ReportTypeComparison ReportType = "comparison"
)

// ParseReportType accepts the canonical names case-insensitively.
func ParseReportType(value string) (ReportType, error) {
	switch t := ReportType(strings.ToLower(strings.TrimSpace(value))); t {
	case ReportTypeSales, ReportTypeInventory, ReportTypeCustomer, ReportTypeFinancial, ReportTypeComparison:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %w: %q", ErrInvalidFilter, ErrUnsupportedReport, value)
	}
}

// Result is implemented by exactly one canonical struct per report type.
type Result interface {
	ReportType() ReportType
}

type SalesReport struct {
	Summary    SalesSummary    `json:"summary"`
	ByProduct  []ProductSales  `json:"by_product"`
	ByDate     []DailySales    `json:"by_date"`
	ByCategory []CategorySales `json:"by_category"`
	ByCustomer []CustomerSales `json:"by_customer"`
}

func (*SalesReport) ReportType() ReportType { return ReportTypeSales }

type SalesSummary struct {
	TotalSales        int     `json:"total_sales"`
	TotalRevenue      float64 `json:"total_revenue"`
	TotalCost         float64 `json:"total_cost"`
	TotalProfit       float64 `json:"total_profit"`
	AverageOrderValue float64 `json:"average_order_value"`
	ProfitMargin      float64 `json:"profit_margin"`
}

type ProductSales struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Revenue     float64 `json:"revenue"`
	Profit      float64 `json:"profit"`
}

type DailySales struct {
	Date    string  `json:"date"`
	Sales   int     `json:"sales"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

type CategorySales struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Quantity     int     `json:"quantity"`
	Revenue      float64 `json:"revenue"`
}

type CustomerSales struct {
	CustomerID   string  `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	Orders       int     `json:"orders"`
	Revenue      float64 `json:"revenue"`
}

type StockStatus string

const (
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusInStock    StockStatus = "in_stock"
)

// ClassifyStock maps a stock level against its reorder threshold.
func ClassifyStock(stock, minStock int) StockStatus {
	switch {
	case stock <= 0:
		return StockStatusOutOfStock
	case stock <= minStock:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

type InventoryReport struct {
	Summary         InventorySummary `json:"summary"`
	StockLevels     []StockLevel     `json:"stock_levels"`
	LowStock        []StockLevel     `json:"low_stock"`
	ByCategory      []CategoryStock  `json:"by_category"`
	RecentMovements []Movement       `json:"recent_movements"`
}

func (*InventoryReport) ReportType() ReportType { return ReportTypeInventory }

type InventorySummary struct {
	TotalProducts int     `json:"total_products"`
	TotalStock    int     `json:"total_stock"`
	TotalValue    float64 `json:"total_value"`
	InStock       int     `json:"in_stock"`
	LowStock      int     `json:"low_stock"`
	OutOfStock    int     `json:"out_of_stock"`
}

type StockLevel struct {
	ProductID    string      `json:"product_id"`
	ProductName  string      `json:"product_name"`
	SKU          string      `json:"sku"`
	CategoryName string      `json:"category_name"`
	Stock        int         `json:"stock"`
	MinStock     int         `json:"min_stock"`
	Value        float64     `json:"value"`
	Status       StockStatus `json:"status"`
}

type CategoryStock struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Products     int     `json:"products"`
	TotalValue   float64 `json:"total_value"`
	AverageStock float64 `json:"average_stock"`
}

type Movement struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type CustomerReport struct {
	Summary      CustomerSummary    `json:"summary"`
	TopCustomers []CustomerSpend    `json:"top_customers"`
	Segments     []CustomerSegment  `json:"segments"`
	Acquisition  []AcquisitionPoint `json:"acquisition"`
}

func (*CustomerReport) ReportType() ReportType { return ReportTypeCustomer }

type CustomerSummary struct {
	TotalCustomers  int     `json:"total_customers"`
	ActiveCustomers int     `json:"active_customers"`
	RepeatCustomers int     `json:"repeat_customers"`
	NewCustomers    int     `json:"new_customers"`
	AverageSpend    float64 `json:"average_spend"`
	RetentionRate   float64 `json:"retention_rate"`
	ChurnRate       float64 `json:"churn_rate"`
}

type CustomerSpend struct {
	CustomerID   string  `json:"customer_id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Orders       int     `json:"orders"`
	TotalSpent   float64 `json:"total_spent"`
	AverageOrder float64 `json:"average_order"`
	Segment      string  `json:"segment"`
}

type CustomerSegment struct {
	Segment      string  `json:"segment"`
	Customers    int     `json:"customers"`
	TotalSpent   float64 `json:"total_spent"`
	AverageSpent float64 `json:"average_spent"`
}

type AcquisitionPoint struct {
	Date         string `json:"date"`
	NewCustomers int    `json:"new_customers"`
	Cumulative   int    `json:"cumulative"`
}

type FinancialReport struct {
	Summary  FinancialSummary  `json:"summary"`
	ByMonth  []FinancialPeriod `json:"by_month"`
	ByDay    []FinancialPeriod `json:"by_day"`
	Expenses []ExpenseLine     `json:"expenses"`
}

func (*FinancialReport) ReportType() ReportType { return ReportTypeFinancial }

// FinancialSummary carries NetProfit equal to GrossProfit: no operating
// expense source exists, so the two are reported identically.
type FinancialSummary struct {
	Orders      int     `json:"orders"`
	Revenue     float64 `json:"revenue"`
	Cost        float64 `json:"cost"`
	GrossProfit float64 `json:"gross_profit"`
	NetProfit   float64 `json:"net_profit"`
	GrossMargin float64 `json:"gross_margin"`
	NetMargin   float64 `json:"net_margin"`
}

type FinancialPeriod struct {
	Period  string  `json:"period"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
}

type ExpenseLine struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

type Dimension string

const (
	DimensionOverall  Dimension = "overall"
	DimensionProduct  Dimension = "product"
	DimensionCategory Dimension = "category"
)

type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByMonth GroupBy = "month"
)

type ComparisonOptions struct {
	Dimension Dimension `json:"dimension"`
	GroupBy   GroupBy   `json:"group_by"`
	Details   bool      `json:"details"`
}

// Normalize fills defaults and rejects unknown values.
func (o ComparisonOptions) Normalize() (ComparisonOptions, error) {
	if o.Dimension == "" {
		o.Dimension = DimensionOverall
	}
	if o.GroupBy == "" {
		o.GroupBy = GroupByDay
	}
	switch o.Dimension {
	case DimensionOverall, DimensionProduct, DimensionCategory:
	default:
		return o, fmt.Errorf("%w: unknown dimension %q", ErrInvalidFilter, o.Dimension)
	}
	switch o.GroupBy {
	case GroupByDay, GroupByMonth:
	default:
		return o, fmt.Errorf("%w: unknown group_by %q", ErrInvalidFilter, o.GroupBy)
	}
	return o, nil
}

type ComparisonReport struct {
	Dimension        Dimension         `json:"dimension"`
	GroupBy          GroupBy           `json:"group_by"`
	PeriodA          PeriodReport      `json:"period_a"`
	PeriodB          PeriodReport      `json:"period_b"`
	Changes          PeriodChanges     `json:"changes"`
	BreakdownChanges []BreakdownChange `json:"breakdown_changes"`
}

func (*ComparisonReport) ReportType() ReportType { return ReportTypeComparison }

type PeriodReport struct {
	Start     *time.Time       `json:"start"`
	End       *time.Time       `json:"end"`
	Summary   PeriodSummary    `json:"summary"`
	Series    []SeriesPoint    `json:"series"`
	Breakdown []BreakdownEntry `json:"breakdown"`
}

type PeriodSummary struct {
	Orders            int     `json:"orders"`
	Revenue           float64 `json:"revenue"`
	Cost              float64 `json:"cost"`
	Profit            float64 `json:"profit"`
	AverageOrderValue float64 `json:"average_order_value"`
	ProfitMargin      float64 `json:"profit_margin"`
}

type SeriesPoint struct {
	Bucket  string  `json:"bucket"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

type BreakdownEntry struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
}

// PeriodChanges are percent changes from period A to period B.
type PeriodChanges struct {
	Orders            float64 `json:"orders"`
	Revenue           float64 `json:"revenue"`
	Profit            float64 `json:"profit"`
	AverageOrderValue float64 `json:"average_order_value"`
}

type BreakdownChange struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	RevenueA float64 `json:"revenue_a"`
	RevenueB float64 `json:"revenue_b"`
	Change   float64 `json:"change"`
}
