package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iago/reports-back/internal/cache"
	"github.com/iago/reports-back/internal/datasource"
	"github.com/iago/reports-back/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func sale(id, customerID string, total float64, createdAt time.Time, items ...domain.SaleItemRow) domain.SaleRow {
	return domain.SaleRow{
		ID:           id,
		CustomerID:   customerID,
		CustomerName: "Customer " + customerID,
		Status:       "completed",
		Total:        total,
		CreatedAt:    createdAt,
		Items:        items,
	}
}

func item(productID, categoryID string, qty int, price, cost float64) domain.SaleItemRow {
	return domain.SaleItemRow{
		ProductID:    productID,
		ProductName:  "Product " + productID,
		CategoryID:   categoryID,
		CategoryName: "Category " + categoryID,
		Quantity:     qty,
		UnitPrice:    price,
		UnitCost:     cost,
	}
}

type countingSource struct {
	*datasource.MemorySource
	salesCalls    atomic.Int32
	productsCalls atomic.Int32
}

func (s *countingSource) FetchSales(ctx context.Context, p domain.Predicate) ([]domain.SaleRow, error) {
	s.salesCalls.Add(1)
	return s.MemorySource.FetchSales(ctx, p)
}

func (s *countingSource) FetchProducts(ctx context.Context, p domain.Predicate) ([]domain.ProductRow, error) {
	s.productsCalls.Add(1)
	return s.MemorySource.FetchProducts(ctx, p)
}

type failingSource struct {
	datasource.MemorySource
}

func (*failingSource) FetchSales(context.Context, domain.Predicate) ([]domain.SaleRow, error) {
	return nil, errors.New("connection refused")
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, domain.ErrCache
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return domain.ErrCache
}

func newTestEngine(source datasource.Source, store cache.Store, cfg Config) *Engine {
	return NewEngine(Dependencies{
		Source: source,
		Cache:  store,
		Config: cfg,
		Now:    func() time.Time { return fixedNow },
	})
}

func TestSalesReportSummary(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("s-1", "c-1", 100, day(1), item("p-1", "cat-1", 2, 50, 30)),
		sale("s-2", "c-2", 50, day(2), item("p-2", "cat-2", 1, 50, 20)),
	)
	engine := newTestEngine(source, nil, Config{})

	result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
	require.NoError(t, err)
	report, ok := result.(*domain.SalesReport)
	require.True(t, ok)

	assert.Equal(t, 2, report.Summary.TotalSales)
	assert.Equal(t, 150.0, report.Summary.TotalRevenue)
	assert.Equal(t, 80.0, report.Summary.TotalCost)
	assert.Equal(t, 70.0, report.Summary.TotalProfit)
	assert.Equal(t, 75.0, report.Summary.AverageOrderValue)
	assert.Equal(t, 46.67, report.Summary.ProfitMargin)

	require.Len(t, report.ByDate, 2)
	assert.Equal(t, "2024-03-01", report.ByDate[0].Date)
	assert.Equal(t, 40.0, report.ByDate[0].Profit)
	require.Len(t, report.ByProduct, 2)
	assert.Equal(t, "p-1", report.ByProduct[0].ProductID)
	assert.Equal(t, 40.0, report.ByProduct[0].Profit)
	assert.Len(t, report.ByCategory, 2)
	assert.Len(t, report.ByCustomer, 2)
}

func TestSalesReportEmptyHasZeroedFields(t *testing.T) {
	engine := newTestEngine(datasource.NewMemorySource(), nil, Config{})

	result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
	require.NoError(t, err)
	report := result.(*domain.SalesReport)

	assert.Equal(t, domain.SalesSummary{}, report.Summary)
	assert.NotNil(t, report.ByProduct)
	assert.NotNil(t, report.ByDate)
	assert.NotNil(t, report.ByCategory)
	assert.NotNil(t, report.ByCustomer)
}

func TestSalesRankingKeepsInsertionOrderOnTiesAndTruncates(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("s-1", "c-1", 10, day(1), item("p-b", "cat-1", 1, 10, 5)),
		sale("s-2", "c-2", 10, day(1), item("p-a", "cat-1", 1, 10, 5)),
		sale("s-3", "c-3", 10, day(1), item("p-c", "cat-1", 1, 10, 5)),
		sale("s-4", "c-4", 30, day(2), item("p-d", "cat-2", 1, 30, 5)),
	)
	engine := newTestEngine(source, nil, Config{TopProductsLimit: 3, TopCustomersLimit: 2})

	result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
	require.NoError(t, err)
	report := result.(*domain.SalesReport)

	ids := make([]string, 0, len(report.ByProduct))
	for _, product := range report.ByProduct {
		ids = append(ids, product.ProductID)
	}
	assert.Equal(t, []string{"p-d", "p-b", "p-a"}, ids)
	require.Len(t, report.ByCustomer, 2)
	assert.Equal(t, "c-4", report.ByCustomer[0].CustomerID)
	assert.Equal(t, "c-1", report.ByCustomer[1].CustomerID)
}

func TestInventoryReport(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddProducts(
		domain.ProductRow{ID: "p-1", Name: "Out", CategoryID: "cat-1", CategoryName: "Drinks", Stock: 0, MinStock: 5, Price: 10},
		domain.ProductRow{ID: "p-2", Name: "Low", CategoryID: "cat-1", CategoryName: "Drinks", Stock: 3, MinStock: 5, Price: 10},
		domain.ProductRow{ID: "p-3", Name: "Fine", CategoryID: "cat-2", CategoryName: "Home", Stock: 10, MinStock: 5, Price: 20},
		domain.ProductRow{ID: "p-4", Name: "NoMin", CategoryID: "cat-2", CategoryName: "Home", Stock: 1, MinStock: 0, Price: 1},
	)
	source.AddMovements(
		domain.MovementRow{ID: "m-old", ProductID: "p-1", CreatedAt: fixedNow.Add(-60 * 24 * time.Hour)},
		domain.MovementRow{ID: "m-1", ProductID: "p-1", CreatedAt: fixedNow.Add(-48 * time.Hour)},
		domain.MovementRow{ID: "m-2", ProductID: "p-2", CreatedAt: fixedNow.Add(-time.Hour)},
	)
	engine := newTestEngine(source, nil, Config{MovementLookback: 30 * 24 * time.Hour})

	result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeInventory)
	require.NoError(t, err)
	report := result.(*domain.InventoryReport)

	assert.Equal(t, 4, report.Summary.TotalProducts)
	assert.Equal(t, 1, report.Summary.OutOfStock)
	assert.Equal(t, 1, report.Summary.LowStock)
	assert.Equal(t, 2, report.Summary.InStock)
	assert.Equal(t, 231.0, report.Summary.TotalValue)

	require.Len(t, report.LowStock, 2)
	assert.Equal(t, "p-1", report.LowStock[0].ProductID)
	assert.Equal(t, domain.StockStatusOutOfStock, report.LowStock[0].Status)
	assert.Equal(t, "p-2", report.LowStock[1].ProductID)

	assert.Equal(t, "p-3", report.StockLevels[0].ProductID)

	require.Len(t, report.ByCategory, 2)
	assert.Equal(t, "cat-2", report.ByCategory[0].CategoryID)
	assert.Equal(t, 201.0, report.ByCategory[0].TotalValue)
	assert.Equal(t, 5.5, report.ByCategory[0].AverageStock)
	assert.Equal(t, 1.5, report.ByCategory[1].AverageStock)

	require.Len(t, report.RecentMovements, 2)
	assert.Equal(t, "m-2", report.RecentMovements[0].ID)
}

func TestCustomerReport(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddCustomers(
		domain.CustomerRow{ID: "c-1", Name: "Ana", CreatedAt: day(1)},
		domain.CustomerRow{ID: "c-2", Name: "Bia", CreatedAt: day(1)},
		domain.CustomerRow{ID: "c-3", Name: "Caio", CreatedAt: day(3)},
		domain.CustomerRow{ID: "c-4", Name: "Old", CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	)
	source.AddSales(
		sale("s-1", "c-1", 800, day(2)),
		sale("s-2", "c-1", 700, day(4)),
		sale("s-3", "c-2", 300, day(4)),
		sale("s-4", "c-3", 50, day(5)),
	)
	engine := newTestEngine(source, nil, Config{HighValueThreshold: 1000, MediumValueThreshold: 250})

	filter := domain.ReportFilter{
		StartDate: ptr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   ptr(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)),
	}
	result, err := engine.Generate(context.Background(), filter, domain.ReportTypeCustomer)
	require.NoError(t, err)
	report := result.(*domain.CustomerReport)

	assert.Equal(t, 4, report.Summary.TotalCustomers)
	assert.Equal(t, 3, report.Summary.ActiveCustomers)
	assert.Equal(t, 1, report.Summary.RepeatCustomers)
	assert.Equal(t, 3, report.Summary.NewCustomers)
	assert.Equal(t, 0.3333, report.Summary.RetentionRate)
	assert.Equal(t, 0.6667, report.Summary.ChurnRate)
	assert.Equal(t, 616.67, report.Summary.AverageSpend)

	require.Len(t, report.TopCustomers, 3)
	assert.Equal(t, "c-1", report.TopCustomers[0].CustomerID)
	assert.Equal(t, "high", report.TopCustomers[0].Segment)
	assert.Equal(t, 750.0, report.TopCustomers[0].AverageOrder)

	require.Len(t, report.Segments, 3)
	assert.Equal(t, "high", report.Segments[0].Segment)
	assert.Equal(t, "medium", report.Segments[1].Segment)
	assert.Equal(t, 2, report.Segments[2].Customers)

	require.Len(t, report.Acquisition, 2)
	assert.Equal(t, domain.AcquisitionPoint{Date: "2024-03-01", NewCustomers: 2, Cumulative: 2}, report.Acquisition[0])
	assert.Equal(t, domain.AcquisitionPoint{Date: "2024-03-03", NewCustomers: 1, Cumulative: 3}, report.Acquisition[1])
}

func TestFinancialReportNetEqualsGross(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("s-1", "c-1", 100, day(1), item("p-1", "cat-1", 2, 50, 30)),
		sale("s-2", "c-1", 50, day(1), item("p-2", "cat-1", 1, 50, 20)),
		sale("s-3", "c-2", 200, time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC), item("p-1", "cat-1", 4, 50, 30)),
	)
	engine := newTestEngine(source, nil, Config{})

	result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeFinancial)
	require.NoError(t, err)
	report := result.(*domain.FinancialReport)

	assert.Equal(t, 350.0, report.Summary.Revenue)
	assert.Equal(t, 200.0, report.Summary.Cost)
	assert.Equal(t, report.Summary.GrossProfit, report.Summary.NetProfit)
	assert.Equal(t, report.Summary.GrossMargin, report.Summary.NetMargin)
	assert.Equal(t, 42.86, report.Summary.GrossMargin)

	require.Len(t, report.ByMonth, 2)
	assert.Equal(t, "2024-03", report.ByMonth[0].Period)
	assert.Equal(t, 70.0, report.ByMonth[0].Profit)
	require.Len(t, report.ByDay, 2)

	require.Len(t, report.Expenses, 5)
	assert.Equal(t, domain.ExpenseLine{Category: "cost_of_goods_sold", Amount: 200}, report.Expenses[0])
	for _, line := range report.Expenses[1:] {
		assert.Zero(t, line.Amount)
	}
}

func TestFastPathMatchesScan(t *testing.T) {
	ctx := context.Background()
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("s-1", "c-1", 100, day(1), item("p-1", "cat-1", 2, 50, 30)),
		sale("s-2", "c-2", 50, day(2), item("p-2", "cat-2", 1, 50, 20)),
		sale("s-3", "c-2", 75, day(9), item("p-2", "cat-2", 1, 75, 20)),
	)
	require.NoError(t, source.RefreshThrough(ctx, day(10)))
	filter := domain.ReportFilter{
		StartDate: ptr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   ptr(domain.EndOfDay(day(10))),
	}

	counting := &countingSource{MemorySource: source}
	fast := newTestEngine(counting, nil, Config{FastPathEnabled: true})
	fastResult, err := fast.Generate(ctx, filter, domain.ReportTypeFinancial)
	require.NoError(t, err)
	assert.Equal(t, int32(0), counting.salesCalls.Load())

	scan := newTestEngine(source, nil, Config{FastPathEnabled: false})
	scanResult, err := scan.Generate(ctx, filter, domain.ReportTypeFinancial)
	require.NoError(t, err)

	assert.Equal(t, scanResult, fastResult)

	uncovered := domain.ReportFilter{
		StartDate: filter.StartDate,
		EndDate:   ptr(domain.EndOfDay(day(12))),
	}
	_, err = fast.Generate(ctx, uncovered, domain.ReportTypeFinancial)
	require.NoError(t, err)
	assert.Equal(t, int32(1), counting.salesCalls.Load())
}

func TestComparisonReport(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("a-1", "c-1", 100, day(1), item("p-1", "cat-1", 2, 50, 30)),
		sale("b-1", "c-1", 150, day(8), item("p-1", "cat-1", 3, 50, 30)),
		sale("b-2", "c-2", 50, day(9), item("p-2", "cat-2", 1, 50, 20)),
	)
	engine := newTestEngine(source, nil, Config{})

	filterA := domain.ReportFilter{StartDate: ptr(day(1).Add(-time.Hour)), EndDate: ptr(day(7))}
	filterB := domain.ReportFilter{StartDate: ptr(day(8).Add(-time.Hour)), EndDate: ptr(day(14))}

	report, err := engine.GenerateComparison(context.Background(), filterA, filterB, domain.ComparisonOptions{
		Dimension: domain.DimensionProduct,
		GroupBy:   domain.GroupByDay,
		Details:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.PeriodA.Summary.Orders)
	assert.Equal(t, 2, report.PeriodB.Summary.Orders)
	assert.Equal(t, 100.0, report.Changes.Orders)
	assert.Equal(t, 100.0, report.Changes.Revenue)
	assert.Len(t, report.PeriodB.Series, 2)

	require.Len(t, report.PeriodB.Breakdown, 2)
	assert.Equal(t, "p-1", report.PeriodB.Breakdown[0].Key)
	require.Len(t, report.BreakdownChanges, 2)
	assert.Equal(t, domain.BreakdownChange{Key: "p-1", Name: "Product p-1", RevenueA: 100, RevenueB: 150, Change: 50}, report.BreakdownChanges[0])
	assert.Equal(t, 100.0, report.BreakdownChanges[1].Change)

	overall, err := engine.GenerateComparison(context.Background(), filterA, filterB, domain.ComparisonOptions{
		GroupBy: domain.GroupByMonth,
		Details: true,
	})
	require.NoError(t, err)
	assert.Empty(t, overall.PeriodA.Breakdown)
	assert.Empty(t, overall.BreakdownChanges)
	require.Len(t, overall.PeriodB.Series, 1)
	assert.Equal(t, "2024-03", overall.PeriodB.Series[0].Bucket)
}

func TestGenerateComparisonUsesPreviousWindow(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("a-1", "c-1", 100, day(3)),
		sale("b-1", "c-1", 80, day(12)),
	)
	engine := newTestEngine(source, nil, Config{})
	filter := domain.ReportFilter{
		StartDate: ptr(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		EndDate:   ptr(domain.EndOfDay(day(16))),
	}

	result, err := engine.Generate(context.Background(), filter, domain.ReportTypeComparison)
	require.NoError(t, err)
	report := result.(*domain.ComparisonReport)

	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *report.PeriodA.Start)
	assert.Equal(t, 100.0, report.PeriodA.Summary.Revenue)
	assert.Equal(t, 80.0, report.PeriodB.Summary.Revenue)
	assert.Equal(t, -20.0, report.Changes.Revenue)

	_, err = engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeComparison)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestChangePercent(t *testing.T) {
	assert.Equal(t, 0.0, changePercent(0, 0))
	assert.Equal(t, 100.0, changePercent(0, 5))
	assert.Equal(t, 50.0, changePercent(100, 150))
	assert.Equal(t, -33.33, changePercent(150, 100))
}

func TestGenerateErrors(t *testing.T) {
	engine := newTestEngine(datasource.NewMemorySource(), nil, Config{MaxSpan: 24 * time.Hour})

	_, err := engine.Generate(context.Background(), domain.ReportFilter{
		StartDate: ptr(day(5)),
		EndDate:   ptr(day(1)),
	}, domain.ReportTypeSales)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = engine.Generate(context.Background(), domain.ReportFilter{
		StartDate: ptr(day(1)),
		EndDate:   ptr(day(5)),
	}, domain.ReportTypeSales)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportType("payroll"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedReport)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	failing := newTestEngine(&failingSource{}, nil, Config{})
	_, err = failing.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataSource)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCacheHitSkipsFetch(t *testing.T) {
	source := &countingSource{MemorySource: datasource.NewMemorySource()}
	source.AddSales(sale("s-1", "c-1", 100, day(1), item("p-1", "cat-1", 2, 50, 30)))
	source.AddProducts(domain.ProductRow{ID: "p-1", Stock: 3, MinStock: 1, Price: 2})
	engine := newTestEngine(source, cache.NewMemoryStore(cache.Config{TTL: time.Minute}), Config{})

	for i := 0; i < 3; i++ {
		result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
		require.NoError(t, err)
		assert.Equal(t, 100.0, result.(*domain.SalesReport).Summary.TotalRevenue)

		_, err = engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeInventory)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), source.salesCalls.Load())
	assert.Equal(t, int32(1), source.productsCalls.Load())

	_, err := engine.Generate(context.Background(), domain.ReportFilter{CustomerID: "c-1"}, domain.ReportTypeSales)
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.salesCalls.Load())
}

func TestCacheFailureFallsBackToSource(t *testing.T) {
	source := &countingSource{MemorySource: datasource.NewMemorySource()}
	source.AddSales(sale("s-1", "c-1", 100, day(1)))
	engine := newTestEngine(source, brokenCache{}, Config{})

	for i := 0; i < 2; i++ {
		result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
		require.NoError(t, err)
		assert.Equal(t, 1, result.(*domain.SalesReport).Summary.TotalSales)
	}
	assert.Equal(t, int32(2), source.salesCalls.Load())
}

func tiedSource() *datasource.MemorySource {
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("s-1", "c-3", 30, day(1), item("p-3", "cat-2", 1, 30, 10)),
		sale("s-2", "c-1", 30, day(1), item("p-1", "cat-1", 1, 30, 10)),
		sale("s-3", "c-2", 30, day(2), item("p-2", "cat-1", 1, 30, 10)),
		sale("s-4", "c-4", 30, day(2), item("p-4", "cat-2", 1, 30, 10)),
	)
	source.AddProducts(
		domain.ProductRow{ID: "p-3", Name: "C", CategoryID: "cat-2", Stock: 2, MinStock: 5, Price: 15},
		domain.ProductRow{ID: "p-1", Name: "A", CategoryID: "cat-1", Stock: 3, MinStock: 5, Price: 10},
		domain.ProductRow{ID: "p-2", Name: "B", CategoryID: "cat-1", Stock: 2, MinStock: 5, Price: 15},
		domain.ProductRow{ID: "p-4", Name: "D", CategoryID: "cat-2", Stock: 0, MinStock: 0, Price: 30},
	)
	source.AddCustomers(
		domain.CustomerRow{ID: "c-2", Name: "Two", CreatedAt: day(1)},
		domain.CustomerRow{ID: "c-1", Name: "One", CreatedAt: day(1)},
		domain.CustomerRow{ID: "c-3", Name: "Three", CreatedAt: day(2)},
	)
	return source
}

func TestGenerateIsIdempotentWithTies(t *testing.T) {
	reportTypes := []domain.ReportType{domain.ReportTypeSales, domain.ReportTypeInventory, domain.ReportTypeCustomer}
	engines := map[string]*Engine{
		"scan":   newTestEngine(tiedSource(), nil, Config{TopProductsLimit: 3, TopCustomersLimit: 3}),
		"cached": newTestEngine(tiedSource(), cache.NewMemoryStore(cache.Config{}), Config{TopProductsLimit: 3, TopCustomersLimit: 3}),
	}

	for name, engine := range engines {
		for _, reportType := range reportTypes {
			t.Run(name+"/"+string(reportType), func(t *testing.T) {
				first, err := engine.Generate(context.Background(), domain.ReportFilter{}, reportType)
				require.NoError(t, err)
				second, err := engine.Generate(context.Background(), domain.ReportFilter{}, reportType)
				require.NoError(t, err)

				firstJSON, err := json.Marshal(first)
				require.NoError(t, err)
				secondJSON, err := json.Marshal(second)
				require.NoError(t, err)
				assert.Equal(t, string(firstJSON), string(secondJSON))
			})
		}
	}

	result, err := engines["scan"].Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
	require.NoError(t, err)
	sales := result.(*domain.SalesReport)
	productIDs := make([]string, 0, len(sales.ByProduct))
	for _, product := range sales.ByProduct {
		productIDs = append(productIDs, product.ProductID)
	}
	assert.Equal(t, []string{"p-3", "p-1", "p-2"}, productIDs)
}

func TestRankingUsesUnroundedAmounts(t *testing.T) {
	source := datasource.NewMemorySource()
	source.AddSales(
		sale("s-1", "c-low", 10.001, day(1), item("p-low", "cat-1", 1, 10.001, 5)),
		sale("s-2", "c-high", 10.004, day(1), item("p-high", "cat-2", 1, 10.004, 5)),
	)
	source.AddProducts(
		domain.ProductRow{ID: "p-low", Name: "Low", CategoryID: "cat-1", Stock: 1, MinStock: 5, Price: 10.001},
		domain.ProductRow{ID: "p-high", Name: "High", CategoryID: "cat-2", Stock: 1, MinStock: 5, Price: 10.004},
	)
	engine := newTestEngine(source, nil, Config{})

	result, err := engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeSales)
	require.NoError(t, err)
	sales := result.(*domain.SalesReport)
	require.Len(t, sales.ByProduct, 2)
	assert.Equal(t, "p-high", sales.ByProduct[0].ProductID)
	assert.Equal(t, 10.0, sales.ByProduct[0].Revenue)
	assert.Equal(t, "cat-2", sales.ByCategory[0].CategoryID)
	assert.Equal(t, "c-high", sales.ByCustomer[0].CustomerID)

	result, err = engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeCustomer)
	require.NoError(t, err)
	customers := result.(*domain.CustomerReport)
	require.Len(t, customers.TopCustomers, 2)
	assert.Equal(t, "c-high", customers.TopCustomers[0].CustomerID)
	assert.Equal(t, 10.0, customers.TopCustomers[0].TotalSpent)

	result, err = engine.Generate(context.Background(), domain.ReportFilter{}, domain.ReportTypeInventory)
	require.NoError(t, err)
	inventory := result.(*domain.InventoryReport)
	assert.Equal(t, "p-high", inventory.StockLevels[0].ProductID)
	assert.Equal(t, 10.0, inventory.StockLevels[0].Value)
	assert.Equal(t, "cat-2", inventory.ByCategory[0].CategoryID)
}

type panickingSource struct {
	datasource.MemorySource
}

func (*panickingSource) FetchSales(context.Context, domain.Predicate) ([]domain.SaleRow, error) {
	panic("row decoder exploded")
}

func TestComparisonPanicBecomesInternalError(t *testing.T) {
	engine := newTestEngine(&panickingSource{}, nil, Config{})
	filterA := domain.ReportFilter{StartDate: ptr(domain.StartOfDay(day(1))), EndDate: ptr(domain.EndOfDay(day(2)))}
	filterB := domain.ReportFilter{StartDate: ptr(domain.StartOfDay(day(3))), EndDate: ptr(domain.EndOfDay(day(4)))}

	report, err := engine.GenerateComparison(context.Background(), filterA, filterB, domain.ComparisonOptions{})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.Contains(t, err.Error(), "row decoder exploded")

	_, err = engine.Generate(context.Background(), filterB, domain.ReportTypeComparison)
	assert.ErrorIs(t, err, domain.ErrInternal)
}
