package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/render"
)

// Sections flattens a report into ordered tables: the summary first, then
// each breakdown in its report order.
func Sections(result domain.Result) ([]render.Section, error) {
	switch report := result.(type) {
	case *domain.SalesReport:
		return salesSections(report), nil
	case *domain.InventoryReport:
		return inventorySections(report), nil
	case *domain.CustomerReport:
		return customerSections(report), nil
	case *domain.FinancialReport:
		return financialSections(report), nil
	case *domain.ComparisonReport:
		return comparisonSections(report), nil
	default:
		return nil, fmt.Errorf("%w: no tabular layout for %T", domain.ErrInternal, result)
	}
}

func salesSections(r *domain.SalesReport) []render.Section {
	s := r.Summary
	sections := []render.Section{
		summarySection(
			"total_sales", integer(s.TotalSales),
			"total_revenue", money(s.TotalRevenue),
			"total_cost", money(s.TotalCost),
			"total_profit", money(s.TotalProfit),
			"average_order_value", money(s.AverageOrderValue),
			"profit_margin", money(s.ProfitMargin),
		),
	}

	byProduct := render.Section{Title: "Top Products", Columns: []string{"product_id", "product_name", "quantity", "revenue", "profit"}}
	for _, p := range r.ByProduct {
		byProduct.Rows = append(byProduct.Rows, []string{p.ProductID, p.ProductName, integer(p.Quantity), money(p.Revenue), money(p.Profit)})
	}

	byDate := render.Section{Title: "Sales By Date", Columns: []string{"date", "sales", "revenue", "profit"}}
	for _, d := range r.ByDate {
		byDate.Rows = append(byDate.Rows, []string{d.Date, integer(d.Sales), money(d.Revenue), money(d.Profit)})
	}

	byCategory := render.Section{Title: "Sales By Category", Columns: []string{"category_id", "category_name", "quantity", "revenue"}}
	for _, c := range r.ByCategory {
		byCategory.Rows = append(byCategory.Rows, []string{c.CategoryID, c.CategoryName, integer(c.Quantity), money(c.Revenue)})
	}

	byCustomer := render.Section{Title: "Top Customers", Columns: []string{"customer_id", "customer_name", "orders", "revenue"}}
	for _, c := range r.ByCustomer {
		byCustomer.Rows = append(byCustomer.Rows, []string{c.CustomerID, c.CustomerName, integer(c.Orders), money(c.Revenue)})
	}

	return append(sections, byProduct, byDate, byCategory, byCustomer)
}

func inventorySections(r *domain.InventoryReport) []render.Section {
	s := r.Summary
	sections := []render.Section{
		summarySection(
			"total_products", integer(s.TotalProducts),
			"total_stock", integer(s.TotalStock),
			"total_value", money(s.TotalValue),
			"in_stock", integer(s.InStock),
			"low_stock", integer(s.LowStock),
			"out_of_stock", integer(s.OutOfStock),
		),
		stockSection("Stock Levels", r.StockLevels),
		stockSection("Low Stock", r.LowStock),
	}

	byCategory := render.Section{Title: "Stock By Category", Columns: []string{"category_id", "category_name", "products", "total_value", "average_stock"}}
	for _, c := range r.ByCategory {
		byCategory.Rows = append(byCategory.Rows, []string{c.CategoryID, c.CategoryName, integer(c.Products), money(c.TotalValue), money(c.AverageStock)})
	}

	movements := render.Section{Title: "Recent Movements", Columns: []string{"id", "product_id", "product_name", "type", "quantity", "reason", "user_id", "created_at"}}
	for _, m := range r.RecentMovements {
		movements.Rows = append(movements.Rows, []string{
			m.ID, m.ProductID, m.ProductName, m.Type, integer(m.Quantity), m.Reason, m.UserID, timestamp(m.CreatedAt),
		})
	}

	return append(sections, byCategory, movements)
}

func stockSection(title string, levels []domain.StockLevel) render.Section {
	section := render.Section{Title: title, Columns: []string{"product_id", "product_name", "sku", "category", "stock", "min_stock", "value", "status"}}
	for _, l := range levels {
		section.Rows = append(section.Rows, []string{
			l.ProductID, l.ProductName, l.SKU, l.CategoryName, integer(l.Stock), integer(l.MinStock), money(l.Value), string(l.Status),
		})
	}
	return section
}

func customerSections(r *domain.CustomerReport) []render.Section {
	s := r.Summary
	sections := []render.Section{
		summarySection(
			"total_customers", integer(s.TotalCustomers),
			"active_customers", integer(s.ActiveCustomers),
			"repeat_customers", integer(s.RepeatCustomers),
			"new_customers", integer(s.NewCustomers),
			"average_spend", money(s.AverageSpend),
			"retention_rate", ratio(s.RetentionRate),
			"churn_rate", ratio(s.ChurnRate),
		),
	}

	top := render.Section{Title: "Top Customers", Columns: []string{"customer_id", "name", "email", "orders", "total_spent", "average_order", "segment"}}
	for _, c := range r.TopCustomers {
		top.Rows = append(top.Rows, []string{
			c.CustomerID, c.Name, c.Email, integer(c.Orders), money(c.TotalSpent), money(c.AverageOrder), c.Segment,
		})
	}

	segments := render.Section{Title: "Segments", Columns: []string{"segment", "customers", "total_spent", "average_spent"}}
	for _, seg := range r.Segments {
		segments.Rows = append(segments.Rows, []string{seg.Segment, integer(seg.Customers), money(seg.TotalSpent), money(seg.AverageSpent)})
	}

	acquisition := render.Section{Title: "Acquisition", Columns: []string{"date", "new_customers", "cumulative"}}
	for _, a := range r.Acquisition {
		acquisition.Rows = append(acquisition.Rows, []string{a.Date, integer(a.NewCustomers), integer(a.Cumulative)})
	}

	return append(sections, top, segments, acquisition)
}

func financialSections(r *domain.FinancialReport) []render.Section {
	s := r.Summary
	sections := []render.Section{
		summarySection(
			"orders", integer(s.Orders),
			"revenue", money(s.Revenue),
			"cost", money(s.Cost),
			"gross_profit", money(s.GrossProfit),
			"net_profit", money(s.NetProfit),
			"gross_margin", money(s.GrossMargin),
			"net_margin", money(s.NetMargin),
		),
		periodSection("By Month", r.ByMonth),
		periodSection("By Day", r.ByDay),
	}

	expenses := render.Section{Title: "Expenses", Columns: []string{"category", "amount"}}
	for _, e := range r.Expenses {
		expenses.Rows = append(expenses.Rows, []string{e.Category, money(e.Amount)})
	}
	return append(sections, expenses)
}

func periodSection(title string, periods []domain.FinancialPeriod) render.Section {
	section := render.Section{Title: title, Columns: []string{"period", "orders", "revenue", "cost", "profit"}}
	for _, p := range periods {
		section.Rows = append(section.Rows, []string{p.Period, integer(p.Orders), money(p.Revenue), money(p.Cost), money(p.Profit)})
	}
	return section
}

func comparisonSections(r *domain.ComparisonReport) []render.Section {
	a, b, c := r.PeriodA.Summary, r.PeriodB.Summary, r.Changes
	summary := render.Section{
		Title:   "Comparison Summary",
		Columns: []string{"metric", "period_a", "period_b", "change_percent"},
		Rows: [][]string{
			{"orders", integer(a.Orders), integer(b.Orders), money(c.Orders)},
			{"revenue", money(a.Revenue), money(b.Revenue), money(c.Revenue)},
			{"profit", money(a.Profit), money(b.Profit), money(c.Profit)},
			{"average_order_value", money(a.AverageOrderValue), money(b.AverageOrderValue), money(c.AverageOrderValue)},
			{"cost", money(a.Cost), money(b.Cost), ""},
			{"profit_margin", money(a.ProfitMargin), money(b.ProfitMargin), ""},
		},
	}
	sections := []render.Section{
		summary,
		seriesSection("Period A Series", r.PeriodA.Series),
		seriesSection("Period B Series", r.PeriodB.Series),
	}

	if len(r.BreakdownChanges) > 0 {
		changes := render.Section{
			Title:   fmt.Sprintf("Change By %s", titleCase(string(r.Dimension))),
			Columns: []string{"key", "name", "revenue_a", "revenue_b", "change_percent"},
		}
		for _, ch := range r.BreakdownChanges {
			changes.Rows = append(changes.Rows, []string{ch.Key, ch.Name, money(ch.RevenueA), money(ch.RevenueB), money(ch.Change)})
		}
		sections = append(sections, changes)
	}
	return sections
}

func seriesSection(title string, series []domain.SeriesPoint) render.Section {
	section := render.Section{Title: title, Columns: []string{"bucket", "orders", "revenue", "profit"}}
	for _, p := range series {
		section.Rows = append(section.Rows, []string{p.Bucket, integer(p.Orders), money(p.Revenue), money(p.Profit)})
	}
	return section
}

// summarySection builds a two-column metric table from name/value pairs.
func summarySection(pairs ...string) render.Section {
	section := render.Section{Title: "Summary", Columns: []string{"metric", "value"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		section.Rows = append(section.Rows, []string{pairs[i], pairs[i+1]})
	}
	return section
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func integer(v int) string {
	return strconv.Itoa(v)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
