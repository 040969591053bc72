package report

import (
	"context"
	"strings"

	"github.com/iago/reports-back/internal/domain"
)

const uncategorized = "uncategorized"

func (e *Engine) salesReport(ctx context.Context, predicate domain.Predicate) (*domain.SalesReport, error) {
	sales, err := e.fetchSalesCached(ctx, predicate)
	if err != nil {
		return nil, err
	}
	return buildSalesReport(sales, e.cfg), nil
}

func buildSalesReport(sales []domain.SaleRow, cfg Config) *domain.SalesReport {
	var revenue, cost float64

	products := newGroups[domain.ProductSales]()
	days := newGroups[domain.DailySales]()
	categories := newGroups[domain.CategorySales]()
	customers := newGroups[domain.CustomerSales]()

	for _, sale := range sales {
		saleCost := sale.Cost()
		revenue += sale.Total
		cost += saleCost

		day := days.at(domain.DayKey(sale.CreatedAt), func() domain.DailySales {
			return domain.DailySales{Date: domain.DayKey(sale.CreatedAt)}
		})
		day.Sales++
		day.Revenue += sale.Total
		day.Profit += sale.Total - saleCost

		if sale.CustomerID != "" {
			customer := customers.at(sale.CustomerID, func() domain.CustomerSales {
				return domain.CustomerSales{CustomerID: sale.CustomerID, CustomerName: sale.CustomerName}
			})
			customer.Orders++
			customer.Revenue += sale.Total
		}

		for _, item := range sale.Items {
			lineRevenue := item.UnitPrice * float64(item.Quantity)
			lineCost := item.UnitCost * float64(item.Quantity)

			product := products.at(item.ProductID, func() domain.ProductSales {
				return domain.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
			})
			product.Quantity += item.Quantity
			product.Revenue += lineRevenue
			product.Profit += lineRevenue - lineCost

			categoryID, categoryName := categoryOf(item.CategoryID, item.CategoryName)
			category := categories.at(categoryID, func() domain.CategorySales {
				return domain.CategorySales{CategoryID: categoryID, CategoryName: categoryName}
			})
			category.Quantity += item.Quantity
			category.Revenue += lineRevenue
		}
	}

	profit := revenue - cost
	report := &domain.SalesReport{
		Summary: domain.SalesSummary{
			TotalSales:        len(sales),
			TotalRevenue:      round2(revenue),
			TotalCost:         round2(cost),
			TotalProfit:       round2(profit),
			AverageOrderValue: average(revenue, len(sales)),
			ProfitMargin:      percent(profit, revenue),
		},
		ByProduct:  products.list(),
		ByDate:     days.list(),
		ByCategory: categories.list(),
		ByCustomer: customers.list(),
	}

	// Rank on the unrounded sums so sub-cent differences still order.
	rankDesc(report.ByProduct, func(p domain.ProductSales) float64 { return p.Revenue })
	report.ByProduct = truncate(report.ByProduct, cfg.TopProductsLimit)
	sortByKey(report.ByDate, func(d domain.DailySales) string { return d.Date })
	rankDesc(report.ByCategory, func(c domain.CategorySales) float64 { return c.Revenue })
	rankDesc(report.ByCustomer, func(c domain.CustomerSales) float64 { return c.Revenue })
	report.ByCustomer = truncate(report.ByCustomer, cfg.TopCustomersLimit)

	for i := range report.ByProduct {
		report.ByProduct[i].Revenue = round2(report.ByProduct[i].Revenue)
		report.ByProduct[i].Profit = round2(report.ByProduct[i].Profit)
	}
	for i := range report.ByDate {
		report.ByDate[i].Revenue = round2(report.ByDate[i].Revenue)
		report.ByDate[i].Profit = round2(report.ByDate[i].Profit)
	}
	for i := range report.ByCategory {
		report.ByCategory[i].Revenue = round2(report.ByCategory[i].Revenue)
	}
	for i := range report.ByCustomer {
		report.ByCustomer[i].Revenue = round2(report.ByCustomer[i].Revenue)
	}

	return report
}

func categoryOf(id, name string) (string, string) {
	if strings.TrimSpace(id) == "" {
		return uncategorized, "Uncategorized"
	}
	return id, name
}
