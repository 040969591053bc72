package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/iago/reports-back/internal/domain"
)

func (e *Engine) inventoryReport(ctx context.Context, predicate domain.Predicate) (*domain.InventoryReport, error) {
	products, err := e.fetchProductsCached(ctx, predicate.ForProducts())
	if err != nil {
		return nil, err
	}

	now := e.now()
	movements, err := e.source.FetchMovements(ctx,
		predicate.ForMovements(now.Add(-e.cfg.MovementLookback), now),
		e.cfg.MovementLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch movements: %w", domain.ErrDataSource, err)
	}

	return buildInventoryReport(products, movements, e.cfg), nil
}

func buildInventoryReport(
	products []domain.ProductRow,
	movements []domain.MovementRow,
	cfg Config,
) *domain.InventoryReport {
	report := &domain.InventoryReport{
		StockLevels:     make([]domain.StockLevel, 0, len(products)),
		LowStock:        make([]domain.StockLevel, 0),
		RecentMovements: make([]domain.Movement, 0, len(movements)),
	}

	type categoryTotals struct {
		stock domain.CategoryStock
		units int
	}
	categories := newGroups[categoryTotals]()

	var totalValue float64
	for _, product := range products {
		status := domain.ClassifyStock(product.Stock, product.MinStock)
		value := float64(max(product.Stock, 0)) * product.Price

		report.Summary.TotalProducts++
		report.Summary.TotalStock += max(product.Stock, 0)
		totalValue += value
		switch status {
		case domain.StockStatusOutOfStock:
			report.Summary.OutOfStock++
		case domain.StockStatusLowStock:
			report.Summary.LowStock++
		default:
			report.Summary.InStock++
		}

		level := domain.StockLevel{
			ProductID:    product.ID,
			ProductName:  product.Name,
			SKU:          product.SKU,
			CategoryName: product.CategoryName,
			Stock:        product.Stock,
			MinStock:     product.MinStock,
			Value:        value,
			Status:       status,
		}
		report.StockLevels = append(report.StockLevels, level)
		if status != domain.StockStatusInStock {
			report.LowStock = append(report.LowStock, level)
		}

		categoryID, categoryName := categoryOf(product.CategoryID, product.CategoryName)
		category := categories.at(categoryID, func() categoryTotals {
			return categoryTotals{stock: domain.CategoryStock{CategoryID: categoryID, CategoryName: categoryName}}
		})
		category.stock.Products++
		category.stock.TotalValue += value
		category.units += max(product.Stock, 0)
	}
	report.Summary.TotalValue = round2(totalValue)

	rankDesc(report.StockLevels, func(l domain.StockLevel) float64 { return l.Value })
	for i := range report.StockLevels {
		report.StockLevels[i].Value = round2(report.StockLevels[i].Value)
	}

	sort.SliceStable(report.LowStock, func(i, j int) bool {
		return stockRatio(report.LowStock[i]) < stockRatio(report.LowStock[j])
	})
	report.LowStock = truncate(report.LowStock, cfg.LowStockLimit)
	for i := range report.LowStock {
		report.LowStock[i].Value = round2(report.LowStock[i].Value)
	}

	report.ByCategory = make([]domain.CategoryStock, 0, len(categories.list()))
	for _, category := range categories.list() {
		stock := category.stock
		stock.AverageStock = average(float64(category.units), stock.Products)
		report.ByCategory = append(report.ByCategory, stock)
	}
	rankDesc(report.ByCategory, func(c domain.CategoryStock) float64 { return c.TotalValue })
	for i := range report.ByCategory {
		report.ByCategory[i].TotalValue = round2(report.ByCategory[i].TotalValue)
	}

	for _, movement := range movements {
		report.RecentMovements = append(report.RecentMovements, domain.Movement(movement))
	}
	sort.SliceStable(report.RecentMovements, func(i, j int) bool {
		return report.RecentMovements[i].CreatedAt.After(report.RecentMovements[j].CreatedAt)
	})
	report.RecentMovements = truncate(report.RecentMovements, cfg.MovementLimit)

	return report
}

// stockRatio measures how close a product is to its reorder threshold.
// A zero threshold counts as one.
func stockRatio(level domain.StockLevel) float64 {
	return float64(level.Stock) / float64(max(level.MinStock, 1))
}
