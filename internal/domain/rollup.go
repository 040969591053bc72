package domain

import (
	"sort"
	"time"
)

// RollupSales folds raw sales into per-day totals and per-day product lines,
// the same shape served by precomputed aggregates.
func RollupSales(sales []SaleRow) DailyAggregates {
	type productKey struct {
		day       time.Time
		productID string
	}

	totals := make(map[time.Time]*DailyTotal)
	totalOrder := make([]time.Time, 0)
	products := make(map[productKey]*DailyProductTotal)
	productOrder := make([]productKey, 0)

	for _, sale := range sales {
		day := StartOfDay(sale.CreatedAt)
		total, ok := totals[day]
		if !ok {
			total = &DailyTotal{Day: day}
			totals[day] = total
			totalOrder = append(totalOrder, day)
		}
		total.Orders++
		total.Revenue += sale.Total
		total.Cost += sale.Cost()

		for _, item := range sale.Items {
			key := productKey{day: day, productID: item.ProductID}
			product, ok := products[key]
			if !ok {
				product = &DailyProductTotal{
					Day:          day,
					ProductID:    item.ProductID,
					ProductName:  item.ProductName,
					CategoryID:   item.CategoryID,
					CategoryName: item.CategoryName,
				}
				products[key] = product
				productOrder = append(productOrder, key)
			}
			product.Quantity += item.Quantity
			product.Revenue += item.UnitPrice * float64(item.Quantity)
			product.Cost += item.UnitCost * float64(item.Quantity)
		}
	}

	sort.SliceStable(totalOrder, func(i, j int) bool { return totalOrder[i].Before(totalOrder[j]) })
	sort.SliceStable(productOrder, func(i, j int) bool { return productOrder[i].day.Before(productOrder[j].day) })

	aggregates := DailyAggregates{
		Totals:   make([]DailyTotal, 0, len(totalOrder)),
		Products: make([]DailyProductTotal, 0, len(productOrder)),
	}
	for _, day := range totalOrder {
		aggregates.Totals = append(aggregates.Totals, *totals[day])
	}
	for _, key := range productOrder {
		aggregates.Products = append(aggregates.Products, *products[key])
	}
	return aggregates
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last representable instant of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}
