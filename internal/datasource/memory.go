package datasource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iago/reports-back/internal/domain"
)

// MemorySource keeps rows in memory for local development and tests.
type MemorySource struct {
	mu        sync.RWMutex
	sales     []domain.SaleRow
	products  []domain.ProductRow
	customers []domain.CustomerRow
	movements []domain.MovementRow

	aggregates     domain.DailyAggregates
	coveredThrough *time.Time

	now func() time.Time
}

func NewMemorySource() *MemorySource {
	return &MemorySource{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the clock used by RefreshDailyAggregates.
func (s *MemorySource) WithClock(now func() time.Time) *MemorySource {
	s.now = now
	return s
}

func (s *MemorySource) AddSales(rows ...domain.SaleRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		row.Items = append([]domain.SaleItemRow(nil), row.Items...)
		s.sales = append(s.sales, row)
	}
}

func (s *MemorySource) AddProducts(rows ...domain.ProductRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, rows...)
}

func (s *MemorySource) AddCustomers(rows ...domain.CustomerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = append(s.customers, rows...)
}

func (s *MemorySource) AddMovements(rows ...domain.MovementRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, rows...)
}

func (s *MemorySource) FetchSales(_ context.Context, predicate domain.Predicate) ([]domain.SaleRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make(map[string]string, len(s.products))
	suppliers := make(map[string]string, len(s.products))
	for _, product := range s.products {
		categories[product.ID] = product.CategoryID
		suppliers[product.ID] = product.SupplierID
	}

	rows := make([]domain.SaleRow, 0)
	for _, sale := range s.sales {
		if !predicate.Contains(sale.CreatedAt) {
			continue
		}
		if predicate.CustomerID != "" && sale.CustomerID != predicate.CustomerID {
			continue
		}
		if predicate.UserID != "" && sale.UserID != predicate.UserID {
			continue
		}
		if predicate.Status != "" && sale.Status != predicate.Status {
			continue
		}
		itemFiltered := predicate.ProductID != "" || predicate.CategoryID != "" || predicate.SupplierID != ""
		if itemFiltered && !saleHasItem(sale, func(item domain.SaleItemRow) bool {
			return (predicate.ProductID == "" || item.ProductID == predicate.ProductID) &&
				(predicate.CategoryID == "" || item.CategoryID == predicate.CategoryID ||
					categories[item.ProductID] == predicate.CategoryID) &&
				(predicate.SupplierID == "" || suppliers[item.ProductID] == predicate.SupplierID)
		}) {
			continue
		}
		clone := sale
		clone.Items = append([]domain.SaleItemRow(nil), sale.Items...)
		rows = append(rows, clone)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}

func saleHasItem(sale domain.SaleRow, match func(domain.SaleItemRow) bool) bool {
	for _, item := range sale.Items {
		if match(item) {
			return true
		}
	}
	return false
}

func (s *MemorySource) FetchProducts(_ context.Context, predicate domain.Predicate) ([]domain.ProductRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.ProductRow, 0, len(s.products))
	for _, product := range s.products {
		if predicate.ProductID != "" && product.ID != predicate.ProductID {
			continue
		}
		if predicate.CategoryID != "" && product.CategoryID != predicate.CategoryID {
			continue
		}
		if predicate.SupplierID != "" && product.SupplierID != predicate.SupplierID {
			continue
		}
		rows = append(rows, product)
	}
	return rows, nil
}

func (s *MemorySource) FetchCustomers(_ context.Context, predicate domain.Predicate) ([]domain.CustomerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.CustomerRow, 0, len(s.customers))
	for _, customer := range s.customers {
		if predicate.CustomerID != "" && customer.ID != predicate.CustomerID {
			continue
		}
		rows = append(rows, customer)
	}
	return rows, nil
}

func (s *MemorySource) FetchMovements(
	_ context.Context,
	predicate domain.Predicate,
	limit int,
) ([]domain.MovementRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make(map[string]string, len(s.products))
	for _, product := range s.products {
		categories[product.ID] = product.CategoryID
	}

	rows := make([]domain.MovementRow, 0)
	for _, movement := range s.movements {
		if !predicate.Contains(movement.CreatedAt) {
			continue
		}
		if predicate.ProductID != "" && movement.ProductID != predicate.ProductID {
			continue
		}
		if predicate.CategoryID != "" && categories[movement.ProductID] != predicate.CategoryID {
			continue
		}
		if predicate.UserID != "" && movement.UserID != predicate.UserID {
			continue
		}
		rows = append(rows, movement)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemorySource) CoveredThrough(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coveredThrough == nil {
		return time.Time{}, false, nil
	}
	return *s.coveredThrough, true, nil
}

func (s *MemorySource) FetchDailyAggregates(_ context.Context, from, to time.Time) (domain.DailyAggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.coveredThrough == nil {
		return domain.DailyAggregates{}, domain.ErrAggregatesUnavailable
	}
	fromDay := domain.StartOfDay(from)
	toDay := domain.StartOfDay(to)
	inRange := func(day time.Time) bool {
		return !day.Before(fromDay) && !day.After(toDay)
	}

	result := domain.DailyAggregates{
		Totals:   make([]domain.DailyTotal, 0),
		Products: make([]domain.DailyProductTotal, 0),
	}
	for _, total := range s.aggregates.Totals {
		if inRange(total.Day) {
			result.Totals = append(result.Totals, total)
		}
	}
	for _, product := range s.aggregates.Products {
		if inRange(product.Day) {
			result.Products = append(result.Products, product)
		}
	}
	return result, nil
}

// RefreshDailyAggregates rolls up every sale up to the end of yesterday.
func (s *MemorySource) RefreshDailyAggregates(ctx context.Context) error {
	return s.RefreshThrough(ctx, domain.StartOfDay(s.now()).Add(-24*time.Hour))
}

// RefreshThrough rolls up every sale on or before the given day.
func (s *MemorySource) RefreshThrough(_ context.Context, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	through := domain.StartOfDay(day)
	cutoff := through.Add(24 * time.Hour)

	included := make([]domain.SaleRow, 0, len(s.sales))
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(cutoff) {
			included = append(included, sale)
		}
	}

	s.aggregates = domain.RollupSales(included)
	s.coveredThrough = &through
	return nil
}
