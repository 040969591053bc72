package datasource

import (
	"context"
	"time"

	"github.com/iago/reports-back/internal/domain"
)

// Source reads raw transactional rows matching a resolved predicate.
type Source interface {
	FetchSales(ctx context.Context, predicate domain.Predicate) ([]domain.SaleRow, error)
	FetchProducts(ctx context.Context, predicate domain.Predicate) ([]domain.ProductRow, error)
	FetchCustomers(ctx context.Context, predicate domain.Predicate) ([]domain.CustomerRow, error)
	FetchMovements(ctx context.Context, predicate domain.Predicate, limit int) ([]domain.MovementRow, error)
}

// AggregateSource serves precomputed per-day rollups. CoveredThrough
// returns the last complete day present, or false when none exist.
type AggregateSource interface {
	CoveredThrough(ctx context.Context) (time.Time, bool, error)
	FetchDailyAggregates(ctx context.Context, from, to time.Time) (domain.DailyAggregates, error)
}

// Refresher rebuilds the precomputed rollups.
type Refresher interface {
	RefreshDailyAggregates(ctx context.Context) error
}
