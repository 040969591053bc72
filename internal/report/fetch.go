package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iago/reports-back/internal/cache"
	"github.com/iago/reports-back/internal/domain"
	"go.uber.org/zap"
)

func (e *Engine) fetchSalesCached(ctx context.Context, predicate domain.Predicate) ([]domain.SaleRow, error) {
	return cachedFetch(ctx, e, "sales", predicate, func(ctx context.Context) ([]domain.SaleRow, error) {
		return e.source.FetchSales(ctx, predicate)
	})
}

func (e *Engine) fetchProductsCached(ctx context.Context, predicate domain.Predicate) ([]domain.ProductRow, error) {
	return cachedFetch(ctx, e, "products", predicate, func(ctx context.Context) ([]domain.ProductRow, error) {
		return e.source.FetchProducts(ctx, predicate)
	})
}

func (e *Engine) fetchSales(ctx context.Context, predicate domain.Predicate) ([]domain.SaleRow, error) {
	rows, err := e.source.FetchSales(ctx, predicate)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch sales: %w", domain.ErrDataSource, err)
	}
	return rows, nil
}

// cachedFetch consults the result cache under the predicate fingerprint and
// falls back to the data source. Cache failures are logged and bypassed.
func cachedFetch[T any](
	ctx context.Context,
	e *Engine,
	shape string,
	predicate domain.Predicate,
	fetch func(context.Context) ([]T, error),
) ([]T, error) {
	key := ""
	if e.cache != nil {
		fingerprint, err := cache.Fingerprint(shape, predicate)
		if err != nil {
			e.logger.Warn("cache fingerprint failed", zap.String("shape", shape), zap.Error(err))
		} else {
			key = fingerprint
		}
	}

	if key != "" {
		payload, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.metrics.CacheLookup("error")
			e.logger.Warn("cache read failed, fetching directly", zap.String("shape", shape), zap.Error(err))
		case ok:
			var rows []T
			if err := json.Unmarshal(payload, &rows); err == nil {
				e.metrics.CacheLookup("hit")
				return rows, nil
			}
			e.metrics.CacheLookup("miss")
			e.logger.Warn("cached rows undecodable, fetching directly", zap.String("shape", shape))
		default:
			e.metrics.CacheLookup("miss")
		}
	}

	rows, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrDataSource, shape, err)
	}

	if key != "" {
		payload, err := json.Marshal(rows)
		if err != nil {
			e.logger.Warn("encode rows for cache failed", zap.String("shape", shape), zap.Error(err))
			return rows, nil
		}
		if err := e.cache.Set(ctx, key, payload, e.cfg.CacheTTL); err != nil {
			e.logger.Warn("cache write failed", zap.String("shape", shape), zap.Error(err))
		}
	}
	return rows, nil
}
