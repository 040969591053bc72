package report

import (
	"context"
	"errors"

	"github.com/iago/reports-back/internal/datasource"
	"github.com/iago/reports-back/internal/domain"
	"go.uber.org/zap"
)

// aggregateSourceFor decides whether a request can be served from
// precomputed daily rollups. It requires a date-only filter with whole-day
// bounds that the rollups fully cover.
func (e *Engine) aggregateSourceFor(
	ctx context.Context,
	filter domain.ReportFilter,
	predicate domain.Predicate,
) (datasource.AggregateSource, bool) {
	if !e.cfg.FastPathEnabled || !filter.IsDateOnly() {
		return nil, false
	}
	if predicate.From == nil || predicate.To == nil {
		return nil, false
	}
	if !predicate.From.Equal(domain.StartOfDay(*predicate.From)) || !predicate.To.Equal(domain.EndOfDay(*predicate.To)) {
		return nil, false
	}
	aggregates, ok := e.source.(datasource.AggregateSource)
	if !ok {
		return nil, false
	}
	through, covered, err := aggregates.CoveredThrough(ctx)
	if err != nil {
		e.logger.Warn("aggregate coverage check failed, scanning rows", zap.Error(err))
		return nil, false
	}
	if !covered || domain.StartOfDay(*predicate.To).After(through) {
		return nil, false
	}
	return aggregates, true
}

// loadDaily returns per-day rollups for the predicate, from precomputed
// aggregates when eligible and from raw sales otherwise.
func (e *Engine) loadDaily(
	ctx context.Context,
	filter domain.ReportFilter,
	predicate domain.Predicate,
) (domain.DailyAggregates, string, error) {
	if source, ok := e.aggregateSourceFor(ctx, filter, predicate); ok {
		aggregates, err := source.FetchDailyAggregates(ctx, *predicate.From, *predicate.To)
		if err == nil {
			return aggregates, pathAggregate, nil
		}
		if !errors.Is(err, domain.ErrAggregatesUnavailable) {
			e.logger.Warn("daily aggregates fetch failed, scanning rows", zap.Error(err))
		}
	}

	sales, err := e.fetchSales(ctx, predicate)
	if err != nil {
		return domain.DailyAggregates{}, "", err
	}
	return domain.RollupSales(sales), pathScan, nil
}
