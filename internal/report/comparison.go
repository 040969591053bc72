package report

import (
	"context"
	"fmt"
	"time"

	"github.com/iago/reports-back/internal/domain"
	"golang.org/x/sync/errgroup"
)

func (e *Engine) comparison(
	ctx context.Context,
	filterA domain.ReportFilter,
	filterB domain.ReportFilter,
	opts domain.ComparisonOptions,
) (*domain.ComparisonReport, string, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, "", err
	}
	if err := filterA.Validate(e.cfg.MaxSpan); err != nil {
		return nil, "", fmt.Errorf("period a: %w", err)
	}
	if err := filterB.Validate(e.cfg.MaxSpan); err != nil {
		return nil, "", fmt.Errorf("period b: %w", err)
	}

	var periodA, periodB domain.PeriodReport
	var pathA, pathB string

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(recovered(func() error {
		var err error
		periodA, pathA, err = e.period(groupCtx, filterA, opts)
		return err
	}))
	group.Go(recovered(func() error {
		var err error
		periodB, pathB, err = e.period(groupCtx, filterB, opts)
		return err
	}))
	if err := group.Wait(); err != nil {
		return nil, "", err
	}

	report := &domain.ComparisonReport{
		Dimension: opts.Dimension,
		GroupBy:   opts.GroupBy,
		PeriodA:   periodA,
		PeriodB:   periodB,
		Changes: domain.PeriodChanges{
			Orders:            changePercent(float64(periodA.Summary.Orders), float64(periodB.Summary.Orders)),
			Revenue:           changePercent(periodA.Summary.Revenue, periodB.Summary.Revenue),
			Profit:            changePercent(periodA.Summary.Profit, periodB.Summary.Profit),
			AverageOrderValue: changePercent(periodA.Summary.AverageOrderValue, periodB.Summary.AverageOrderValue),
		},
		BreakdownChanges: breakdownChanges(periodA.Breakdown, periodB.Breakdown),
	}

	path := pathA
	if pathA != pathB {
		path = pathMixed
	}
	return report, path, nil
}

// previousPeriodComparison compares the filter window against the window of
// equal length that ends just before it.
func (e *Engine) previousPeriodComparison(
	ctx context.Context,
	filter domain.ReportFilter,
) (*domain.ComparisonReport, string, error) {
	predicate := filter.Resolve()
	if predicate.From == nil || predicate.To == nil {
		return nil, "", fmt.Errorf("%w: comparison requires start and end dates", domain.ErrInvalidFilter)
	}

	span := predicate.To.Sub(*predicate.From)
	previousEnd := predicate.From.Add(-time.Nanosecond)
	previousStart := previousEnd.Add(-span)

	filterA := filter
	filterA.StartDate = &previousStart
	filterA.EndDate = &previousEnd
	filterA.Since = nil

	return e.comparison(ctx, filterA, filter, domain.ComparisonOptions{
		Dimension: domain.DimensionOverall,
		GroupBy:   domain.GroupByDay,
	})
}

func (e *Engine) period(
	ctx context.Context,
	filter domain.ReportFilter,
	opts domain.ComparisonOptions,
) (domain.PeriodReport, string, error) {
	predicate := filter.Resolve()
	daily, path, err := e.loadDaily(ctx, filter, predicate)
	if err != nil {
		return domain.PeriodReport{}, "", err
	}
	period := buildPeriod(daily, opts, e.cfg.BreakdownLimit)
	period.Start = predicate.From
	period.End = predicate.To
	return period, path, nil
}

func buildPeriod(daily domain.DailyAggregates, opts domain.ComparisonOptions, limit int) domain.PeriodReport {
	var orders int
	var revenue, cost float64

	buckets := newGroups[domain.SeriesPoint]()
	for _, total := range daily.Totals {
		orders += total.Orders
		revenue += total.Revenue
		cost += total.Cost

		key := domain.DayKey(total.Day)
		if opts.GroupBy == domain.GroupByMonth {
			key = domain.MonthKey(total.Day)
		}
		point := buckets.at(key, func() domain.SeriesPoint {
			return domain.SeriesPoint{Bucket: key}
		})
		point.Orders += total.Orders
		point.Revenue += total.Revenue
		point.Profit += total.Revenue - total.Cost
	}

	series := buckets.list()
	for i := range series {
		series[i].Revenue = round2(series[i].Revenue)
		series[i].Profit = round2(series[i].Profit)
	}
	sortByKey(series, func(p domain.SeriesPoint) string { return p.Bucket })

	profit := revenue - cost
	return domain.PeriodReport{
		Summary: domain.PeriodSummary{
			Orders:            orders,
			Revenue:           round2(revenue),
			Cost:              round2(cost),
			Profit:            round2(profit),
			AverageOrderValue: average(revenue, orders),
			ProfitMargin:      percent(profit, revenue),
		},
		Series:    series,
		Breakdown: buildBreakdown(daily.Products, opts, limit),
	}
}

// buildBreakdown groups product lines by the requested dimension. Only one
// dimension is computed, and only when details were asked for.
func buildBreakdown(lines []domain.DailyProductTotal, opts domain.ComparisonOptions, limit int) []domain.BreakdownEntry {
	entries := newGroups[domain.BreakdownEntry]()
	if !opts.Details || opts.Dimension == domain.DimensionOverall {
		return entries.list()
	}

	for _, line := range lines {
		key, name := line.ProductID, line.ProductName
		if opts.Dimension == domain.DimensionCategory {
			key, name = categoryOf(line.CategoryID, line.CategoryName)
		}
		entry := entries.at(key, func() domain.BreakdownEntry {
			return domain.BreakdownEntry{Key: key, Name: name}
		})
		entry.Quantity += line.Quantity
		entry.Revenue += line.Revenue
		entry.Profit += line.Revenue - line.Cost
	}

	breakdown := entries.list()
	rankDesc(breakdown, func(b domain.BreakdownEntry) float64 { return b.Revenue })
	breakdown = truncate(breakdown, limit)
	for i := range breakdown {
		breakdown[i].Revenue = round2(breakdown[i].Revenue)
		breakdown[i].Profit = round2(breakdown[i].Profit)
	}
	return breakdown
}

// breakdownChanges pairs entries by key, in period B order followed by keys
// seen only in period A.
func breakdownChanges(a, b []domain.BreakdownEntry) []domain.BreakdownChange {
	changes := newGroups[domain.BreakdownChange]()
	for _, entry := range b {
		change := changes.at(entry.Key, func() domain.BreakdownChange {
			return domain.BreakdownChange{Key: entry.Key, Name: entry.Name}
		})
		change.RevenueB = entry.Revenue
	}
	for _, entry := range a {
		change := changes.at(entry.Key, func() domain.BreakdownChange {
			return domain.BreakdownChange{Key: entry.Key, Name: entry.Name}
		})
		change.RevenueA = entry.Revenue
	}

	list := changes.list()
	for i := range list {
		list[i].Change = changePercent(list[i].RevenueA, list[i].RevenueB)
	}
	return list
}

// recovered turns a panic inside a period goroutine into ErrInternal. A
// panic there would otherwise escape every caller's recover.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", domain.ErrInternal, r)
			}
		}()
		return fn()
	}
}
