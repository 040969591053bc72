package report

import (
	"context"

	"github.com/iago/reports-back/internal/domain"
)

// Expense categories reported alongside cost of goods. Only cost of goods has
// a source; the rest are zero placeholders.
var expenseCategories = []string{
	"cost_of_goods_sold",
	"operating_expenses",
	"payroll",
	"marketing",
	"other",
}

func (e *Engine) financialReport(
	ctx context.Context,
	filter domain.ReportFilter,
	predicate domain.Predicate,
) (*domain.FinancialReport, string, error) {
	daily, path, err := e.loadDaily(ctx, filter, predicate)
	if err != nil {
		return nil, "", err
	}
	return buildFinancialReport(daily), path, nil
}

func buildFinancialReport(daily domain.DailyAggregates) *domain.FinancialReport {
	var orders int
	var revenue, cost float64

	months := newGroups[domain.FinancialPeriod]()
	days := newGroups[domain.FinancialPeriod]()
	for _, total := range daily.Totals {
		orders += total.Orders
		revenue += total.Revenue
		cost += total.Cost

		addPeriod(months, domain.MonthKey(total.Day), total)
		addPeriod(days, domain.DayKey(total.Day), total)
	}

	grossProfit := revenue - cost
	report := &domain.FinancialReport{
		Summary: domain.FinancialSummary{
			Orders:      orders,
			Revenue:     round2(revenue),
			Cost:        round2(cost),
			GrossProfit: round2(grossProfit),
			NetProfit:   round2(grossProfit),
			GrossMargin: percent(grossProfit, revenue),
			NetMargin:   percent(grossProfit, revenue),
		},
		ByMonth:  finishPeriods(months.list()),
		ByDay:    finishPeriods(days.list()),
		Expenses: make([]domain.ExpenseLine, 0, len(expenseCategories)),
	}

	for _, category := range expenseCategories {
		line := domain.ExpenseLine{Category: category}
		if category == "cost_of_goods_sold" {
			line.Amount = round2(cost)
		}
		report.Expenses = append(report.Expenses, line)
	}
	return report
}

func addPeriod(periods *groups[domain.FinancialPeriod], key string, total domain.DailyTotal) {
	period := periods.at(key, func() domain.FinancialPeriod {
		return domain.FinancialPeriod{Period: key}
	})
	period.Orders += total.Orders
	period.Revenue += total.Revenue
	period.Cost += total.Cost
}

func finishPeriods(periods []domain.FinancialPeriod) []domain.FinancialPeriod {
	for i := range periods {
		periods[i].Profit = round2(periods[i].Revenue - periods[i].Cost)
		periods[i].Revenue = round2(periods[i].Revenue)
		periods[i].Cost = round2(periods[i].Cost)
	}
	sortByKey(periods, func(p domain.FinancialPeriod) string { return p.Period })
	return periods
}
