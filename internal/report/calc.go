package report

import (
	"sort"

	"github.com/shopspring/decimal"
)

func round2(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

func round4(value float64) float64 {
	return decimal.NewFromFloat(value).Round(4).InexactFloat64()
}

// percent is part/whole as a percentage, or 0 when whole is 0.
func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(part / whole * 100)
}

func average(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return round2(total / float64(count))
}

// changePercent is the percent change from a to b. A move away from zero
// counts as 100.
func changePercent(a, b float64) float64 {
	switch {
	case a == 0 && b == 0:
		return 0
	case a == 0:
		return 100
	default:
		return round2((b - a) / a * 100)
	}
}

// rankDesc orders items by metric descending. Equal metrics keep their
// current relative order.
func rankDesc[T any](items []T, metric func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return metric(items[i]) > metric(items[j])
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// groups accumulates values by key and remembers first-insertion order.
type groups[T any] struct {
	index map[string]int
	items []T
}

func newGroups[T any]() *groups[T] {
	return &groups[T]{index: make(map[string]int), items: make([]T, 0)}
}

// at returns the slot for key, creating it with init on first use. The
// pointer is valid until the next call.
func (g *groups[T]) at(key string, init func() T) *T {
	position, ok := g.index[key]
	if !ok {
		g.items = append(g.items, init())
		position = len(g.items) - 1
		g.index[key] = position
	}
	return &g.items[position]
}

func (g *groups[T]) list() []T {
	return g.items
}

// sortByKey orders a time series ascending by its bucket key.
func sortByKey[T any](items []T, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i]) < key(items[j])
	})
}
