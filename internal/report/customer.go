package report

import (
	"context"
	"fmt"

	"github.com/iago/reports-back/internal/domain"
)

const (
	segmentHigh   = "high"
	segmentMedium = "medium"
	segmentLow    = "low"
)

func (e *Engine) customerReport(ctx context.Context, predicate domain.Predicate) (*domain.CustomerReport, error) {
	customers, err := e.source.FetchCustomers(ctx, predicate.ForCustomers())
	if err != nil {
		return nil, fmt.Errorf("%w: fetch customers: %w", domain.ErrDataSource, err)
	}
	sales, err := e.fetchSales(ctx, predicate)
	if err != nil {
		return nil, err
	}
	return buildCustomerReport(customers, sales, predicate, e.cfg), nil
}

func buildCustomerReport(
	customers []domain.CustomerRow,
	sales []domain.SaleRow,
	predicate domain.Predicate,
	cfg Config,
) *domain.CustomerReport {
	spend := newGroups[domain.CustomerSpend]()
	for _, customer := range customers {
		spend.at(customer.ID, func() domain.CustomerSpend {
			return domain.CustomerSpend{CustomerID: customer.ID, Name: customer.Name, Email: customer.Email}
		})
	}
	for _, sale := range sales {
		if sale.CustomerID == "" {
			continue
		}
		entry := spend.at(sale.CustomerID, func() domain.CustomerSpend {
			return domain.CustomerSpend{CustomerID: sale.CustomerID, Name: sale.CustomerName}
		})
		entry.Orders++
		entry.TotalSpent += sale.Total
	}

	segments := []domain.CustomerSegment{
		{Segment: segmentHigh},
		{Segment: segmentMedium},
		{Segment: segmentLow},
	}
	segmentIndex := map[string]int{segmentHigh: 0, segmentMedium: 1, segmentLow: 2}

	report := &domain.CustomerReport{
		TopCustomers: make([]domain.CustomerSpend, 0),
		Acquisition:  make([]domain.AcquisitionPoint, 0),
	}

	var activeSpend float64
	for _, entry := range spend.list() {
		entry.Segment = segmentFor(entry.TotalSpent, cfg)
		entry.AverageOrder = average(entry.TotalSpent, entry.Orders)

		segment := &segments[segmentIndex[entry.Segment]]
		segment.Customers++
		segment.TotalSpent += entry.TotalSpent

		report.Summary.TotalCustomers++
		if entry.Orders > 0 {
			report.Summary.ActiveCustomers++
			activeSpend += entry.TotalSpent
			report.TopCustomers = append(report.TopCustomers, entry)
		}
		if entry.Orders > 1 {
			report.Summary.RepeatCustomers++
		}
	}

	summary := &report.Summary
	summary.AverageSpend = average(activeSpend, summary.ActiveCustomers)
	retention := 0.0
	if summary.ActiveCustomers > 0 {
		retention = float64(summary.RepeatCustomers) / float64(summary.ActiveCustomers)
	}
	summary.RetentionRate = round4(retention)
	summary.ChurnRate = round4(1 - retention)

	rankDesc(report.TopCustomers, func(c domain.CustomerSpend) float64 { return c.TotalSpent })
	report.TopCustomers = truncate(report.TopCustomers, cfg.TopCustomersLimit)
	for i := range report.TopCustomers {
		report.TopCustomers[i].TotalSpent = round2(report.TopCustomers[i].TotalSpent)
	}

	rankDesc(segments, func(s domain.CustomerSegment) float64 { return s.TotalSpent })
	for i := range segments {
		segments[i].AverageSpent = average(segments[i].TotalSpent, segments[i].Customers)
		segments[i].TotalSpent = round2(segments[i].TotalSpent)
	}
	report.Segments = segments

	signups := newGroups[domain.AcquisitionPoint]()
	for _, customer := range customers {
		if !predicate.Contains(customer.CreatedAt) {
			continue
		}
		summary.NewCustomers++
		key := domain.DayKey(customer.CreatedAt)
		point := signups.at(key, func() domain.AcquisitionPoint {
			return domain.AcquisitionPoint{Date: key}
		})
		point.NewCustomers++
	}
	report.Acquisition = append(report.Acquisition, signups.list()...)
	sortByKey(report.Acquisition, func(p domain.AcquisitionPoint) string { return p.Date })
	cumulative := 0
	for i := range report.Acquisition {
		cumulative += report.Acquisition[i].NewCustomers
		report.Acquisition[i].Cumulative = cumulative
	}

	return report
}

func segmentFor(spent float64, cfg Config) string {
	switch {
	case spent >= cfg.HighValueThreshold:
		return segmentHigh
	case spent >= cfg.MediumValueThreshold:
		return segmentMedium
	default:
		return segmentLow
	}
}
