package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ReportFilter holds the optional constraints a caller can put on a report.
type ReportFilter struct {
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	ProductID  string     `json:"product_id,omitempty"`
	CategoryID string     `json:"category_id,omitempty"`
	CustomerID string     `json:"customer_id,omitempty"`
	SupplierID string     `json:"supplier_id,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// Validate rejects inverted ranges and ranges wider than maxSpan.
// A non-positive maxSpan disables the span check.
func (f ReportFilter) Validate(maxSpan time.Duration) error {
	if f.StartDate == nil || f.EndDate == nil {
		return nil
	}
	if f.StartDate.After(*f.EndDate) {
		return fmt.Errorf("%w: start date %s is after end date %s",
			ErrInvalidFilter, f.StartDate.Format(time.RFC3339), f.EndDate.Format(time.RFC3339))
	}
	if maxSpan > 0 && f.EndDate.Sub(*f.StartDate) > maxSpan {
		return fmt.Errorf("%w: date range exceeds %d days", ErrInvalidFilter, int(maxSpan.Hours()/24))
	}
	return nil
}

// EffectiveStart is the later of StartDate and Since.
func (f ReportFilter) EffectiveStart() *time.Time {
	switch {
	case f.StartDate == nil:
		return cloneTime(f.Since)
	case f.Since == nil:
		return cloneTime(f.StartDate)
	case f.Since.After(*f.StartDate):
		return cloneTime(f.Since)
	default:
		return cloneTime(f.StartDate)
	}
}

// IsDateOnly reports whether the filter constrains nothing but time.
func (f ReportFilter) IsDateOnly() bool {
	return f.ProductID == "" && f.CategoryID == "" && f.CustomerID == "" &&
		f.SupplierID == "" && f.UserID == "" && f.Status == ""
}

// Resolve normalizes the filter into the predicate handed to data sources.
func (f ReportFilter) Resolve() Predicate {
	p := Predicate{
		From:       f.EffectiveStart(),
		To:         cloneTime(f.EndDate),
		ProductID:  strings.TrimSpace(f.ProductID),
		CategoryID: strings.TrimSpace(f.CategoryID),
		CustomerID: strings.TrimSpace(f.CustomerID),
		SupplierID: strings.TrimSpace(f.SupplierID),
		UserID:     strings.TrimSpace(f.UserID),
		Status:     strings.TrimSpace(f.Status),
	}
	if p.From != nil {
		utc := p.From.UTC()
		p.From = &utc
	}
	if p.To != nil {
		utc := p.To.UTC()
		p.To = &utc
	}
	return p
}

// Predicate is a resolved filter: a single inclusive time window plus
// equality constraints. Its JSON encoding is stable and feeds cache keys.
type Predicate struct {
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	ProductID  string     `json:"product_id,omitempty"`
	CategoryID string     `json:"category_id,omitempty"`
	CustomerID string     `json:"customer_id,omitempty"`
	SupplierID string     `json:"supplier_id,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// ForProducts keeps only the constraints that apply to the product catalog.
func (p Predicate) ForProducts() Predicate {
	return Predicate{
		ProductID:  p.ProductID,
		CategoryID: p.CategoryID,
		SupplierID: p.SupplierID,
	}
}

// ForCustomers keeps only the customer constraint.
func (p Predicate) ForCustomers() Predicate {
	return Predicate{CustomerID: p.CustomerID}
}

// ForMovements bounds the movement feed to [from, to].
func (p Predicate) ForMovements(from, to time.Time) Predicate {
	from = from.UTC()
	to = to.UTC()
	return Predicate{
		From:       &from,
		To:         &to,
		ProductID:  p.ProductID,
		CategoryID: p.CategoryID,
		UserID:     p.UserID,
	}
}

// Contains reports whether t falls inside the inclusive window.
func (p Predicate) Contains(t time.Time) bool {
	if p.From != nil && t.Before(*p.From) {
		return false
	}
	if p.To != nil && t.After(*p.To) {
		return false
	}
	return true
}

// ParseDate accepts RFC3339 or a bare YYYY-MM-DD date. A bare date used as
// an upper bound is moved to the last instant of that UTC day.
func ParseDate(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	parsed, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable date %q", ErrInvalidFilter, value)
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}

// DayKey formats t as its UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// MonthKey formats t as its UTC calendar month.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
