package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iago/reports-back/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// PostgresSource reads report rows from the transactional Postgres schema
// and its daily_sales_totals / daily_product_sales materialized views.
type PostgresSource struct {
	db   *sqlx.DB
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	return &PostgresSource{db: db, pool: pool, now: utcNow}, nil
}

// NewPostgresSourceWithDB wraps an existing handle.
func NewPostgresSourceWithDB(db *sqlx.DB) *PostgresSource {
	return &PostgresSource{db: db, now: utcNow}
}

// WithClock replaces the clock that decides which day is still open.
func (s *PostgresSource) WithClock(now func() time.Time) *PostgresSource {
	s.now = now
	return s
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (s *PostgresSource) Close() {
	_ = s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
}

type saleLineRecord struct {
	SaleID       string    `db:"sale_id"`
	CustomerID   string    `db:"customer_id"`
	CustomerName string    `db:"customer_name"`
	UserID       string    `db:"user_id"`
	Status       string    `db:"status"`
	Total        float64   `db:"total"`
	CreatedAt    time.Time `db:"created_at"`
	ProductID    string    `db:"product_id"`
	ProductName  string    `db:"product_name"`
	CategoryID   string    `db:"category_id"`
	CategoryName string    `db:"category_name"`
	Quantity     int       `db:"quantity"`
	UnitPrice    float64   `db:"unit_price"`
	UnitCost     float64   `db:"unit_cost"`
}

const salesSelect = `
SELECT
	s.id::text AS sale_id,
	COALESCE(s.customer_id::text, '') AS customer_id,
	COALESCE(c.name, '') AS customer_name,
	COALESCE(s.user_id::text, '') AS user_id,
	s.status,
	s.total::float8 AS total,
	s.created_at,
	COALESCE(si.product_id::text, '') AS product_id,
	COALESCE(p.name, '') AS product_name,
	COALESCE(p.category_id::text, '') AS category_id,
	COALESCE(cat.name, '') AS category_name,
	COALESCE(si.quantity, 0) AS quantity,
	COALESCE(si.unit_price, 0)::float8 AS unit_price,
	COALESCE(si.unit_cost, 0)::float8 AS unit_cost
FROM sales s
LEFT JOIN customers c ON c.id = s.customer_id
LEFT JOIN sale_items si ON si.sale_id = s.id
LEFT JOIN products p ON p.id = si.product_id
LEFT JOIN categories cat ON cat.id = p.category_id`

func (s *PostgresSource) FetchSales(ctx context.Context, predicate domain.Predicate) ([]domain.SaleRow, error) {
	where, args := buildSalesFilters(predicate)
	query := salesSelect + "\n" + where + "\nORDER BY s.created_at ASC, s.id ASC"

	var records []saleLineRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	return groupSaleLines(records), nil
}

// groupSaleLines folds joined sale/item rows back into sales. Rows arrive
// ordered by sale so each sale's lines are contiguous.
func groupSaleLines(records []saleLineRecord) []domain.SaleRow {
	sales := make([]domain.SaleRow, 0)
	index := make(map[string]int)
	for _, record := range records {
		position, ok := index[record.SaleID]
		if !ok {
			sales = append(sales, domain.SaleRow{
				ID:           record.SaleID,
				CustomerID:   record.CustomerID,
				CustomerName: record.CustomerName,
				UserID:       record.UserID,
				Status:       record.Status,
				Total:        record.Total,
				CreatedAt:    record.CreatedAt.UTC(),
				Items:        make([]domain.SaleItemRow, 0, 1),
			})
			position = len(sales) - 1
			index[record.SaleID] = position
		}
		if record.ProductID == "" {
			continue
		}
		sales[position].Items = append(sales[position].Items, domain.SaleItemRow{
			ProductID:    record.ProductID,
			ProductName:  record.ProductName,
			CategoryID:   record.CategoryID,
			CategoryName: record.CategoryName,
			Quantity:     record.Quantity,
			UnitPrice:    record.UnitPrice,
			UnitCost:     record.UnitCost,
		})
	}
	return sales
}

func buildSalesFilters(predicate domain.Predicate) (string, []any) {
	query := strings.Builder{}
	query.WriteString("WHERE 1=1")

	args := make([]any, 0, 7)
	argIndex := 1

	if predicate.From != nil {
		query.WriteString(fmt.Sprintf(" AND s.created_at >= $%d", argIndex))
		args = append(args, *predicate.From)
		argIndex++
	}
	if predicate.To != nil {
		query.WriteString(fmt.Sprintf(" AND s.created_at <= $%d", argIndex))
		args = append(args, *predicate.To)
		argIndex++
	}
	if predicate.CustomerID != "" {
		query.WriteString(fmt.Sprintf(" AND s.customer_id::text = $%d", argIndex))
		args = append(args, predicate.CustomerID)
		argIndex++
	}
	if predicate.UserID != "" {
		query.WriteString(fmt.Sprintf(" AND s.user_id::text = $%d", argIndex))
		args = append(args, predicate.UserID)
		argIndex++
	}
	if predicate.Status != "" {
		query.WriteString(fmt.Sprintf(" AND s.status = $%d", argIndex))
		args = append(args, predicate.Status)
		argIndex++
	}
	if predicate.ProductID != "" {
		query.WriteString(fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM sale_items fi WHERE fi.sale_id = s.id AND fi.product_id::text = $%d)", argIndex))
		args = append(args, predicate.ProductID)
		argIndex++
	}
	if predicate.CategoryID != "" {
		query.WriteString(fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM sale_items fi JOIN products fp ON fp.id = fi.product_id"+
				" WHERE fi.sale_id = s.id AND fp.category_id::text = $%d)", argIndex))
		args = append(args, predicate.CategoryID)
		argIndex++
	}
	if predicate.SupplierID != "" {
		query.WriteString(fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM sale_items fi JOIN products fp ON fp.id = fi.product_id"+
				" WHERE fi.sale_id = s.id AND fp.supplier_id::text = $%d)", argIndex))
		args = append(args, predicate.SupplierID)
	}

	return query.String(), args
}

type productRecord struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	SKU          string  `db:"sku"`
	CategoryID   string  `db:"category_id"`
	CategoryName string  `db:"category_name"`
	SupplierID   string  `db:"supplier_id"`
	Stock        int     `db:"stock"`
	MinStock     int     `db:"min_stock"`
	Price        float64 `db:"price"`
	Cost         float64 `db:"cost"`
}

func (s *PostgresSource) FetchProducts(ctx context.Context, predicate domain.Predicate) ([]domain.ProductRow, error) {
	query := strings.Builder{}
	query.WriteString(`
SELECT
	p.id::text AS id,
	p.name,
	COALESCE(p.sku, '') AS sku,
	COALESCE(p.category_id::text, '') AS category_id,
	COALESCE(cat.name, '') AS category_name,
	COALESCE(p.supplier_id::text, '') AS supplier_id,
	p.stock,
	p.min_stock,
	p.price::float8 AS price,
	p.cost::float8 AS cost
FROM products p
LEFT JOIN categories cat ON cat.id = p.category_id
WHERE p.active = TRUE`)

	args := make([]any, 0, 3)
	argIndex := 1
	if predicate.ProductID != "" {
		query.WriteString(fmt.Sprintf(" AND p.id::text = $%d", argIndex))
		args = append(args, predicate.ProductID)
		argIndex++
	}
	if predicate.CategoryID != "" {
		query.WriteString(fmt.Sprintf(" AND p.category_id::text = $%d", argIndex))
		args = append(args, predicate.CategoryID)
		argIndex++
	}
	if predicate.SupplierID != "" {
		query.WriteString(fmt.Sprintf(" AND p.supplier_id::text = $%d", argIndex))
		args = append(args, predicate.SupplierID)
	}
	query.WriteString("\nORDER BY p.name ASC, p.id ASC")

	var records []productRecord
	if err := s.db.SelectContext(ctx, &records, query.String(), args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}

	rows := make([]domain.ProductRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, domain.ProductRow(record))
	}
	return rows, nil
}

type customerRecord struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *PostgresSource) FetchCustomers(ctx context.Context, predicate domain.Predicate) ([]domain.CustomerRow, error) {
	query := `
SELECT c.id::text AS id, c.name, COALESCE(c.email, '') AS email, c.created_at
FROM customers c`
	args := make([]any, 0, 1)
	if predicate.CustomerID != "" {
		query += "\nWHERE c.id::text = $1"
		args = append(args, predicate.CustomerID)
	}
	query += "\nORDER BY c.created_at ASC, c.id ASC"

	var records []customerRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}

	rows := make([]domain.CustomerRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, domain.CustomerRow{
			ID:        record.ID,
			Name:      record.Name,
			Email:     record.Email,
			CreatedAt: record.CreatedAt.UTC(),
		})
	}
	return rows, nil
}

type movementRecord struct {
	ID          string    `db:"id"`
	ProductID   string    `db:"product_id"`
	ProductName string    `db:"product_name"`
	Type        string    `db:"type"`
	Quantity    int       `db:"quantity"`
	Reason      string    `db:"reason"`
	UserID      string    `db:"user_id"`
	CreatedAt   time.Time `db:"created_at"`
}

func (s *PostgresSource) FetchMovements(
	ctx context.Context,
	predicate domain.Predicate,
	limit int,
) ([]domain.MovementRow, error) {
	query := strings.Builder{}
	query.WriteString(`
SELECT
	m.id::text AS id,
	m.product_id::text AS product_id,
	COALESCE(p.name, '') AS product_name,
	m.type,
	m.quantity,
	COALESCE(m.reason, '') AS reason,
	COALESCE(m.user_id::text, '') AS user_id,
	m.created_at
FROM stock_movements m
LEFT JOIN products p ON p.id = m.product_id
WHERE 1=1`)

	args := make([]any, 0, 6)
	argIndex := 1
	if predicate.From != nil {
		query.WriteString(fmt.Sprintf(" AND m.created_at >= $%d", argIndex))
		args = append(args, *predicate.From)
		argIndex++
	}
	if predicate.To != nil {
		query.WriteString(fmt.Sprintf(" AND m.created_at <= $%d", argIndex))
		args = append(args, *predicate.To)
		argIndex++
	}
	if predicate.ProductID != "" {
		query.WriteString(fmt.Sprintf(" AND m.product_id::text = $%d", argIndex))
		args = append(args, predicate.ProductID)
		argIndex++
	}
	if predicate.CategoryID != "" {
		query.WriteString(fmt.Sprintf(" AND p.category_id::text = $%d", argIndex))
		args = append(args, predicate.CategoryID)
		argIndex++
	}
	if predicate.UserID != "" {
		query.WriteString(fmt.Sprintf(" AND m.user_id::text = $%d", argIndex))
		args = append(args, predicate.UserID)
		argIndex++
	}
	if limit <= 0 {
		limit = 50
	}
	query.WriteString(fmt.Sprintf("\nORDER BY m.created_at DESC, m.id DESC\nLIMIT $%d", argIndex))
	args = append(args, limit)

	var records []movementRecord
	if err := s.db.SelectContext(ctx, &records, query.String(), args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	rows := make([]domain.MovementRow, 0, len(records))
	for _, record := range records {
		row := domain.MovementRow(record)
		row.CreatedAt = row.CreatedAt.UTC()
		rows = append(rows, row)
	}
	return rows, nil
}

// CoveredThrough only counts closed days. The view is refreshed during the
// day, so a row for today is partial.
func (s *PostgresSource) CoveredThrough(ctx context.Context) (time.Time, bool, error) {
	today := domain.StartOfDay(s.now())
	var latest sql.NullTime
	if err := s.db.GetContext(ctx, &latest,
		"SELECT MAX(day) FROM daily_sales_totals WHERE day < $1::date", today); err != nil {
		return time.Time{}, false, fmt.Errorf("select aggregate coverage: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time.UTC(), true, nil
}

func (s *PostgresSource) FetchDailyAggregates(
	ctx context.Context,
	from, to time.Time,
) (domain.DailyAggregates, error) {
	aggregates := domain.DailyAggregates{}

	err := s.db.SelectContext(ctx, &aggregates.Totals, `
SELECT day, orders, revenue::float8 AS revenue, cost::float8 AS cost
FROM daily_sales_totals
WHERE day >= $1::date AND day <= $2::date
ORDER BY day ASC`, from, to)
	if err != nil {
		return domain.DailyAggregates{}, fmt.Errorf("select daily totals: %w", err)
	}

	err = s.db.SelectContext(ctx, &aggregates.Products, `
SELECT
	day,
	product_id::text AS product_id,
	product_name,
	COALESCE(category_id::text, '') AS category_id,
	COALESCE(category_name, '') AS category_name,
	quantity,
	revenue::float8 AS revenue,
	cost::float8 AS cost
FROM daily_product_sales
WHERE day >= $1::date AND day <= $2::date
ORDER BY day ASC, product_id ASC`, from, to)
	if err != nil {
		return domain.DailyAggregates{}, fmt.Errorf("select daily product totals: %w", err)
	}

	if len(aggregates.Totals) == 0 {
		return domain.DailyAggregates{}, domain.ErrAggregatesUnavailable
	}
	return aggregates, nil
}

func (s *PostgresSource) RefreshDailyAggregates(ctx context.Context) error {
	for _, view := range []string{"daily_sales_totals", "daily_product_sales"} {
		if _, err := s.db.ExecContext(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+view); err != nil {
			return fmt.Errorf("refresh %s: %w", view, err)
		}
	}
	return nil
}
