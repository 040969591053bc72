package domain

import "time"

// SaleRow is one sale with its line items as read from the transactional store.
type SaleRow struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	UserID       string        `json:"user_id"`
	Status       string        `json:"status"`
	Total        float64       `json:"total"`
	CreatedAt    time.Time     `json:"created_at"`
	Items        []SaleItemRow `json:"items"`
}

type SaleItemRow struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	UnitCost     float64 `json:"unit_cost"`
}

// Cost is the total cost of goods for the sale.
func (s SaleRow) Cost() float64 {
	var cost float64
	for _, item := range s.Items {
		cost += item.UnitCost * float64(item.Quantity)
	}
	return cost
}

type ProductRow struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	SupplierID   string  `json:"supplier_id"`
	Stock        int     `json:"stock"`
	MinStock     int     `json:"min_stock"`
	Price        float64 `json:"price"`
	Cost         float64 `json:"cost"`
}

type CustomerRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type MovementRow struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailyAggregates are precomputed per-day sales rollups.
type DailyAggregates struct {
	Totals   []DailyTotal
	Products []DailyProductTotal
}

type DailyTotal struct {
	Day     time.Time `db:"day"`
	Orders  int       `db:"orders"`
	Revenue float64   `db:"revenue"`
	Cost    float64   `db:"cost"`
}

type DailyProductTotal struct {
	Day          time.Time `db:"day"`
	ProductID    string    `db:"product_id"`
	ProductName  string    `db:"product_name"`
	CategoryID   string    `db:"category_id"`
	CategoryName string    `db:"category_name"`
	Quantity     int       `db:"quantity"`
	Revenue      float64   `db:"revenue"`
	Cost         float64   `db:"cost"`
}
