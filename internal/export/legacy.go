package export

import "github.com/iago/reports-back/internal/domain"

// legacyAliases exposes the camelCase field names older dashboard clients
// read. They duplicate canonical fields and are only emitted in JSON exports.
func legacyAliases(result domain.Result) map[string]any {
	switch r := result.(type) {
	case *domain.SalesReport:
		return map[string]any{
			"totalSales":        r.Summary.TotalSales,
			"totalRevenue":      r.Summary.TotalRevenue,
			"totalProfit":       r.Summary.TotalProfit,
			"averageOrderValue": r.Summary.AverageOrderValue,
			"profitMargin":      r.Summary.ProfitMargin,
			"topProducts":       r.ByProduct,
			"salesByDate":       r.ByDate,
		}
	case *domain.InventoryReport:
		return map[string]any{
			"totalProducts":   r.Summary.TotalProducts,
			"totalValue":      r.Summary.TotalValue,
			"lowStockCount":   r.Summary.LowStock,
			"outOfStockCount": r.Summary.OutOfStock,
			"lowStockItems":   r.LowStock,
		}
	case *domain.CustomerReport:
		return map[string]any{
			"totalCustomers":  r.Summary.TotalCustomers,
			"activeCustomers": r.Summary.ActiveCustomers,
			"retentionRate":   r.Summary.RetentionRate,
			"churnRate":       r.Summary.ChurnRate,
			"topCustomers":    r.TopCustomers,
		}
	case *domain.FinancialReport:
		return map[string]any{
			"totalRevenue": r.Summary.Revenue,
			"totalCost":    r.Summary.Cost,
			"grossProfit":  r.Summary.GrossProfit,
			"netProfit":    r.Summary.NetProfit,
			"profitMargin": r.Summary.NetMargin,
			"monthlyData":  r.ByMonth,
		}
	case *domain.ComparisonReport:
		return map[string]any{
			"revenueChange": r.Changes.Revenue,
			"ordersChange":  r.Changes.Orders,
			"profitChange":  r.Changes.Profit,
		}
	default:
		return map[string]any{}
	}
}
