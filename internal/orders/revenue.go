package orders

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Revenue sums the captured totals of all orders that were not cancelled.
// It reads only the orders passed in, so the same input always yields the
// same amount.
func Revenue(orders []domain.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		total = total.Add(o.Total())
	}
	return total
}

func RevenueByStatus(orders []domain.Order) map[domain.OrderStatus]decimal.Decimal {
	byStatus := make(map[domain.OrderStatus]decimal.Decimal)
	for _, o := range orders {
		byStatus[o.Status] = byStatus[o.Status].Add(o.Total())
	}
	return byStatus
}
