package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	UserID string
	Status domain.OrderStatus
}

func (f Filter) matches(o domain.Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}

// DecideFunc picks the next status for an order while the store holds that
// order exclusively. Returning the current status leaves the order unchanged.
type DecideFunc func(current domain.Order) (domain.OrderStatus, error)

// Store persists orders. Quantity, product snapshot and creation time are
// fixed at Create; only the status changes afterwards.
type Store interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, filter Filter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, decide DecideFunc) (domain.Order, bool, error)
	Delete(ctx context.Context, id string) (domain.Order, error)
}

func validateNew(o domain.Order) error {
	if o.Quantity <= 0 || o.Quantity > domain.MaxQuantity {
		return fmt.Errorf("order quantity %d: %w", o.Quantity, domain.ErrInvalidQuantity)
	}
	if strings.TrimSpace(o.UserID) == "" {
		return fmt.Errorf("order user id is required: %w", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(o.ProductID) == "" {
		return fmt.Errorf("order product id is required: %w", domain.ErrInvalidRequest)
	}
	if o.UnitCost.IsNegative() {
		return fmt.Errorf("order unit cost %s: %w", o.UnitCost, domain.ErrInvalidProduct)
	}
	return nil
}
