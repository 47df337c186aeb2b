package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest stock count or order quantity a product holds.
const MaxQuantity = math.MaxInt32

// CostScale is the number of decimal places a cost may carry.
const CostScale = 2

// maxCost bounds cost to what NUMERIC(12, 2) stores.
var maxCost = decimal.New(1, 10)

// Product is a catalog entry. Quantity is the authoritative stock count.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Cost        decimal.Decimal `json:"cost"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p Product) Available() bool {
	return p.Quantity > 0
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidProduct)
	}
	if p.Cost.IsNegative() {
		return fmt.Errorf("cost %s is negative: %w", p.Cost, ErrInvalidProduct)
	}
	if !p.Cost.Equal(p.Cost.Truncate(CostScale)) {
		return fmt.Errorf("cost %s has more than %d decimal places: %w", p.Cost, CostScale, ErrInvalidProduct)
	}
	if p.Cost.GreaterThanOrEqual(maxCost) {
		return fmt.Errorf("cost %s is too large: %w", p.Cost, ErrInvalidProduct)
	}
	if p.Quantity < 0 || p.Quantity > MaxQuantity {
		return fmt.Errorf("quantity %d is out of range: %w", p.Quantity, ErrInvalidProduct)
	}
	return nil
}
