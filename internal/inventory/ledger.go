package inventory

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Catalog is the read-only view of the product ledger.
type Catalog interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	GetMany(ctx context.Context, ids []string) ([]domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	ListAvailable(ctx context.Context) ([]domain.Product, error)
	SearchByName(ctx context.Context, query string) ([]domain.Product, error)
	FilterByMaxCost(ctx context.Context, maxCost decimal.Decimal) ([]domain.Product, error)
}

// Ledger owns product stock. Reserve is the only operation that takes stock
// away, and it either decrements by exactly the requested amount or leaves
// the product untouched.
type Ledger interface {
	Catalog
	Reserve(ctx context.Context, id string, quantity int) (domain.Product, error)
	Restock(ctx context.Context, id string, delta int) (domain.Product, error)
	SetStock(ctx context.Context, id string, quantity int) (domain.Product, error)
	Create(ctx context.Context, p domain.Product) (domain.Product, error)
	Update(ctx context.Context, p domain.Product) (domain.Product, error)
	Delete(ctx context.Context, id string) error
}

func matchesName(p domain.Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Name), strings.ToLower(strings.TrimSpace(query)))
}

// sortProducts orders by name, then id, matching the SQL ORDER BY.
func sortProducts(products []domain.Product) {
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
}
