package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type productEntry struct {
	mu      sync.Mutex
	product domain.Product
	removed bool
}

// MemoryLedger keeps products in process. The map lock only guards which
// products exist; stock changes take the product's own lock, so products
// never contend with each other.
type MemoryLedger struct {
	mu       sync.RWMutex
	products map[string]*productEntry
	now      func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		products: make(map[string]*productEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLedger) entry(id string) (*productEntry, error) {
	l.mu.RLock()
	e, ok := l.products[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

// mutate applies fn to a copy of the product under its lock and commits the
// copy only when fn succeeds.
func (l *MemoryLedger) mutate(ctx context.Context, id string, fn func(p *domain.Product) error) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	e, err := l.entry(id)
	if err != nil {
		return domain.Product{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	next := e.product
	if err := fn(&next); err != nil {
		return domain.Product{}, err
	}
	next.UpdatedAt = l.now()
	e.product = next
	return next, nil
}

func (l *MemoryLedger) Reserve(ctx context.Context, id string, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, fmt.Errorf("reserve %d of product %s: %w", quantity, id, domain.ErrInvalidQuantity)
	}
	return l.mutate(ctx, id, func(p *domain.Product) error {
		if p.Quantity < quantity {
			return fmt.Errorf("product %s: requested %d, available %d: %w", id, quantity, p.Quantity, domain.ErrOutOfStock)
		}
		p.Quantity -= quantity
		return nil
	})
}

func (l *MemoryLedger) Restock(ctx context.Context, id string, delta int) (domain.Product, error) {
	return l.mutate(ctx, id, func(p *domain.Product) error {
		if next := p.Quantity + delta; next < 0 || next > domain.MaxQuantity {
			return fmt.Errorf("restock product %s by %d leaves %d: %w", id, delta, next, domain.ErrInvalidQuantity)
		}
		p.Quantity += delta
		return nil
	})
}

func (l *MemoryLedger) SetStock(ctx context.Context, id string, quantity int) (domain.Product, error) {
	if quantity < 0 || quantity > domain.MaxQuantity {
		return domain.Product{}, fmt.Errorf("set product %s stock to %d: %w", id, quantity, domain.ErrInvalidQuantity)
	}
	return l.mutate(ctx, id, func(p *domain.Product) error {
		p.Quantity = quantity
		return nil
	})
}

func (l *MemoryLedger) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = l.now()
	p.UpdatedAt = p.CreatedAt

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.products[p.ID]; exists {
		return domain.Product{}, fmt.Errorf("product %s: %w", p.ID, domain.ErrDuplicate)
	}
	l.products[p.ID] = &productEntry{product: p}
	return p, nil
}

func (l *MemoryLedger) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	return l.mutate(ctx, p.ID, func(cur *domain.Product) error {
		cur.Name = p.Name
		cur.Cost = p.Cost
		cur.Quantity = p.Quantity
		cur.Description = p.Description
		cur.ImageURL = p.ImageURL
		return nil
	})
}

func (l *MemoryLedger) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	e, ok := l.products[id]
	delete(l.products, id)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}

	// Reservations that fetched the entry before removal must see it gone.
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	e, err := l.entry(id)
	if err != nil {
		return domain.Product{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return e.product, nil
}

func (l *MemoryLedger) List(ctx context.Context) ([]domain.Product, error) {
	return l.filter(ctx, func(domain.Product) bool { return true })
}

func (l *MemoryLedger) GetMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return l.filter(ctx, func(p domain.Product) bool {
		_, ok := wanted[p.ID]
		return ok
	})
}

func (l *MemoryLedger) ListAvailable(ctx context.Context) ([]domain.Product, error) {
	return l.filter(ctx, domain.Product.Available)
}

func (l *MemoryLedger) SearchByName(ctx context.Context, query string) ([]domain.Product, error) {
	return l.filter(ctx, func(p domain.Product) bool { return matchesName(p, query) })
}

func (l *MemoryLedger) FilterByMaxCost(ctx context.Context, maxCost decimal.Decimal) ([]domain.Product, error) {
	return l.filter(ctx, func(p domain.Product) bool { return p.Cost.LessThanOrEqual(maxCost) })
}

func (l *MemoryLedger) filter(ctx context.Context, keep func(domain.Product) bool) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	entries := make([]*productEntry, 0, len(l.products))
	for _, e := range l.products {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	products := make([]domain.Product, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		p, removed := e.product, e.removed
		e.mu.Unlock()
		if !removed && keep(p) {
			products = append(products, p)
		}
	}
	sortProducts(products)
	return products, nil
}
