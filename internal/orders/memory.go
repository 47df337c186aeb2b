package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type orderEntry struct {
	mu      sync.Mutex
	order   domain.Order
	seq     uint64
	removed bool
}

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*orderEntry
	seq    uint64
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*orderEntry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if err := validateNew(order); err != nil {
		return domain.Order{}, err
	}

	order.ID = uuid.New().String()
	order.Status = domain.OrderStatusPending
	order.CreatedAt = s.now()
	order.UpdatedAt = order.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.orders[order.ID] = &orderEntry{order: order, seq: s.seq}
	return order, nil
}

func (s *MemoryStore) entry(id string) (*orderEntry, error) {
	s.mu.RLock()
	e, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	e, err := s.entry(id)
	if err != nil {
		return domain.Order{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return e.order, nil
}

// List returns matching orders, newest first.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*orderEntry, 0, len(s.orders))
	for _, e := range s.orders {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	type ranked struct {
		order domain.Order
		seq   uint64
	}
	matched := make([]ranked, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		o, seq, removed := e.order, e.seq, e.removed
		e.mu.Unlock()
		if !removed && filter.matches(o) {
			matched = append(matched, ranked{order: o, seq: seq})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].order.CreatedAt.Equal(matched[j].order.CreatedAt) {
			return matched[i].order.CreatedAt.After(matched[j].order.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	orders := make([]domain.Order, len(matched))
	for i, m := range matched {
		orders[i] = m.order
	}
	return orders, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, decide DecideFunc) (domain.Order, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, false, err
	}
	e, err := s.entry(id)
	if err != nil {
		return domain.Order{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return domain.Order{}, false, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	next, err := decide(e.order)
	if err != nil {
		return domain.Order{}, false, err
	}
	if next == e.order.Status {
		return e.order, false, nil
	}
	e.order.Status = next
	e.order.UpdatedAt = s.now()
	return e.order, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	s.mu.Lock()
	e, ok := s.orders[id]
	delete(s.orders, id)
	s.mu.Unlock()
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	return e.order, nil
}
