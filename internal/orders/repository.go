package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const orderColumns = `id, user_id, product_id, product_name, unit_cost, quantity, status, created_at, updated_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.ProductName, &o.UnitCost, &o.Quantity, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *PostgresStore) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := validateNew(order); err != nil {
		return domain.Order{}, err
	}

	order.ID = uuid.New().String()
	order.Status = domain.OrderStatusPending
	order.CreatedAt = time.Now().UTC()

	created, err := scanOrder(r.db.QueryRowContext(ctx, `
		INSERT INTO orders (id, user_id, product_id, product_name, unit_cost, quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+orderColumns,
		order.ID, order.UserID, order.ProductID, order.ProductName, order.UnitCost, order.Quantity, order.Status, order.CreatedAt))
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	return created, nil
}

func (r *PostgresStore) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (r *PostgresStore) List(ctx context.Context, filter Filter) ([]domain.Order, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus locks the order row for the duration of decide, so concurrent
// transitions of one order are applied one after another.
func (r *PostgresStore) UpdateStatus(ctx context.Context, id string, decide DecideFunc) (domain.Order, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("begin status update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, false, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("lock order %s: %w", id, err)
	}

	next, err := decide(current)
	if err != nil {
		return domain.Order{}, false, err
	}
	if next == current.Status {
		return current, false, nil
	}

	updated, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns,
		id, next))
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("update order %s status: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, false, fmt.Errorf("commit order %s status: %w", id, err)
	}
	return updated, true, nil
}

func (r *PostgresStore) Delete(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `DELETE FROM orders WHERE id = $1 RETURNING `+orderColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("delete order %s: %w", id, err)
	}
	return o, nil
}
