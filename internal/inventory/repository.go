package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const productColumns = `id, name, cost, quantity, description, image_url, created_at, updated_at`

// PostgresLedger stores products in Postgres. Stock changes are single
// conditional UPDATE statements, so the row lock taken by the UPDATE is the
// only synchronization needed.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Cost, &p.Quantity, &p.Description, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Reserve takes stock in one conditional UPDATE. A request above
// MaxQuantity can never be met and skips the statement.
func (r *PostgresLedger) Reserve(ctx context.Context, id string, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, fmt.Errorf("reserve %d of product %s: %w", quantity, id, domain.ErrInvalidQuantity)
	}

	if quantity <= domain.MaxQuantity {
		p, err := scanProduct(r.db.QueryRowContext(ctx, `
			UPDATE products
			SET quantity = quantity - $2, updated_at = NOW()
			WHERE id = $1 AND quantity >= $2
			RETURNING `+productColumns,
			id, quantity))
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("reserve product %s: %w", id, err)
		}
	}

	available, err := r.quantity(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{}, fmt.Errorf("product %s: requested %d, available %d: %w", id, quantity, available, domain.ErrOutOfStock)
}

// Restock adds delta in bigint arithmetic so an overflowing delta is
// refused by the bounds check.
func (r *PostgresLedger) Restock(ctx context.Context, id string, delta int) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2::bigint, updated_at = NOW()
		WHERE id = $1 AND quantity + $2::bigint BETWEEN 0 AND $3
		RETURNING `+productColumns,
		id, delta, domain.MaxQuantity))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("restock product %s: %w", id, err)
	}

	current, err := r.quantity(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{}, fmt.Errorf("restock product %s by %d leaves %d: %w", id, delta, current+delta, domain.ErrInvalidQuantity)
}

func (r *PostgresLedger) SetStock(ctx context.Context, id string, quantity int) (domain.Product, error) {
	if quantity < 0 || quantity > domain.MaxQuantity {
		return domain.Product{}, fmt.Errorf("set product %s stock to %d: %w", id, quantity, domain.ErrInvalidQuantity)
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, quantity))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("set product %s stock: %w", id, err)
	}
	return p, nil
}

func (r *PostgresLedger) quantity(ctx context.Context, id string) (int, error) {
	var quantity int
	err := r.db.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = $1`, id).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get product %s quantity: %w", id, err)
	}
	return quantity, nil
}

func (r *PostgresLedger) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	created, err := scanProduct(r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, cost, quantity, description, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Cost, p.Quantity, p.Description, p.ImageURL))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.Product{}, fmt.Errorf("product %s: %w", p.ID, domain.ErrDuplicate)
		}
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (r *PostgresLedger) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}

	updated, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, cost = $3, quantity = $4, description = $5, image_url = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Cost, p.Quantity, p.Description, p.ImageURL))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", p.ID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product %s: %w", p.ID, err)
	}
	return updated, nil
}

func (r *PostgresLedger) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresLedger) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (r *PostgresLedger) List(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
}

func (r *PostgresLedger) ListAvailable(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE quantity > 0 ORDER BY name, id`)
}

func (r *PostgresLedger) SearchByName(ctx context.Context, query string) ([]domain.Product, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE name ILIKE $1 ORDER BY name, id`, pattern)
}

func (r *PostgresLedger) FilterByMaxCost(ctx context.Context, maxCost decimal.Decimal) ([]domain.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE cost <= $1 ORDER BY name, id`, maxCost)
}

// GetMany returns the products among ids that exist, in catalog order.
func (r *PostgresLedger) GetMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY name, id`, pq.Array(ids))
}

func (r *PostgresLedger) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
