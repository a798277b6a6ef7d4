package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Repository persists the catalog and its stock counters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional stock operations.
type TxRepository interface {
	ApplyStockDelta(ctx context.Context, productID uuid.UUID, gym tenant.Gym, delta int, reason MovementReason) (before, after int, err error)
	InsertMovement(ctx context.Context, m Movement) error
}

const productSelect = `SELECT p.id, p.name, p.type, p.price, COALESCE(p.description, ''), p.allow_installments,
	COALESCE(SUM(ps.qty) FILTER (WHERE ps.gym = 'Villas del Parque'), 0),
	COALESCE(SUM(ps.qty) FILTER (WHERE ps.gym = 'UAN'), 0),
	COALESCE(SUM(ps.qty) FILTER (WHERE ps.gym = 'Platinum'), 0),
	p.created_at, p.updated_at
	FROM products p LEFT JOIN product_stock ps ON ps.product_id = p.id`

const productGroup = ` GROUP BY p.id`

// WithTx wraps fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// List returns catalog items sorted by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var f db.Filter
	if filter.Type != nil {
		f.Add("p.type = ?", string(*filter.Type))
	}
	if filter.Search != "" {
		f.Add("p.name ILIKE ?", db.LikePattern(filter.Search))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products p "+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	limit := f.Bind(page.PerPage)
	offset := f.Bind(page.Offset())
	query := fmt.Sprintf(`%s %s %s ORDER BY p.name, p.id LIMIT %s OFFSET %s`,
		productSelect, f.Where(), productGroup, limit, offset)
	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Get loads one product with its counters.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	return GetProduct(ctx, r.pool, id)
}

// GetProduct loads one product using q, so sales can read inside their own
// transaction.
func GetProduct(ctx context.Context, q db.Querier, id uuid.UUID) (Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, productSelect+` WHERE p.id = $1`+productGroup, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("products: %w: %s", shared.ErrNotFound, id)
	}
	return p, err
}

// Create inserts the product and one counter per gym.
func (r *Repository) Create(ctx context.Context, p Product) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO products
			(id, name, type, price, description, allow_installments, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
			p.ID, p.Name, string(p.Type), p.Price, p.Description, p.AllowInstallments, p.CreatedAt, p.UpdatedAt)
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("products: %w: %s already exists", shared.ErrDuplicate, p.Name)
		}
		if err != nil {
			return err
		}
		for _, gym := range tenant.Gyms() {
			if _, err := tx.Exec(ctx, `INSERT INTO product_stock (product_id, gym, qty) VALUES ($1, $2, $3)`,
				p.ID, string(gym), p.Stock.For(gym)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update writes catalog fields; counters change only through stock movements.
func (r *Repository) Update(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products
		SET name = $2, type = $3, price = $4, description = NULLIF($5, ''), allow_installments = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Name, string(p.Type), p.Price, p.Description, p.AllowInstallments, p.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("products: %w: %s already exists", shared.ErrDuplicate, p.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: %w: %s", shared.ErrNotFound, p.ID)
	}
	return nil
}

// Delete removes the product; counters and movements cascade and past sale
// lines keep their product name.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: %w: %s", shared.ErrNotFound, id)
	}
	return nil
}

// Movements returns the stock history newest first.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var f db.Filter
	f.Add("product_id = ?", filter.ProductID)
	if filter.Gym != nil {
		f.Add("gym = ?", string(*filter.Gym))
	}
	page := filter.Page.Normalize()
	limit := f.Bind(page.PerPage)
	offset := f.Bind(page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, product_id, gym, delta, qty_before, qty_after, reason,
		COALESCE(ref_id, ''), COALESCE(note, ''), actor_id, created_at
		FROM stock_movements %s ORDER BY created_at DESC, id LIMIT %s OFFSET %s`, f.Where(), limit, offset), f.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var (
			m           Movement
			gym, reason string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &gym, &m.Delta, &m.QtyBefore, &m.QtyAfter, &reason,
			&m.RefID, &m.Note, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Gym = tenant.Gym(gym)
		m.Reason = MovementReason(reason)
		out = append(out, m)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) ApplyStockDelta(ctx context.Context, productID uuid.UUID, gym tenant.Gym, delta int, reason MovementReason) (int, int, error) {
	return ApplyStockDelta(ctx, t.tx, productID, gym, delta, reason)
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	return InsertMovement(ctx, t.tx, m)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		ptype string
		v     [3]int
	)
	err := row.Scan(&p.ID, &p.Name, &ptype, &p.Price, &p.Description, &p.AllowInstallments,
		&v[0], &v[1], &v[2], &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.Type = Type(ptype)
	p.Stock = Stock{VillasDelParque: v[0], UAN: v[1], Platinum: v[2]}
	return p, nil
}

