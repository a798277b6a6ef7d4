package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/products"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Repository persists sales with their lines and installments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	GetProduct(ctx context.Context, id uuid.UUID) (products.Product, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, gym tenant.Gym, qty int) (before, after int, err error)
	InsertMovement(ctx context.Context, m products.Movement) error
	InsertSale(ctx context.Context, sale Sale) error
	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error)
	MarkInstallmentPaid(ctx context.Context, installmentID uuid.UUID, paidAt time.Time) error
}

// WithTx wraps fn in a read-committed transaction so conditional stock
// decrements re-check the latest committed counter.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const saleColumns = `s.id, s.total, s.gym, s.payment_method, s.customer_id, COALESCE(st.name, ''), s.processed_by, s.created_at`

const saleFrom = `FROM sales s LEFT JOIN students st ON st.id = s.customer_id`

// Get loads one sale with lines and installments.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	return loadSale(ctx, r.pool, id, false)
}

// List returns sales newest first with their details.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	var f db.Filter
	if filter.Gym != nil {
		f.Add("s.gym = ?", string(*filter.Gym))
	}
	if filter.Method != nil {
		f.Add("s.payment_method = ?", string(*filter.Method))
	}
	if filter.CustomerID != nil {
		f.Add("s.customer_id = ?", *filter.CustomerID)
	}
	if filter.From != nil {
		f.Add("s.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		f.Add("s.created_at <= ?", *filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales s "+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	limit := f.Bind(page.PerPage)
	offset := f.Bind(page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s %s %s ORDER BY s.created_at DESC, s.id LIMIT %s OFFSET %s`,
		saleColumns, saleFrom, f.Where(), limit, offset), f.Args()...)
	if err != nil {
		return nil, 0, err
	}
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if err := loadDetails(ctx, r.pool, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetProduct(ctx context.Context, id uuid.UUID) (products.Product, error) {
	return products.GetProduct(ctx, t.tx, id)
}

func (t *txRepo) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	var (
		c   Customer
		gym string
	)
	err := t.tx.QueryRow(ctx, `SELECT id, name, gym FROM students WHERE id = $1`, id).Scan(&c.ID, &c.Name, &gym)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("sales: customer %w: %s", shared.ErrNotFound, id)
	}
	c.Gym = tenant.Gym(gym)
	return c, err
}

func (t *txRepo) DecrementStock(ctx context.Context, productID uuid.UUID, gym tenant.Gym, qty int) (int, int, error) {
	return products.ApplyStockDelta(ctx, t.tx, productID, gym, -qty, products.ReasonSale)
}

func (t *txRepo) InsertMovement(ctx context.Context, m products.Movement) error {
	return products.InsertMovement(ctx, t.tx, m)
}

func (t *txRepo) InsertSale(ctx context.Context, sale Sale) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO sales (id, total, gym, payment_method, customer_id, processed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sale.ID, sale.Total, string(sale.Gym), string(sale.PaymentMethod), sale.CustomerID, sale.ProcessedBy, sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("sales: insert sale: %w", err)
	}
	for i, item := range sale.Items {
		if _, err := t.tx.Exec(ctx, `INSERT INTO sale_items
			(sale_id, line_no, product_id, product_name, gym, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sale.ID, i+1, item.ProductID, item.ProductName, string(item.Gym), item.Quantity, item.UnitPrice, item.Subtotal); err != nil {
			return fmt.Errorf("sales: insert item: %w", err)
		}
	}
	for _, inst := range sale.Installments {
		if _, err := t.tx.Exec(ctx, `INSERT INTO sale_installments (id, sale_id, number, amount, due_date, paid, paid_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			inst.ID, sale.ID, inst.Number, inst.Amount, inst.DueDate, inst.Paid, inst.PaidDate); err != nil {
			return fmt.Errorf("sales: insert installment: %w", err)
		}
	}
	return nil
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error) {
	return loadSale(ctx, t.tx, id, true)
}

func (t *txRepo) MarkInstallmentPaid(ctx context.Context, installmentID uuid.UUID, paidAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sale_installments SET paid = TRUE, paid_date = $2 WHERE id = $1 AND NOT paid`, installmentID, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: installment already paid", shared.ErrValidation)
	}
	return nil
}

func loadSale(ctx context.Context, q db.Querier, id uuid.UUID, lock bool) (Sale, error) {
	query := `SELECT ` + saleColumns + ` ` + saleFrom + ` WHERE s.id = $1`
	if lock {
		query += ` FOR UPDATE OF s`
	}
	sale, err := scanSale(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, fmt.Errorf("sales: %w: %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return Sale{}, err
	}
	if err := loadDetails(ctx, q, &sale); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func loadDetails(ctx context.Context, q db.Querier, sale *Sale) error {
	rows, err := q.Query(ctx, `SELECT product_id, product_name, gym, quantity, unit_price, subtotal
		FROM sale_items WHERE sale_id = $1 ORDER BY line_no`, sale.ID)
	if err != nil {
		return err
	}
	sale.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var (
			item      Item
			productID *uuid.UUID
			gym       string
		)
		if err := row.Scan(&productID, &item.ProductName, &gym, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return Item{}, err
		}
		if productID != nil {
			item.ProductID = *productID
		}
		item.Gym = tenant.Gym(gym)
		return item, nil
	})
	if err != nil {
		return err
	}

	rows, err = q.Query(ctx, `SELECT id, number, amount, due_date, paid, paid_date
		FROM sale_installments WHERE sale_id = $1 ORDER BY number`, sale.ID)
	if err != nil {
		return err
	}
	sale.Installments, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Installment, error) {
		var inst Installment
		err := row.Scan(&inst.ID, &inst.Number, &inst.Amount, &inst.DueDate, &inst.Paid, &inst.PaidDate)
		return inst, err
	})
	return err
}

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s           Sale
		gym, method string
	)
	if err := row.Scan(&s.ID, &s.Total, &gym, &method, &s.CustomerID, &s.CustomerName, &s.ProcessedBy, &s.CreatedAt); err != nil {
		return Sale{}, err
	}
	s.Gym = tenant.Gym(gym)
	s.PaymentMethod = Method(method)
	return s, nil
}
