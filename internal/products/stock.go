package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// ApplyStockDelta changes one counter atomically; the WHERE clause keeps it
// non-negative under concurrent writers. A rejected sale decrement yields
// ErrInsufficientStock, any other rejection ErrNegativeStock.
func ApplyStockDelta(ctx context.Context, q db.Querier, productID uuid.UUID, gym tenant.Gym, delta int, reason MovementReason) (before, after int, err error) {
	err = q.QueryRow(ctx, `UPDATE product_stock SET qty = qty + $3
		WHERE product_id = $1 AND gym = $2 AND qty + $3 >= 0
		RETURNING qty`, productID, string(gym), delta).Scan(&after)
	if err == nil {
		return after - delta, after, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, err
	}
	var current int
	err = q.QueryRow(ctx, `SELECT qty FROM product_stock WHERE product_id = $1 AND gym = $2`, productID, string(gym)).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("products: %w: %s", shared.ErrNotFound, productID)
	}
	if err != nil {
		return 0, 0, err
	}
	if reason == ReasonSale {
		return current, current, fmt.Errorf("products: %w: %d available at %s, %d requested", shared.ErrInsufficientStock, current, gym, -delta)
	}
	return current, current, fmt.Errorf("products: %w: %d available at %s", shared.ErrNegativeStock, current, gym)
}

// InsertMovement appends a stock ledger row.
func InsertMovement(ctx context.Context, q db.Querier, m Movement) error {
	_, err := q.Exec(ctx, `INSERT INTO stock_movements
		(id, product_id, gym, delta, qty_before, qty_after, reason, ref_id, note, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)`,
		m.ID, m.ProductID, string(m.Gym), m.Delta, m.QtyBefore, m.QtyAfter, string(m.Reason),
		m.RefID, m.Note, m.ActorID, m.CreatedAt)
	return err
}
