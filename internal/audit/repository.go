package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
)

// PGRepository reads audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline returns rows newest first. limit <= 0 means no limit.
func (r *PGRepository) Timeline(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var f db.Filter
	if filters.From != nil {
		f.Add("a.occurred_at >= ?", *filters.From)
	}
	if filters.To != nil {
		f.Add("a.occurred_at <= ?", *filters.To)
	}
	if filters.ActorID > 0 {
		f.Add("a.actor_id = ?", filters.ActorID)
	}
	if filters.Entity != "" {
		f.Add("a.entity = ?", filters.Entity)
	}
	if filters.EntityID != "" {
		f.Add("a.entity_id = ?", filters.EntityID)
	}
	if filters.Action != "" {
		f.Add("a.action = ?", filters.Action)
	}
	if filters.Gym != nil {
		f.Add("a.gym = ?", *filters.Gym)
	}
	query := `SELECT a.id, a.occurred_at, a.actor_id, COALESCE(u.username, ''), a.action, a.entity, a.entity_id,
		COALESCE(a.gym, ''), a.meta
		FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id ` + f.Where() + ` ORDER BY a.occurred_at DESC, a.id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", f.Bind(limit), f.Bind(offset))
	}
	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			t    TimelineRow
			meta []byte
		)
		if err := row.Scan(&t.ID, &t.At, &t.ActorID, &t.Actor, &t.Action, &t.Entity, &t.EntityID, &t.Gym, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &t.Meta); err != nil {
				return TimelineRow{}, fmt.Errorf("audit: decode meta %d: %w", t.ID, err)
			}
		}
		return t, nil
	})
}
