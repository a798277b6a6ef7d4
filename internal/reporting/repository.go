package reporting

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
)

// Repository runs the aggregate queries behind the summaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PaymentTotals groups payments by type or method within the filter window.
func (r *Repository) PaymentTotals(ctx context.Context, filter Filter) ([]Group, error) {
	column := "payment_type"
	if filter.GroupBy == GroupByMethod {
		column = "payment_method"
	}
	return r.totals(ctx, "payments", column, "amount", "payment_date", filter)
}

// SaleTotals groups sales by payment method within the filter window.
func (r *Repository) SaleTotals(ctx context.Context, filter Filter) ([]Group, error) {
	return r.totals(ctx, "sales", "payment_method", "total", "created_at", filter)
}

func (r *Repository) totals(ctx context.Context, table, column, amount, dateColumn string, filter Filter) ([]Group, error) {
	var f db.Filter
	if filter.Gym != nil {
		f.Add("gym = ?", string(*filter.Gym))
	}
	if filter.From != nil {
		f.Add(dateColumn+" >= ?", *filter.From)
	}
	if filter.To != nil {
		f.Add(dateColumn+" <= ?", *filter.To)
	}
	query := fmt.Sprintf(`SELECT %[1]s, COALESCE(SUM(%[2]s), 0)::float8, COUNT(*)
		FROM %[3]s %[4]s GROUP BY %[1]s ORDER BY %[1]s`, column, amount, table, f.Where())
	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Group, error) {
		var g Group
		err := row.Scan(&g.Category, &g.Total, &g.Count)
		return g, err
	})
}
