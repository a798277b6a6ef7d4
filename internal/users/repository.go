package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, name, password_hash, role, COALESCE(assigned_gym, ''), is_active, created_at, updated_at`

// List returns all accounts ordered by username.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
}

// FindByUsername loads an account by its case-insensitive username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	return u, err
}

// Get loads an account by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("users: %w: %d", shared.ErrNotFound, id)
	}
	return u, err
}

// Create inserts the account and fills its id.
func (r *Repository) Create(ctx context.Context, u *User) error {
	var gym *string
	if u.AssignedGym != "" {
		g := string(u.AssignedGym)
		gym = &g
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO users (username, name, password_hash, role, assigned_gym, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		u.Username, u.Name, u.PasswordHash, string(u.Role), gym, u.IsActive, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("users: %w: %s", shared.ErrDuplicate, u.Username)
	}
	return err
}

// SetActive toggles an account.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: %w: %d", shared.ErrNotFound, id)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u         User
		role, gym string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &role, &gym, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = tenant.Role(role)
	u.AssignedGym = tenant.Gym(gym)
	return u, nil
}
