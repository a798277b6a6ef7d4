package students

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Repository persists students in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Columns is the canonical select list for ScanStudent.
const Columns = `id, name, phone, gym, membership_type, status, photo_url,
	last_payment_date, next_payment_date, enrollment_date, created_at, updated_at`

// List returns a page of students sorted by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Student, int, error) {
	var f db.Filter
	if filter.Gym != nil {
		f.Add("gym = ?", string(*filter.Gym))
	}
	if filter.Status != nil {
		f.Add("status = ?", string(*filter.Status))
	}
	if filter.Search != "" {
		f.Add("name ILIKE ?", db.LikePattern(filter.Search))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students "+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	limit := f.Bind(page.PerPage)
	offset := f.Bind(page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM students %s ORDER BY name, id LIMIT %s OFFSET %s`,
		Columns, f.Where(), limit, offset)
	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		s, err := ScanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Get loads a student by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM students WHERE id = $1`, id)
	s, err := ScanStudent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Student{}, fmt.Errorf("students: %w: %s", shared.ErrNotFound, id)
		}
		return Student{}, err
	}
	return s, nil
}

// Create inserts a student; a phone already in use yields ErrDuplicate.
func (r *Repository) Create(ctx context.Context, s Student) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO students (`+Columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.Name, s.Phone, string(s.Gym), string(s.MembershipType), string(s.Status), s.PhotoURL,
		s.LastPaymentDate, s.NextPaymentDate, s.EnrollmentDate, s.CreatedAt, s.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("students: %w: phone %s already registered", shared.ErrDuplicate, s.Phone)
	}
	return err
}

// Update writes the editable columns. Payment dates are left untouched.
func (r *Repository) Update(ctx context.Context, s Student) error {
	tag, err := r.pool.Exec(ctx, `UPDATE students
		SET name = $2, phone = $3, gym = $4, membership_type = $5, status = $6, photo_url = $7, updated_at = $8
		WHERE id = $1`,
		s.ID, s.Name, s.Phone, string(s.Gym), string(s.MembershipType), string(s.Status), s.PhotoURL, s.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("students: %w: phone %s already registered", shared.ErrDuplicate, s.Phone)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("students: %w: %s", shared.ErrNotFound, s.ID)
	}
	return nil
}

// Delete removes the student and its payments in one transaction. Sales keep
// their rows; the customer reference is cleared by the foreign key.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE student_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("students: %w: %s", shared.ErrNotFound, id)
		}
		return nil
	})
}

// MarkOverdue moves active students past their due date to overdue.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE students SET status = $1, updated_at = $2
		WHERE status = $3 AND next_payment_date IS NOT NULL AND next_payment_date < $2`,
		string(StatusOverdue), asOf, string(StatusActive))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ScanStudent reads one row selected with Columns.
func ScanStudent(row pgx.Row) (Student, error) {
	var (
		s                        Student
		gym, membership, status  string
		photo                    *string
		lastPayment, nextPayment *time.Time
	)
	err := row.Scan(&s.ID, &s.Name, &s.Phone, &gym, &membership, &status, &photo,
		&lastPayment, &nextPayment, &s.EnrollmentDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Student{}, err
	}
	s.Gym = tenant.Gym(gym)
	s.MembershipType = MembershipType(membership)
	s.Status = Status(status)
	if photo != nil {
		s.PhotoURL = *photo
	}
	s.LastPaymentDate = lastPayment
	s.NextPaymentDate = nextPayment
	return s, nil
}
