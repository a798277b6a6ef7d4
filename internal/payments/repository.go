package payments

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
	"github.com/gymdesk/gymdesk/internal/students"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Repository persists payments and the student cycle they drive.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	GetStudentForUpdate(ctx context.Context, id uuid.UUID) (students.Student, error)
	InsertPayment(ctx context.Context, p Payment) error
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	LatestPayment(ctx context.Context, studentID uuid.UUID) (*Payment, error)
	SetStudentCycle(ctx context.Context, studentID uuid.UUID, cycle students.Cycle, status *students.Status, at time.Time) error
}

const paymentColumns = `p.id, p.student_id, COALESCE(s.name, ''), p.amount, p.payment_type, p.payment_method,
	p.gym, p.processed_by, p.payment_date, COALESCE(p.comments, ''), p.created_at`

const paymentFrom = `FROM payments p LEFT JOIN students s ON s.id = p.student_id`

// WithTx wraps fn in a read-committed transaction; the student row lock
// serialises writers for one student.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads one payment.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	return getPayment(ctx, r.pool, id, false)
}

// List returns payments newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Payment, int, error) {
	var f db.Filter
	if filter.Gym != nil {
		f.Add("p.gym = ?", string(*filter.Gym))
	}
	if filter.StudentID != nil {
		f.Add("p.student_id = ?", *filter.StudentID)
	}
	if filter.Type != nil {
		f.Add("p.payment_type = ?", string(*filter.Type))
	}
	if filter.Method != nil {
		f.Add("p.payment_method = ?", string(*filter.Method))
	}
	if filter.From != nil {
		f.Add("p.payment_date >= ?", *filter.From)
	}
	if filter.To != nil {
		f.Add("p.payment_date <= ?", *filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+paymentFrom+" "+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	limit := f.Bind(page.PerPage)
	offset := f.Bind(page.Offset())
	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY p.payment_date DESC, p.created_at DESC LIMIT %s OFFSET %s`,
		paymentColumns, paymentFrom, f.Where(), limit, offset)
	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// StudentIDs lists every student id for reconciliation sweeps.
func (r *Repository) StudentIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetStudentForUpdate(ctx context.Context, id uuid.UUID) (students.Student, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+students.Columns+` FROM students WHERE id = $1 FOR UPDATE`, id)
	s, err := students.ScanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return students.Student{}, fmt.Errorf("payments: student %w: %s", shared.ErrNotFound, id)
	}
	return s, err
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payments
		(id, student_id, amount, payment_type, payment_method, gym, processed_by, payment_date, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)`,
		p.ID, p.StudentID, p.Amount, string(p.PaymentType), string(p.PaymentMethod), string(p.Gym),
		p.ProcessedBy, p.PaymentDate, p.Comments, p.CreatedAt)
	return err
}

func (t *txRepo) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error) {
	return getPayment(ctx, t.tx, id, true)
}

func (t *txRepo) DeletePayment(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payments: %w: %s", shared.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) LatestPayment(ctx context.Context, studentID uuid.UUID) (*Payment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` `+paymentFrom+`
		WHERE p.student_id = $1
		ORDER BY p.payment_date DESC, p.created_at DESC, p.id DESC
		LIMIT 1`, studentID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txRepo) SetStudentCycle(ctx context.Context, studentID uuid.UUID, cycle students.Cycle, status *students.Status, at time.Time) error {
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	_, err := t.tx.Exec(ctx, `UPDATE students
		SET last_payment_date = $2, next_payment_date = $3, status = COALESCE($4, status), updated_at = $5
		WHERE id = $1`, studentID, cycle.LastPaymentDate, cycle.NextPaymentDate, statusArg, at)
	return err
}

func getPayment(ctx context.Context, q db.Querier, id uuid.UUID, lock bool) (Payment, error) {
	query := `SELECT ` + paymentColumns + ` ` + paymentFrom + ` WHERE p.id = $1`
	if lock {
		query += ` FOR UPDATE OF p`
	}
	p, err := scanPayment(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, fmt.Errorf("payments: %w: %s", shared.ErrNotFound, id)
	}
	return p, err
}

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p                  Payment
		ptype, method, gym string
	)
	err := row.Scan(&p.ID, &p.StudentID, &p.StudentName, &p.Amount, &ptype, &method,
		&gym, &p.ProcessedBy, &p.PaymentDate, &p.Comments, &p.CreatedAt)
	if err != nil {
		return Payment{}, err
	}
	p.PaymentType = students.MembershipType(ptype)
	p.PaymentMethod = Method(method)
	p.Gym = tenant.Gym(gym)
	return p, nil
}
