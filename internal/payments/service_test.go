package payments

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/students"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

type memoryRepo struct {
	students map[uuid.UUID]students.Student
	payments map[uuid.UUID]Payment
	failNext error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		students: make(map[uuid.UUID]students.Student),
		payments: make(map[uuid.UUID]Payment),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	studentsSnap := maps.Clone(m.students)
	paymentsSnap := maps.Clone(m.payments)
	if err := fn(ctx, m); err != nil {
		m.students, m.payments = studentsSnap, paymentsSnap
		return err
	}
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, fmt.Errorf("payments: %w", shared.ErrNotFound)
	}
	return p, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Payment, int, error) {
	var out []Payment
	for _, p := range m.payments {
		if filter.Gym != nil && p.Gym != *filter.Gym {
			continue
		}
		if filter.StudentID != nil && p.StudentID != *filter.StudentID {
			continue
		}
		if filter.Method != nil && p.PaymentMethod != *filter.Method {
			continue
		}
		if filter.From != nil && p.PaymentDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && p.PaymentDate.After(*filter.To) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return out, len(out), nil
}

func (m *memoryRepo) StudentIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(m.students))
	for id := range m.students {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryRepo) GetStudentForUpdate(ctx context.Context, id uuid.UUID) (students.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return students.Student{}, fmt.Errorf("payments: student %w", shared.ErrNotFound)
	}
	return s, nil
}

func (m *memoryRepo) InsertPayment(ctx context.Context, p Payment) error {
	m.payments[p.ID] = p
	return nil
}

func (m *memoryRepo) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (Payment, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) DeletePayment(ctx context.Context, id uuid.UUID) error {
	delete(m.payments, id)
	return nil
}

func (m *memoryRepo) LatestPayment(ctx context.Context, studentID uuid.UUID) (*Payment, error) {
	var latest *Payment
	for _, p := range m.payments {
		if p.StudentID != studentID {
			continue
		}
		if latest == nil || p.PaymentDate.After(latest.PaymentDate) ||
			(p.PaymentDate.Equal(latest.PaymentDate) && p.CreatedAt.After(latest.CreatedAt)) {
			cp := p
			latest = &cp
		}
	}
	return latest, nil
}

func (m *memoryRepo) SetStudentCycle(ctx context.Context, studentID uuid.UUID, cycle students.Cycle, status *students.Status, at time.Time) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	s := m.students[studentID]
	s.LastPaymentDate = cycle.LastPaymentDate
	s.NextPaymentDate = cycle.NextPaymentDate
	if status != nil {
		s.Status = *status
	}
	s.UpdatedAt = at
	m.students[studentID] = s
	return nil
}

type countingInvalidator struct{ bumps int }

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

type metricsSpy struct{ total float64 }

func (m *metricsSpy) PaymentRecorded(gym, method string, amount float64) { m.total += amount }

var (
	now   = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	admin = tenant.Principal{UserID: 1, Username: "admin", Role: tenant.RoleAdmin}
	uan   = tenant.Principal{UserID: 2, Username: "front", Role: tenant.RoleStaff, AssignedGym: tenant.GymUAN}
)

func seedStudent(repo *memoryRepo, gym tenant.Gym, status students.Status) students.Student {
	s := students.Student{
		ID:             uuid.New(),
		Name:           "Ana",
		Gym:            gym,
		MembershipType: students.MembershipMonthly,
		Status:         status,
	}
	repo.students[s.ID] = s
	return s
}

func dateAt(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestRecordMovesCycleAndActivates(t *testing.T) {
	repo := newMemoryRepo()
	inv := &countingInvalidator{}
	spy := &metricsSpy{}
	svc := NewService(repo, nil, inv, shared.FixedClock(now), nil).WithMetrics(spy)
	student := seedStudent(repo, tenant.GymUAN, students.StatusOverdue)

	res, err := svc.Record(context.Background(), uan, RecordPaymentRequest{
		StudentID:     student.ID.String(),
		Amount:        15000,
		PaymentType:   "monthly",
		PaymentMethod: "cash",
		PaymentDate:   dateAt(2024, 1, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, tenant.GymUAN, res.Payment.Gym)
	assert.Equal(t, int64(2), res.Payment.ProcessedBy)
	assert.Equal(t, students.StatusActive, res.Student.Status)
	require.NotNil(t, res.Student.NextPaymentDate)
	assert.Equal(t, *dateAt(2024, 3, 2), *res.Student.NextPaymentDate)

	stored := repo.students[student.ID]
	assert.Equal(t, students.StatusActive, stored.Status)
	assert.Equal(t, *dateAt(2024, 1, 31), *stored.LastPaymentDate)
	assert.Equal(t, 1, inv.bumps)
	assert.Equal(t, 15000.0, spy.total)
}

func TestConsecutiveMonthlyPaymentsFollowDueDate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, shared.FixedClock(now), nil)
	student := seedStudent(repo, tenant.GymUAN, students.StatusActive)
	ctx := context.Background()

	first, err := svc.Record(ctx, uan, RecordPaymentRequest{
		StudentID: student.ID.String(), Amount: 15000, PaymentType: "monthly", PaymentMethod: "cash",
		PaymentDate: dateAt(2024, 1, 31),
	})
	require.NoError(t, err)
	require.NotNil(t, first.Student.NextPaymentDate)
	assert.Equal(t, *dateAt(2024, 3, 2), *first.Student.NextPaymentDate)

	second, err := svc.Record(ctx, uan, RecordPaymentRequest{
		StudentID: student.ID.String(), Amount: 15000, PaymentType: "monthly", PaymentMethod: "transfer",
		PaymentDate: first.Student.NextPaymentDate,
	})
	require.NoError(t, err)
	assert.Equal(t, *dateAt(2024, 3, 2), *second.Student.LastPaymentDate)
	assert.Equal(t, *dateAt(2024, 4, 2), *second.Student.NextPaymentDate)

	stored := repo.students[student.ID]
	assert.Equal(t, *dateAt(2024, 3, 2), *stored.LastPaymentDate)
	assert.Equal(t, *dateAt(2024, 4, 2), *stored.NextPaymentDate)
}

func TestRecordDefaultsDateToNow(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, shared.FixedClock(now), nil)
	student := seedStudent(repo, tenant.GymUAN, students.StatusActive)

	res, err := svc.Record(context.Background(), admin, RecordPaymentRequest{
		StudentID: student.ID.String(), Amount: 10, PaymentType: "weekly", PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, now, res.Payment.PaymentDate)
	assert.Equal(t, now.AddDate(0, 0, 7), *res.Student.NextPaymentDate)
}

func TestRecordValidationAndScope(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, shared.FixedClock(now), nil)
	foreign := seedStudent(repo, tenant.GymPlatinum, students.StatusActive)
	ctx := context.Background()

	_, err := svc.Record(ctx, uan, RecordPaymentRequest{StudentID: foreign.ID.String(), Amount: 10, PaymentType: "class", PaymentMethod: "cash"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, repo.payments)

	_, err = svc.Record(ctx, admin, RecordPaymentRequest{StudentID: uuid.NewString(), Amount: 10, PaymentType: "class", PaymentMethod: "cash"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Record(ctx, admin, RecordPaymentRequest{StudentID: foreign.ID.String(), Amount: 0, PaymentType: "class", PaymentMethod: "cash"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, admin, RecordPaymentRequest{StudentID: foreign.ID.String(), Amount: 1, PaymentType: "class", PaymentMethod: "bitcoin"})
	require.ErrorIs(t, err, shared.ErrValidation)

	for _, amount := range []float64{0.004, 10.005} {
		_, err = svc.Record(ctx, admin, RecordPaymentRequest{StudentID: foreign.ID.String(), Amount: amount, PaymentType: "class", PaymentMethod: "cash"})
		require.ErrorIs(t, err, shared.ErrValidation, amount)
	}
	assert.Empty(t, repo.payments)
}

func TestRecordRollsBackWhenStudentUpdateFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, shared.FixedClock(now), nil)
	student := seedStudent(repo, tenant.GymUAN, students.StatusInactive)
	repo.failNext = errors.New("connection reset")

	_, err := svc.Record(context.Background(), admin, RecordPaymentRequest{
		StudentID: student.ID.String(), Amount: 10, PaymentType: "weekly", PaymentMethod: "cash",
	})
	require.Error(t, err)
	assert.Empty(t, repo.payments)
	assert.Equal(t, students.StatusInactive, repo.students[student.ID].Status)
}

func TestBackdatedPaymentKeepsLatestCycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, shared.FixedClock(now), nil)
	student := seedStudent(repo, tenant.GymUAN, students.StatusActive)
	ctx := context.Background()

	_, err := svc.Record(ctx, admin, RecordPaymentRequest{StudentID: student.ID.String(), Amount: 10, PaymentType: "monthly", PaymentMethod: "cash", PaymentDate: dateAt(2024, 5, 1)})
	require.NoError(t, err)
	_, err = svc.Record(ctx, admin, RecordPaymentRequest{StudentID: student.ID.String(), Amount: 10, PaymentType: "monthly", PaymentMethod: "cash", PaymentDate: dateAt(2024, 4, 1)})
	require.NoError(t, err)

	assert.Equal(t, *dateAt(2024, 5, 1), *repo.students[student.ID].LastPaymentDate)
	assert.Equal(t, *dateAt(2024, 6, 1), *repo.students[student.ID].NextPaymentDate)
}

func TestDeleteRecomputesFromRemainingLatest(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, shared.FixedClock(now), nil)
	student := seedStudent(repo, tenant.GymUAN, students.StatusActive)
	ctx := context.Background()

	record := func(d *time.Time, kind string) Payment {
		res, err := svc.Record(ctx, uan, RecordPaymentRequest{StudentID: student.ID.String(), Amount: 10, PaymentType: kind, PaymentMethod: "cash", PaymentDate: d})
		require.NoError(t, err)
		return res.Payment
	}
	march := record(dateAt(2024, 3, 1), "monthly")
	april := record(dateAt(2024, 4, 1), "weekly")

	// Deleting the older one leaves the cycle untouched.
	cycle, err := svc.Delete(ctx, uan, march.ID)
	require.NoError(t, err)
	assert.Equal(t, *dateAt(2024, 4, 8), *cycle.NextPaymentDate)

	record(dateAt(2024, 2, 1), "monthly")
	cycle, err = svc.Delete(ctx, uan, april.ID)
	require.NoError(t, err)
	assert.Equal(t, *dateAt(2024, 2, 1), *cycle.LastPaymentDate)
	assert.Equal(t, *dateAt(2024, 3, 1), *cycle.NextPaymentDate)

	for id := range maps.Clone(repo.payments) {
		_, err := svc.Delete(ctx, admin, id)
		require.NoError(t, err)
	}
	stored := repo.students[student.ID]
	assert.Nil(t, stored.LastPaymentDate)
	assert.Nil(t, stored.NextPaymentDate)
}

func TestDeleteAndGetForeignGymIsForbidden(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, shared.FixedClock(now), nil)
	student := seedStudent(repo, tenant.GymPlatinum, students.StatusActive)
	ctx := context.Background()

	res, err := svc.Record(ctx, admin, RecordPaymentRequest{StudentID: student.ID.String(), Amount: 10, PaymentType: "class", PaymentMethod: "transfer"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, uan, res.Payment.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Delete(ctx, uan, res.Payment.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Len(t, repo.payments, 1)

	items, page, err := svc.List(ctx, uan, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, page.Total)
}

func TestReconcileRepairsDrift(t *testing.T) {
	repo := newMemoryRepo()
	inv := &countingInvalidator{}
	svc := NewService(repo, nil, inv, shared.FixedClock(now), nil)
	student := seedStudent(repo, tenant.GymUAN, students.StatusActive)
	clean := seedStudent(repo, tenant.GymUAN, students.StatusActive)
	ctx := context.Background()

	_, err := svc.Record(ctx, admin, RecordPaymentRequest{StudentID: student.ID.String(), Amount: 10, PaymentType: "monthly", PaymentMethod: "cash", PaymentDate: dateAt(2024, 4, 1)})
	require.NoError(t, err)

	drifted := repo.students[student.ID]
	drifted.NextPaymentDate = dateAt(2030, 1, 1)
	repo.students[student.ID] = drifted

	report, err := svc.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Fixed)
	assert.Equal(t, []uuid.UUID{student.ID}, report.Drifted)
	assert.Equal(t, *dateAt(2024, 5, 1), *repo.students[student.ID].NextPaymentDate)

	report, err = svc.Reconcile(ctx, &clean.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Zero(t, report.Fixed)
}
