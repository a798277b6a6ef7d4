package students

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

type memoryRepo struct {
	students map[uuid.UUID]Student
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{students: make(map[uuid.UUID]Student)}
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Student, int, error) {
	var out []Student
	for _, s := range r.students {
		if filter.Gym != nil && s.Gym != *filter.Gym {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	page := filter.Page.Normalize()
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Student, error) {
	s, ok := r.students[id]
	if !ok {
		return Student{}, fmt.Errorf("students: %w: %s", shared.ErrNotFound, id)
	}
	return s, nil
}

func (r *memoryRepo) Create(ctx context.Context, s Student) error {
	for _, existing := range r.students {
		if existing.Phone == s.Phone {
			return fmt.Errorf("students: %w", shared.ErrDuplicate)
		}
	}
	r.students[s.ID] = s
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, s Student) error {
	if _, ok := r.students[s.ID]; !ok {
		return fmt.Errorf("students: %w", shared.ErrNotFound)
	}
	r.students[s.ID] = s
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.students, id)
	return nil
}

func (r *memoryRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	for id, s := range r.students {
		if s.Status == StatusActive && s.NextPaymentDate != nil && s.NextPaymentDate.Before(asOf) {
			s.Status = StatusOverdue
			r.students[id] = s
			n++
		}
	}
	return n, nil
}

type recordingAudit struct {
	entries []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

var (
	now   = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	admin = tenant.Principal{UserID: 1, Username: "admin", Role: tenant.RoleAdmin}
	uan   = tenant.Principal{UserID: 2, Username: "front", Role: tenant.RoleStaff, AssignedGym: tenant.GymUAN}
)

func newTestService() (*Service, *memoryRepo, *recordingAudit, *countingInvalidator) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	inv := &countingInvalidator{}
	return NewService(repo, audit, inv, shared.FixedClock(now), nil), repo, audit, inv
}

func TestCreateStudentDefaultsToActiveAndOwnGym(t *testing.T) {
	svc, _, audit, _ := newTestService()
	ctx := context.Background()

	s, err := svc.Create(ctx, uan, CreateStudentRequest{Name: "  maría   gómez ", Phone: "11 5555 0000", MembershipType: "monthly"})
	require.NoError(t, err)
	assert.Equal(t, "María Gómez", s.Name)
	assert.Equal(t, "1155550000", s.Phone)
	assert.Equal(t, tenant.GymUAN, s.Gym)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, now, s.EnrollmentDate)
	assert.Nil(t, s.NextPaymentDate)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "student.create", audit.entries[0].Action)
}

func TestCreateStudentRejectsForeignGymAndDuplicates(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, uan, CreateStudentRequest{Name: "Ana", Phone: "1", Gym: "Platinum", MembershipType: "weekly"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(ctx, admin, CreateStudentRequest{Name: "Ana", Phone: "1", MembershipType: "weekly"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, admin, CreateStudentRequest{Name: "Ana", Phone: "1", Gym: "Platinum", MembershipType: "yearly"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, admin, CreateStudentRequest{Name: "Ana", Phone: "1", Gym: "Platinum", MembershipType: "weekly"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, CreateStudentRequest{Name: "Bea", Phone: "1", Gym: "UAN", MembershipType: "weekly"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestListNarrowsNonAdminsSilently(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	for i, gym := range []string{"UAN", "Platinum", "UAN", "Villas del Parque"} {
		_, err := svc.Create(ctx, admin, CreateStudentRequest{Name: fmt.Sprintf("student %c", 'd'-i), Phone: fmt.Sprint(i), Gym: gym, MembershipType: "class"})
		require.NoError(t, err)
	}

	platinum := tenant.GymPlatinum
	items, page, err := svc.List(ctx, uan, ListFilter{Gym: &platinum})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, page.Total)
	for _, s := range items {
		assert.Equal(t, tenant.GymUAN, s.Gym)
	}
	assert.Equal(t, "Student B", items[0].Name)

	items, _, err = svc.List(ctx, admin, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 4)

	items, _, err = svc.List(ctx, admin, ListFilter{Gym: &platinum})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, _, err = svc.List(ctx, admin, ListFilter{Search: "STUDENT A"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, tenant.GymVillasDelParque, items[0].Gym)
}

func TestTargetedAccessToForeignGymIsForbidden(t *testing.T) {
	svc, _, _, inv := newTestService()
	ctx := context.Background()

	s, err := svc.Create(ctx, admin, CreateStudentRequest{Name: "Ana", Phone: "1", Gym: "Platinum", MembershipType: "weekly"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, uan, s.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Update(ctx, uan, s.ID, UpdateStudentRequest{Name: strPtr("x")})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, uan, s.ID), shared.ErrForbidden)

	got, err := svc.Get(ctx, admin, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = svc.Get(ctx, admin, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, admin, s.ID))
	assert.Equal(t, 1, inv.bumps)
}

func TestUpdateMovingGymRequiresAdmin(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	s, err := svc.Create(ctx, uan, CreateStudentRequest{Name: "Ana", Phone: "1", MembershipType: "weekly"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, uan, s.ID, UpdateStudentRequest{Gym: strPtr("Platinum")})
	require.ErrorIs(t, err, shared.ErrForbidden)

	updated, err := svc.Update(ctx, uan, s.ID, UpdateStudentRequest{Status: strPtr("inactive"), MembershipType: strPtr("monthly")})
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)
	assert.Equal(t, MembershipMonthly, updated.MembershipType)

	moved, err := svc.Update(ctx, admin, s.ID, UpdateStudentRequest{Gym: strPtr("platinum")})
	require.NoError(t, err)
	assert.Equal(t, tenant.GymPlatinum, moved.Gym)
}

func TestMarkOverdue(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)
	repo.students[uuid.New()] = Student{Name: "Late", Status: StatusActive, NextPaymentDate: &past}
	repo.students[uuid.New()] = Student{Name: "Fine", Status: StatusActive, NextPaymentDate: &future}
	repo.students[uuid.New()] = Student{Name: "Gone", Status: StatusInactive, NextPaymentDate: &past}

	n, err := svc.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func strPtr(s string) *string { return &s }
