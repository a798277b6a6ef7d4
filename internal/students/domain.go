package students

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// MembershipType is the billing cycle a student pays for.
type MembershipType string

const (
	MembershipClass   MembershipType = "class"
	MembershipWeekly  MembershipType = "weekly"
	MembershipMonthly MembershipType = "monthly"
)

// Valid reports whether m is a known membership type.
func (m MembershipType) Valid() bool {
	switch m {
	case MembershipClass, MembershipWeekly, MembershipMonthly:
		return true
	}
	return false
}

// Status tracks whether the student is current on payments.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusOverdue  Status = "overdue"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusOverdue:
		return true
	}
	return false
}

// Student is an enrolled gym member.
type Student struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Phone           string         `json:"phone"`
	Gym             tenant.Gym     `json:"gym"`
	MembershipType  MembershipType `json:"membership_type"`
	Status          Status         `json:"status"`
	PhotoURL        string         `json:"photo_url,omitempty"`
	LastPaymentDate *time.Time     `json:"last_payment_date,omitempty"`
	NextPaymentDate *time.Time     `json:"next_payment_date,omitempty"`
	EnrollmentDate  time.Time      `json:"enrollment_date"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ListFilter narrows student listings.
type ListFilter struct {
	Gym    *tenant.Gym
	Status *Status
	Search string
	Page   shared.PageRequest
}

// CreateStudentRequest is the payload for enrolling a student.
type CreateStudentRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Phone          string `json:"phone" validate:"required,max=40"`
	Gym            string `json:"gym" validate:"omitempty,max=60"`
	MembershipType string `json:"membership_type" validate:"required,oneof=class weekly monthly"`
	PhotoURL       string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// UpdateStudentRequest carries optional changes. Payment dates are owned by
// the payment ledger and cannot be set here.
type UpdateStudentRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,min=1,max=40"`
	Gym            *string `json:"gym,omitempty" validate:"omitempty,max=60"`
	MembershipType *string `json:"membership_type,omitempty" validate:"omitempty,oneof=class weekly monthly"`
	Status         *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive overdue"`
	PhotoURL       *string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// Cycle is the membership due-date state derived from payments.
type Cycle struct {
	LastPaymentDate *time.Time
	NextPaymentDate *time.Time
}

// NormalizeName trims, collapses inner whitespace and title-cases a person's name.
func NormalizeName(raw string) string {
	return cases.Title(language.Spanish).String(strings.Join(strings.Fields(raw), " "))
}

func normalizePhone(raw string) string {
	return strings.Join(strings.Fields(raw), "")
}

func parseMembership(raw string) (MembershipType, error) {
	m := MembershipType(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown membership type %q", shared.ErrValidation, raw)
	}
	return m, nil
}

// ParseStatus validates a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrValidation, raw)
	}
	return s, nil
}
