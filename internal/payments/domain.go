package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/students"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Method is how a membership payment was settled.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer:
		return true
	}
	return false
}

// Payment is one membership payment.
type Payment struct {
	ID            uuid.UUID               `json:"id"`
	StudentID     uuid.UUID               `json:"student_id"`
	StudentName   string                  `json:"student_name,omitempty"`
	Amount        float64                 `json:"amount"`
	PaymentType   students.MembershipType `json:"payment_type"`
	PaymentMethod Method                  `json:"payment_method"`
	Gym           tenant.Gym              `json:"gym"`
	ProcessedBy   int64                   `json:"processed_by"`
	PaymentDate   time.Time               `json:"payment_date"`
	Comments      string                  `json:"comments,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// RecordPaymentRequest is the payload for recording a payment.
type RecordPaymentRequest struct {
	StudentID     string     `json:"student_id" validate:"required,uuid"`
	Amount        float64    `json:"amount" validate:"gt=0"`
	PaymentType   string     `json:"payment_type" validate:"required,oneof=class weekly monthly"`
	PaymentMethod string     `json:"payment_method" validate:"required,oneof=cash card transfer"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
	Comments      string     `json:"comments,omitempty" validate:"max=500"`
}

// ListFilter narrows payment listings.
type ListFilter struct {
	Gym       *tenant.Gym
	StudentID *uuid.UUID
	Type      *students.MembershipType
	Method    *Method
	From      *time.Time
	To        *time.Time
	Page      shared.PageRequest
}

// Result is a recorded payment together with the student it updated.
type Result struct {
	Payment Payment          `json:"payment"`
	Student students.Student `json:"student"`
}

// ReconcileReport summarises a cycle reconciliation run.
type ReconcileReport struct {
	Checked int         `json:"checked"`
	Fixed   int         `json:"fixed"`
	Drifted []uuid.UUID `json:"drifted,omitempty"`
}

// ParseMethod validates a method string.
func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, raw)
	}
	return m, nil
}

// ParseType validates a payment type string.
func ParseType(raw string) (students.MembershipType, error) {
	t := students.MembershipType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown payment type %q", shared.ErrValidation, raw)
	}
	return t, nil
}
