package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Method is how a sale was settled.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodInstallments Method = "installments"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodInstallments:
		return true
	}
	return false
}

// ParseMethod validates a sale method string.
func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown sale method %q", shared.ErrValidation, raw)
	}
	return m, nil
}

// Item is one sale line.
type Item struct {
	ProductID   uuid.UUID  `json:"product_id"`
	ProductName string     `json:"product_name"`
	Gym         tenant.Gym `json:"gym"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	Subtotal    float64    `json:"subtotal"`
}

// Installment is one scheduled part payment.
type Installment struct {
	ID       uuid.UUID  `json:"id"`
	Number   int        `json:"number"`
	Amount   float64    `json:"amount"`
	DueDate  time.Time  `json:"due_date"`
	Paid     bool       `json:"paid"`
	PaidDate *time.Time `json:"paid_date,omitempty"`
}

// Sale is a recorded product sale.
type Sale struct {
	ID            uuid.UUID     `json:"id"`
	Items         []Item        `json:"items"`
	Total         float64       `json:"total"`
	Gym           tenant.Gym    `json:"gym"`
	PaymentMethod Method        `json:"payment_method"`
	CustomerID    *uuid.UUID    `json:"customer_id,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	ProcessedBy   int64         `json:"processed_by"`
	Installments  []Installment `json:"installments,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// LineInput requests a quantity of one product.
type LineInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// InstallmentInput schedules one part payment.
type InstallmentInput struct {
	Amount  float64   `json:"amount" validate:"gt=0"`
	DueDate time.Time `json:"due_date" validate:"required"`
}

// RecordSaleRequest is the payload for recording a sale.
type RecordSaleRequest struct {
	Gym           string             `json:"gym,omitempty"`
	Items         []LineInput        `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=cash card installments"`
	CustomerID    string             `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	Installments  []InstallmentInput `json:"installments,omitempty" validate:"omitempty,dive"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	Gym        *tenant.Gym
	Method     *Method
	CustomerID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Page       shared.PageRequest
}

// Customer is the student a sale may be attributed to.
type Customer struct {
	ID   uuid.UUID
	Name string
	Gym  tenant.Gym
}

