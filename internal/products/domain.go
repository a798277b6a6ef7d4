package products

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Type classifies catalog items.
type Type string

const (
	TypeConsumable Type = "consumable"
	TypeEquipment  Type = "equipment"
	TypeClothing   Type = "clothing"
)

// Valid reports whether t is a known product type.
func (t Type) Valid() bool {
	switch t {
	case TypeConsumable, TypeEquipment, TypeClothing:
		return true
	}
	return false
}

// ParseType validates a product type string.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown product type %q", shared.ErrValidation, raw)
	}
	return t, nil
}

// Stock holds one counter per gym.
type Stock struct {
	VillasDelParque int `json:"villas_del_parque"`
	UAN             int `json:"uan"`
	Platinum        int `json:"platinum"`
}

// For returns the counter for gym.
func (s Stock) For(gym tenant.Gym) int {
	switch gym {
	case tenant.GymVillasDelParque:
		return s.VillasDelParque
	case tenant.GymUAN:
		return s.UAN
	case tenant.GymPlatinum:
		return s.Platinum
	}
	return 0
}

// Set replaces the counter for gym.
func (s *Stock) Set(gym tenant.Gym, qty int) {
	switch gym {
	case tenant.GymVillasDelParque:
		s.VillasDelParque = qty
	case tenant.GymUAN:
		s.UAN = qty
	case tenant.GymPlatinum:
		s.Platinum = qty
	}
}

// Total sums every gym counter.
func (s Stock) Total() int {
	return s.VillasDelParque + s.UAN + s.Platinum
}

// Product is a catalog item.
type Product struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Type              Type      `json:"type"`
	Price             float64   `json:"price"`
	Description       string    `json:"description,omitempty"`
	AllowInstallments bool      `json:"allow_installments"`
	Stock             Stock     `json:"stock"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MovementReason describes why stock changed.
type MovementReason string

const (
	ReasonAdjust MovementReason = "adjust"
	ReasonSale   MovementReason = "sale"
)

// Movement is one applied stock change.
type Movement struct {
	ID        uuid.UUID      `json:"id"`
	ProductID uuid.UUID      `json:"product_id"`
	Gym       tenant.Gym     `json:"gym"`
	Delta     int            `json:"delta"`
	QtyBefore int            `json:"qty_before"`
	QtyAfter  int            `json:"qty_after"`
	Reason    MovementReason `json:"reason"`
	RefID     string         `json:"ref_id,omitempty"`
	Note      string         `json:"note,omitempty"`
	ActorID   int64          `json:"actor_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	Type   *Type
	Search string
	Page   shared.PageRequest
}

// MovementFilter narrows stock history.
type MovementFilter struct {
	ProductID uuid.UUID
	Gym       *tenant.Gym
	Page      shared.PageRequest
}

// CreateProductRequest is the payload for adding a catalog item.
type CreateProductRequest struct {
	Name              string         `json:"name" validate:"required,max=120"`
	Type              string         `json:"type" validate:"required,oneof=consumable equipment clothing"`
	Price             float64        `json:"price" validate:"gt=0"`
	Description       string         `json:"description,omitempty" validate:"max=1000"`
	AllowInstallments bool           `json:"allow_installments"`
	InitialStock      map[string]int `json:"initial_stock,omitempty" validate:"omitempty,dive,gte=0"`
}

// UpdateProductRequest carries optional catalog changes.
type UpdateProductRequest struct {
	Name              *string  `json:"name,omitempty" validate:"omitempty,max=120"`
	Type              *string  `json:"type,omitempty" validate:"omitempty,oneof=consumable equipment clothing"`
	Price             *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Description       *string  `json:"description,omitempty" validate:"omitempty,max=1000"`
	AllowInstallments *bool    `json:"allow_installments,omitempty"`
}

// AdjustStockRequest changes one gym counter by Delta.
type AdjustStockRequest struct {
	Gym   string `json:"gym,omitempty"`
	Delta int    `json:"delta" validate:"ne=0"`
	Note  string `json:"note,omitempty" validate:"max=500"`
}
