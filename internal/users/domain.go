package users

import (
	"time"

	"github.com/gymdesk/gymdesk/internal/tenant"
)

// User is a staff account.
type User struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"-"`
	Role         tenant.Role `json:"role"`
	AssignedGym  tenant.Gym  `json:"assigned_gym,omitempty"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Principal projects the account onto the tenant model.
func (u User) Principal() tenant.Principal {
	return tenant.Principal{
		UserID:      u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Role:        u.Role,
		AssignedGym: u.AssignedGym,
	}
}

// CreateUserRequest is the payload for provisioning an account.
type CreateUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Name        string `json:"name" validate:"required,max=120"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Role        string `json:"role" validate:"required,oneof=admin instructor staff"`
	AssignedGym string `json:"assigned_gym,omitempty"`
}

// SetActiveRequest toggles an account.
type SetActiveRequest struct {
	Active bool `json:"active"`
}
