// Package tenant models gym locations and the caller's access scope.
package tenant

import (
	"fmt"
	"strings"

	"github.com/gymdesk/gymdesk/internal/shared"
)

// Gym identifies one physical location.
type Gym string

const (
	GymVillasDelParque Gym = "Villas del Parque"
	GymUAN             Gym = "UAN"
	GymPlatinum        Gym = "Platinum"
)

var gyms = []Gym{GymVillasDelParque, GymUAN, GymPlatinum}

// Gyms returns every known location in a fixed order.
func Gyms() []Gym {
	out := make([]Gym, len(gyms))
	copy(out, gyms)
	return out
}

// Valid reports whether g is a known location.
func (g Gym) Valid() bool {
	for _, known := range gyms {
		if g == known {
			return true
		}
	}
	return false
}

// ParseGym accepts a location name, ignoring case and surrounding spaces.
func ParseGym(raw string) (Gym, error) {
	raw = strings.TrimSpace(raw)
	for _, known := range gyms {
		if strings.EqualFold(raw, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: unknown gym %q", shared.ErrValidation, raw)
}

// Role is the caller's role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStaff      Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStaff:
		return true
	}
	return false
}

// Principal is the authenticated caller.
type Principal struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	AssignedGym Gym    `json:"assigned_gym,omitempty"`
}

// IsAdmin reports whether the principal may act on every gym.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
