package tenant

import (
	"fmt"

	"github.com/gymdesk/gymdesk/internal/shared"
)

// NarrowGym returns the gym a list query must be restricted to. Non-admins
// always see their assigned gym whatever they asked for; admins get the
// requested gym, or nil for every gym.
func NarrowGym(p Principal, requested *Gym) *Gym {
	if !p.IsAdmin() {
		own := p.AssignedGym
		return &own
	}
	if requested == nil || *requested == "" {
		return nil
	}
	g := *requested
	return &g
}

// Authorize rejects targeted access to an entity owned by a foreign gym.
func Authorize(p Principal, owner Gym) error {
	if p.IsAdmin() {
		return nil
	}
	if p.AssignedGym == "" || p.AssignedGym != owner {
		return fmt.Errorf("%w: %s cannot access %s records", shared.ErrForbidden, p.Username, owner)
	}
	return nil
}

// ResolveWriteGym picks the gym a new record belongs to. Non-admins default to
// their own gym and may not create for another one; admins must name a gym.
func ResolveWriteGym(p Principal, requested Gym) (Gym, error) {
	if requested != "" && !requested.Valid() {
		return "", fmt.Errorf("%w: unknown gym %q", shared.ErrValidation, requested)
	}
	if !p.IsAdmin() {
		if requested == "" {
			requested = p.AssignedGym
		}
		if err := Authorize(p, requested); err != nil {
			return "", err
		}
		return requested, nil
	}
	if requested == "" {
		return "", fmt.Errorf("%w: gym is required", shared.ErrValidation)
	}
	return requested, nil
}

// RequireAdmin fails unless p is an administrator.
func RequireAdmin(p Principal) error {
	if !p.IsAdmin() {
		return fmt.Errorf("%w: admin role required", shared.ErrForbidden)
	}
	return nil
}
