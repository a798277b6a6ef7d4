package rbac

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/tenant"
)

// Service resolves role grants. Grants are fixed per role.
type Service struct {
	grants map[tenant.Role][]string
}

// NewService constructs a Service with the default role grants.
func NewService() *Service {
	return &Service{grants: map[tenant.Role][]string{
		tenant.RoleAdmin:      normalizePermissions(shared.AllPermissions()),
		tenant.RoleInstructor: normalizePermissions(shared.FrontDeskPermissions()),
		tenant.RoleStaff:      normalizePermissions(shared.FrontDeskPermissions()),
	}}
}

// EffectivePermissions returns the permissions held by p.
func (s *Service) EffectivePermissions(_ context.Context, p tenant.Principal) ([]string, error) {
	perms, ok := s.grants[p.Role]
	if !ok {
		return nil, fmt.Errorf("rbac: %w: unknown role %q", shared.ErrForbidden, p.Role)
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out, nil
}

// Grants lists every role with its permissions, ordered by role name.
func (s *Service) Grants() []Grant {
	out := make([]Grant, 0, len(s.grants))
	for role, perms := range s.grants {
		cp := make([]string, len(perms))
		copy(cp, perms)
		out = append(out, Grant{Role: role, Permissions: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	sort.Strings(normalized)
	return normalized
}
