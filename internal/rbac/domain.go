package rbac

import "github.com/gymdesk/gymdesk/internal/tenant"

// Grant lists the permissions a role carries.
type Grant struct {
	Role        tenant.Role `json:"role"`
	Permissions []string    `json:"permissions"`
}
