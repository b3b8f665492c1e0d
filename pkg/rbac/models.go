package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named bundle of permission strings assignable to users.
// Roles are seed/admin-managed; the API only reads and assigns them.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Assignment is a (user, role) pair, unique per pair
type Assignment struct {
	UserID    uuid.UUID `json:"user_id"`
	RoleID    uuid.UUID `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
	Role      Role      `json:"role"`
}

// AssignRoleParams contains parameters for assigning a role to a user
type AssignRoleParams struct {
	UserID uuid.UUID
	RoleID uuid.UUID
}

// RemoveRoleParams contains parameters for removing a role from a user
type RemoveRoleParams struct {
	UserID uuid.UUID
	RoleID uuid.UUID
}
