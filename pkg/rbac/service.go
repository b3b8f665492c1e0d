package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrAssignmentNotFound = errors.New("role assignment not found")
)

// RoleService provides role lookup and assignment management
type RoleService struct {
	repo RoleRepository
}

// NewRoleService creates a new role service
func NewRoleService(repo RoleRepository) *RoleService {
	return &RoleService{repo: repo}
}

// FindRoles returns all roles
func (s *RoleService) FindRoles(ctx context.Context) ([]Role, error) {
	return s.repo.FindRoles(ctx)
}

// GetRole retrieves a role by ID
func (s *RoleService) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	return s.repo.GetRoleByID(ctx, id)
}

// GetRoleIDByName retrieves a role ID by its unique name
func (s *RoleService) GetRoleIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, ErrRoleNotFound
	}
	return s.repo.GetRoleIDByName(ctx, name)
}

// RolesForUser resolves the user's roles from latest committed assignment
// state. Unknown or role-less users get an empty slice.
func (s *RoleService) RolesForUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	roles, err := s.repo.FindRolesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles for user %s: %w", userID, err)
	}
	return roles, nil
}

// AssignmentsForUser returns the user's assignments with roles embedded
func (s *RoleService) AssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	return s.repo.FindAssignmentsByUser(ctx, userID)
}

// AssignRole assigns a role to a user. Assigning an already-held role is a
// no-op returning the existing assignment.
func (s *RoleService) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (Assignment, error) {
	if _, err := s.repo.GetRoleByID(ctx, roleID); err != nil {
		return Assignment{}, err
	}
	return s.repo.AssignRole(ctx, AssignRoleParams{UserID: userID, RoleID: roleID})
}

// RemoveRole removes a role from a user
func (s *RoleService) RemoveRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return s.repo.RemoveRole(ctx, RemoveRoleParams{UserID: userID, RoleID: roleID})
}

// SetUserRoles replaces the user's assignments with exactly roleIDs
func (s *RoleService) SetUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]Assignment, error) {
	for _, roleID := range roleIDs {
		if _, err := s.repo.GetRoleByID(ctx, roleID); err != nil {
			return nil, err
		}
	}
	return s.repo.ReplaceUserRoles(ctx, userID, roleIDs)
}
