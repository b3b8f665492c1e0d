package rbac

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRoleRepository implements RoleRepository using in-memory storage
type InMemoryRoleRepository struct {
	mu          sync.RWMutex
	roles       map[uuid.UUID]Role
	assignments map[uuid.UUID]map[uuid.UUID]time.Time // userID -> roleID -> assigned at
}

// NewInMemoryRoleRepository creates a new in-memory role repository
func NewInMemoryRoleRepository() *InMemoryRoleRepository {
	return &InMemoryRoleRepository{
		roles:       make(map[uuid.UUID]Role),
		assignments: make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

// SeedRole adds a role directly (for testing/initialization)
func (r *InMemoryRoleRepository) SeedRole(role Role) Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
		role.UpdatedAt = role.CreatedAt
	}
	r.roles[role.ID] = role
	return role
}

// FindRoles returns all roles
func (r *InMemoryRoleRepository) FindRoles(ctx context.Context) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

// GetRoleByID retrieves a role by ID
func (r *InMemoryRoleRepository) GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

// GetRoleIDByName retrieves a role ID by name
func (r *InMemoryRoleRepository) GetRoleIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, role := range r.roles {
		if role.Name == name {
			return role.ID, nil
		}
	}
	return uuid.Nil, ErrRoleNotFound
}

// FindRolesByUser returns the roles assigned to a user
func (r *InMemoryRoleRepository) FindRolesByUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := []Role{}
	for roleID := range r.assignments[userID] {
		if role, ok := r.roles[roleID]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// FindAssignmentsByUser returns the user's assignments with roles embedded
func (r *InMemoryRoleRepository) FindAssignmentsByUser(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assignments := []Assignment{}
	for roleID, assignedAt := range r.assignments[userID] {
		role, ok := r.roles[roleID]
		if !ok {
			continue
		}
		assignments = append(assignments, Assignment{
			UserID:    userID,
			RoleID:    roleID,
			CreatedAt: assignedAt,
			Role:      role,
		})
	}
	return assignments, nil
}

// AssignRole creates the pair, returning the existing assignment when held
func (r *InMemoryRoleRepository) AssignRole(ctx context.Context, arg AssignRoleParams) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[arg.RoleID]
	if !ok {
		return Assignment{}, ErrRoleNotFound
	}

	if r.assignments[arg.UserID] == nil {
		r.assignments[arg.UserID] = make(map[uuid.UUID]time.Time)
	}
	assignedAt, held := r.assignments[arg.UserID][arg.RoleID]
	if !held {
		assignedAt = time.Now().UTC()
		r.assignments[arg.UserID][arg.RoleID] = assignedAt
	}

	return Assignment{
		UserID:    arg.UserID,
		RoleID:    arg.RoleID,
		CreatedAt: assignedAt,
		Role:      role,
	}, nil
}

// RemoveRole deletes the pair, failing when the assignment does not exist
func (r *InMemoryRoleRepository) RemoveRole(ctx context.Context, arg RemoveRoleParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userAssignments, ok := r.assignments[arg.UserID]
	if !ok {
		return ErrAssignmentNotFound
	}
	if _, held := userAssignments[arg.RoleID]; !held {
		return ErrAssignmentNotFound
	}
	delete(userAssignments, arg.RoleID)
	return nil
}

// ReplaceUserRoles removes assignments not in roleIDs and adds the rest
func (r *InMemoryRoleRepository) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]Assignment, error) {
	r.mu.Lock()

	wanted := make(map[uuid.UUID]struct{}, len(roleIDs))
	for _, roleID := range roleIDs {
		wanted[roleID] = struct{}{}
	}

	if r.assignments[userID] == nil {
		r.assignments[userID] = make(map[uuid.UUID]time.Time)
	}
	for roleID := range r.assignments[userID] {
		if _, keep := wanted[roleID]; !keep {
			delete(r.assignments[userID], roleID)
		}
	}
	for _, roleID := range roleIDs {
		if _, held := r.assignments[userID][roleID]; !held {
			r.assignments[userID][roleID] = time.Now().UTC()
		}
	}
	r.mu.Unlock()

	return r.FindAssignmentsByUser(ctx, userID)
}
