package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRoleService(t *testing.T) (*RoleService, *InMemoryRoleRepository) {
	t.Helper()
	repo := NewInMemoryRoleRepository()
	return NewRoleService(repo), repo
}

func TestRolesForUserUnknownUser(t *testing.T) {
	service, _ := setupRoleService(t)

	roles, err := service.RolesForUser(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestAssignRoleIsIdempotent(t *testing.T) {
	service, repo := setupRoleService(t)
	role := repo.SeedRole(Role{Name: "editor", Permissions: []string{"hello:write"}})
	userID := uuid.New()

	first, err := service.AssignRole(context.Background(), userID, role.ID)
	require.NoError(t, err)

	second, err := service.AssignRole(context.Background(), userID, role.ID)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	roles, err := service.RolesForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestAssignRoleUnknownRole(t *testing.T) {
	service, _ := setupRoleService(t)

	_, err := service.AssignRole(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestRemoveRole(t *testing.T) {
	service, repo := setupRoleService(t)
	role := repo.SeedRole(Role{Name: "viewer", Permissions: []string{"hello:read"}})
	userID := uuid.New()

	_, err := service.AssignRole(context.Background(), userID, role.ID)
	require.NoError(t, err)

	err = service.RemoveRole(context.Background(), userID, role.ID)
	require.NoError(t, err)

	roles, err := service.RolesForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestRemoveRoleMissingAssignment(t *testing.T) {
	service, repo := setupRoleService(t)
	role := repo.SeedRole(Role{Name: "viewer", Permissions: []string{"hello:read"}})

	err := service.RemoveRole(context.Background(), uuid.New(), role.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestSetUserRolesReplacesExisting(t *testing.T) {
	service, repo := setupRoleService(t)
	viewer := repo.SeedRole(Role{Name: "viewer", Permissions: []string{"hello:read"}})
	editor := repo.SeedRole(Role{Name: "editor", Permissions: []string{"hello:write"}})
	admin := repo.SeedRole(Role{Name: "admin", Permissions: []string{Wildcard}})
	userID := uuid.New()

	_, err := service.SetUserRoles(context.Background(), userID, []uuid.UUID{viewer.ID, editor.ID})
	require.NoError(t, err)
	_, err = service.SetUserRoles(context.Background(), userID, []uuid.UUID{admin.ID})
	require.NoError(t, err)

	roles, err := service.RolesForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].Name)
}

func TestSetUserRolesUnknownRole(t *testing.T) {
	service, repo := setupRoleService(t)
	viewer := repo.SeedRole(Role{Name: "viewer", Permissions: []string{"hello:read"}})

	_, err := service.SetUserRoles(context.Background(), uuid.New(), []uuid.UUID{viewer.ID, uuid.New()})
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestSetUserRolesEmptyClearsAll(t *testing.T) {
	service, repo := setupRoleService(t)
	viewer := repo.SeedRole(Role{Name: "viewer", Permissions: []string{"hello:read"}})
	userID := uuid.New()

	_, err := service.SetUserRoles(context.Background(), userID, []uuid.UUID{viewer.ID})
	require.NoError(t, err)
	_, err = service.SetUserRoles(context.Background(), userID, nil)
	require.NoError(t, err)

	roles, err := service.RolesForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestGetRoleIDByName(t *testing.T) {
	service, repo := setupRoleService(t)
	role := repo.SeedRole(Role{Name: "user", Permissions: []string{"hello:read"}})

	id, err := service.GetRoleIDByName(context.Background(), "user")
	require.NoError(t, err)
	assert.Equal(t, role.ID, id)

	_, err = service.GetRoleIDByName(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}
