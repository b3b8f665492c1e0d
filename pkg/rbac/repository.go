package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepository defines the interface for role and assignment operations.
// Assignment reads always reflect latest committed state; there is no caching
// layer in front of this interface.
type RoleRepository interface {
	FindRoles(ctx context.Context) ([]Role, error)
	GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error)
	GetRoleIDByName(ctx context.Context, name string) (uuid.UUID, error)

	// FindRolesByUser returns the roles assigned to a user. Unknown or
	// role-less users yield an empty slice, not an error.
	FindRolesByUser(ctx context.Context, userID uuid.UUID) ([]Role, error)
	FindAssignmentsByUser(ctx context.Context, userID uuid.UUID) ([]Assignment, error)

	// AssignRole creates the (user, role) pair. Assigning an already-held
	// role returns the existing assignment.
	AssignRole(ctx context.Context, arg AssignRoleParams) (Assignment, error)
	RemoveRole(ctx context.Context, arg RemoveRoleParams) error
	ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]Assignment, error)
}

// PostgresRoleRepository implements RoleRepository using PostgreSQL
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRoleRepository creates a new PostgreSQL-based role repository
func NewPostgresRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

const roleColumns = `id, name, coalesce(description, ''), permissions, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// FindRoles returns all roles ordered by name
func (r *PostgresRoleRepository) FindRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRoleByID retrieves a role by ID
func (r *PostgresRoleRepository) GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrRoleNotFound
	}
	return role, err
}

// GetRoleIDByName retrieves a role ID by its unique name
func (r *PostgresRoleRepository) GetRoleIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrRoleNotFound
	}
	return id, err
}

// FindRolesByUser returns the roles assigned to a user
func (r *PostgresRoleRepository) FindRolesByUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, coalesce(r.description, ''), r.permissions, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// FindAssignmentsByUser returns the user's assignments with roles embedded
func (r *PostgresRoleRepository) FindAssignmentsByUser(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ur.user_id, ur.role_id, ur.created_at,
		        r.id, r.name, coalesce(r.description, ''), r.permissions, r.created_at, r.updated_at
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1
		 ORDER BY ur.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []Assignment{}
	for rows.Next() {
		var a Assignment
		err := rows.Scan(&a.UserID, &a.RoleID, &a.CreatedAt,
			&a.Role.ID, &a.Role.Name, &a.Role.Description, &a.Role.Permissions,
			&a.Role.CreatedAt, &a.Role.UpdatedAt)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// AssignRole creates the pair, or returns the existing assignment when the
// user already holds the role.
func (r *PostgresRoleRepository) AssignRole(ctx context.Context, arg AssignRoleParams) (Assignment, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		arg.UserID, arg.RoleID)
	if err != nil {
		return Assignment{}, err
	}
	return r.getAssignment(ctx, arg.UserID, arg.RoleID)
}

func (r *PostgresRoleRepository) getAssignment(ctx context.Context, userID, roleID uuid.UUID) (Assignment, error) {
	var a Assignment
	err := r.pool.QueryRow(ctx,
		`SELECT ur.user_id, ur.role_id, ur.created_at,
		        r.id, r.name, coalesce(r.description, ''), r.permissions, r.created_at, r.updated_at
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1 AND ur.role_id = $2`,
		userID, roleID).Scan(&a.UserID, &a.RoleID, &a.CreatedAt,
		&a.Role.ID, &a.Role.Name, &a.Role.Description, &a.Role.Permissions,
		&a.Role.CreatedAt, &a.Role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, err
}

// RemoveRole deletes the pair, failing when the assignment does not exist
func (r *PostgresRoleRepository) RemoveRole(ctx context.Context, arg RemoveRoleParams) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		arg.UserID, arg.RoleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// ReplaceUserRoles removes assignments not in roleIDs and upserts the rest
func (r *PostgresRoleRepository) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND NOT (role_id = ANY($2))`,
		userID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to remove stale assignments: %w", err)
	}

	for _, roleID := range roleIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
			 ON CONFLICT (user_id, role_id) DO NOTHING`,
			userID, roleID)
		if err != nil {
			return nil, fmt.Errorf("failed to assign role %s: %w", roleID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.FindAssignmentsByUser(ctx, userID)
}
