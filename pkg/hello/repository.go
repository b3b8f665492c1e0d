package hello

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntityRepository defines the interface for hello entity persistence
type EntityRepository interface {
	Create(ctx context.Context, arg CreateEntityParams) (Entity, error)
	GetByID(ctx context.Context, id uuid.UUID) (Entity, error)

	// List returns a page of entities newest first plus the total match
	// count. Search matches name and description case-insensitively.
	List(ctx context.Context, params ListParams) ([]Entity, int64, error)

	// Update persists the full entity row; the service applies the patch
	// before calling.
	Update(ctx context.Context, entity Entity) (Entity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostgresEntityRepository implements EntityRepository using PostgreSQL
type PostgresEntityRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEntityRepository creates a new PostgreSQL-based entity repository
func NewPostgresEntityRepository(pool *pgxpool.Pool) *PostgresEntityRepository {
	return &PostgresEntityRepository{pool: pool}
}

const entityColumns = `id, name, description, is_active, metadata, created_by, updated_by, created_at, updated_at`

func scanEntity(row pgx.Row) (Entity, error) {
	var entity Entity
	err := row.Scan(&entity.ID, &entity.Name, &entity.Description, &entity.IsActive,
		&entity.Metadata, &entity.CreatedBy, &entity.UpdatedBy,
		&entity.CreatedAt, &entity.UpdatedAt)
	return entity, err
}

// Create inserts a new entity
func (r *PostgresEntityRepository) Create(ctx context.Context, arg CreateEntityParams) (Entity, error) {
	entity, err := scanEntity(r.pool.QueryRow(ctx, `
		INSERT INTO hello_entities (id, name, description, is_active, metadata, created_by, updated_by, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $5, now(), now())
		RETURNING `+entityColumns,
		arg.Name, arg.Description, arg.IsActive, arg.Metadata, arg.CreatedBy))
	if isUniqueViolation(err) {
		return Entity{}, ErrNameTaken
	}
	return entity, err
}

// GetByID retrieves an entity by id
func (r *PostgresEntityRepository) GetByID(ctx context.Context, id uuid.UUID) (Entity, error) {
	entity, err := scanEntity(r.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM hello_entities WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entity{}, ErrEntityNotFound
	}
	return entity, err
}

// List returns a page of entities newest first plus the total match count
func (r *PostgresEntityRepository) List(ctx context.Context, params ListParams) ([]Entity, int64, error) {
	clauses := []string{}
	args := []any{}
	if params.IsActive != nil {
		args = append(args, *params.IsActive)
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM hello_entities`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entities: %w", err)
	}

	args = append(args, params.Limit, params.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM hello_entities%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		entityColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entities := []Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, 0, err
		}
		entities = append(entities, entity)
	}
	return entities, total, rows.Err()
}

// Update persists the full entity row
func (r *PostgresEntityRepository) Update(ctx context.Context, entity Entity) (Entity, error) {
	updated, err := scanEntity(r.pool.QueryRow(ctx, `
		UPDATE hello_entities
		SET name = $2,
		    description = $3,
		    is_active = $4,
		    metadata = $5,
		    updated_by = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+entityColumns,
		entity.ID, entity.Name, entity.Description, entity.IsActive, entity.Metadata, entity.UpdatedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entity{}, ErrEntityNotFound
	}
	if isUniqueViolation(err) {
		return Entity{}, ErrNameTaken
	}
	return updated, err
}

// Delete removes an entity
func (r *PostgresEntityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM hello_entities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
