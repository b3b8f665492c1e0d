package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for audit trail persistence. The trail is
// append-only: there are no update or delete operations.
type Repository interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
	GetByID(ctx context.Context, id uuid.UUID) (Entry, error)

	// Find returns entries matching the query, newest first, plus the total
	// match count for paging.
	Find(ctx context.Context, q Query) ([]Entry, int64, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-based audit repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const entryColumns = `id, action, entity_type, entity_id, user_id, old_data, new_data, coalesce(ip_address, ''), coalesce(user_agent, ''), created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var entry Entry
	err := row.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID,
		&entry.UserID, &entry.OldData, &entry.NewData,
		&entry.IPAddress, &entry.UserAgent, &entry.CreatedAt)
	return entry, err
}

// Create appends a new entry to the audit trail
func (r *PostgresRepository) Create(ctx context.Context, entry Entry) (Entry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, old_data, new_data, ip_address, user_agent, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, nullif($7, ''), nullif($8, ''), now())
		RETURNING `+entryColumns,
		entry.Action, entry.EntityType, entry.EntityID, entry.UserID,
		entry.OldData, entry.NewData, entry.IPAddress, entry.UserAgent)
	return scanEntry(row)
}

// GetByID retrieves a single audit entry
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM audit_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return entry, err
}

// Find returns matching entries newest first along with the total match count
func (r *PostgresRepository) Find(ctx context.Context, q Query) ([]Entry, int64, error) {
	where, args := buildFilter(q)

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM audit_logs`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	paging := ""
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		paging = fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM audit_logs%s ORDER BY created_at DESC%s`,
		entryColumns, where, paging), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func buildFilter(q Query) (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.EntityType != "" {
		add("entity_type = $%d", q.EntityType)
	}
	if q.EntityID != "" {
		add("entity_id = $%d", q.EntityID)
	}
	if q.UserID != nil {
		add("user_id = $%d", *q.UserID)
	}
	if q.Action != "" {
		add("action = $%d", q.Action)
	}
	if !q.From.IsZero() {
		add("created_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("created_at <= $%d", q.To)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
