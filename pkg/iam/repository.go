package iam

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines the interface for local user persistence
type UserRepository interface {
	FindUsers(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetBySubject(ctx context.Context, subject string) (User, error)
	Create(ctx context.Context, arg CreateUserParams) (User, error)

	// UpdateBySubject replaces the profile fields of the user with the
	// given subject.
	UpdateBySubject(ctx context.Context, subject string, arg UpdateUserParams) (User, error)

	// DeleteBySubject removes the user; role assignments cascade.
	DeleteBySubject(ctx context.Context, subject string) error
}

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL-based user repository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, subject, email, coalesce(given_name, ''), coalesce(family_name, ''), coalesce(avatar_url, ''), created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Subject, &user.Email,
		&user.GivenName, &user.FamilyName, &user.AvatarURL,
		&user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// FindUsers returns all users ordered by email
func (r *PostgresUserRepository) FindUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetByID retrieves a user by local id
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// GetBySubject retrieves a user by provider subject
func (r *PostgresUserRepository) GetBySubject(ctx context.Context, subject string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE subject = $1`, subject))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// Create inserts a new user record
func (r *PostgresUserRepository) Create(ctx context.Context, arg CreateUserParams) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (id, subject, email, given_name, family_name, avatar_url, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, nullif($3, ''), nullif($4, ''), nullif($5, ''), now(), now())
		RETURNING `+userColumns,
		arg.Subject, arg.Email, arg.GivenName, arg.FamilyName, arg.AvatarURL))
	if isUniqueViolation(err) {
		return User{}, ErrUserExists
	}
	return user, err
}

// UpdateBySubject replaces the profile fields of the user with the subject
func (r *PostgresUserRepository) UpdateBySubject(ctx context.Context, subject string, arg UpdateUserParams) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $2,
		    given_name = nullif($3, ''),
		    family_name = nullif($4, ''),
		    avatar_url = nullif($5, ''),
		    updated_at = now()
		WHERE subject = $1
		RETURNING `+userColumns,
		subject, arg.Email, arg.GivenName, arg.FamilyName, arg.AvatarURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if isUniqueViolation(err) {
		return User{}, ErrUserExists
	}
	return user, err
}

// DeleteBySubject removes the user with the given subject
func (r *PostgresUserRepository) DeleteBySubject(ctx context.Context, subject string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE subject = $1`, subject)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
