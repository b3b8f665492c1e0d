package hello

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "hello_db.sql")),
		postgres.WithDatabase("hello_db"),
		postgres.WithUsername("hello"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresEntityRepository(t *testing.T) {
	pool := setupTestDatabase(t)
	repo := NewPostgresEntityRepository(pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateEntityParams{
		Name:        "pg-greeting",
		Description: strPtr("made in a container"),
		IsActive:    true,
		Metadata:    map[string]any{"lang": "en"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "pg-greeting", created.Name)
	require.NotNil(t, created.Description)
	assert.Equal(t, "made in a container", *created.Description)
	assert.Equal(t, "en", created.Metadata["lang"])

	t.Run("duplicate name", func(t *testing.T) {
		_, err := repo.Create(ctx, CreateEntityParams{Name: "pg-greeting"})
		assert.ErrorIs(t, err, ErrNameTaken)
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("update", func(t *testing.T) {
		entity, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)

		entity.Name = "pg-renamed"
		entity.Description = nil
		entity.IsActive = false
		updated, err := repo.Update(ctx, entity)
		require.NoError(t, err)
		assert.Equal(t, "pg-renamed", updated.Name)
		assert.Nil(t, updated.Description)
		assert.False(t, updated.IsActive)
	})

	t.Run("list with filters", func(t *testing.T) {
		_, err := repo.Create(ctx, CreateEntityParams{Name: "active-entity", IsActive: true})
		require.NoError(t, err)

		active := true
		entities, total, err := repo.List(ctx, ListParams{IsActive: &active}.Normalize())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entities, 1)
		assert.Equal(t, "active-entity", entities[0].Name)

		entities, total, err = repo.List(ctx, ListParams{Search: "RENAMED"}.Normalize())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entities, 1)
		assert.Equal(t, "pg-renamed", entities[0].Name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, created.ID))
		assert.ErrorIs(t, repo.Delete(ctx, created.ID), ErrEntityNotFound)
	})
}
