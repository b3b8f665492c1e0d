package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/hello-api/pkg/rbac"
)

func TestRecordPersistsEntry(t *testing.T) {
	repo := NewInMemoryRepository()
	service := NewService(repo)

	service.Record(context.Background(), Entry{
		Action:     ActionCreate,
		EntityType: "HelloEntity",
		EntityID:   "abc",
		NewData:    map[string]any{"name": "greeting"},
	})
	service.Flush()

	entries, total, err := service.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionCreate, entries[0].Action)
	assert.Equal(t, "greeting", entries[0].NewData["name"])
	assert.NotZero(t, entries[0].ID)
	assert.NotZero(t, entries[0].CreatedAt)
}

type failingRepository struct{}

func (failingRepository) Create(ctx context.Context, entry Entry) (Entry, error) {
	return Entry{}, errors.New("db down")
}

func (failingRepository) GetByID(ctx context.Context, id uuid.UUID) (Entry, error) {
	return Entry{}, ErrEntryNotFound
}

func (failingRepository) Find(ctx context.Context, q Query) ([]Entry, int64, error) {
	return nil, 0, errors.New("db down")
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	service := NewService(failingRepository{})

	// Must neither panic nor surface the error to the caller
	service.Record(context.Background(), Entry{Action: ActionDelete, EntityType: "HelloEntity", EntityID: "x"})
	service.Flush()
}

func TestRecordHelpersStampContextAttribution(t *testing.T) {
	repo := NewInMemoryRepository()
	service := NewService(repo)
	actorID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/hello-entities", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	var handlerCtx context.Context
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCtx = rbac.WithCaller(r.Context(), &rbac.Caller{UserID: actorID})
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	service.RecordUpdate(handlerCtx, "HelloEntity", "abc",
		map[string]any{"name": "old"}, map[string]any{"name": "new"})
	service.Flush()

	entries, _, err := service.Find(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, ActionUpdate, entry.Action)
	assert.Equal(t, "203.0.113.9", entry.IPAddress)
	assert.Equal(t, "test-agent", entry.UserAgent)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, actorID, *entry.UserID)
	assert.Equal(t, "old", entry.OldData["name"])
	assert.Equal(t, "new", entry.NewData["name"])
}

func TestFindFilters(t *testing.T) {
	repo := NewInMemoryRepository()
	service := NewService(repo)
	userID := uuid.New()

	service.Record(context.Background(), Entry{Action: ActionCreate, EntityType: "HelloEntity", EntityID: "a", UserID: &userID})
	service.Record(context.Background(), Entry{Action: ActionDelete, EntityType: "HelloEntity", EntityID: "b"})
	service.Record(context.Background(), Entry{Action: ActionCreate, EntityType: "Role", EntityID: "c"})
	service.Flush()

	entries, total, err := service.Find(context.Background(), Query{EntityType: "HelloEntity"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, entries, 2)

	entries, _, err = service.Find(context.Background(), Query{Action: ActionDelete})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].EntityID)

	entries, _, err = service.Find(context.Background(), Query{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].EntityID)
}

func TestFindTimeRange(t *testing.T) {
	repo := NewInMemoryRepository()
	service := NewService(repo)

	service.Record(context.Background(), Entry{Action: ActionCreate, EntityType: "HelloEntity", EntityID: "old"})
	service.Flush()
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	service.Record(context.Background(), Entry{Action: ActionDelete, EntityType: "HelloEntity", EntityID: "new"})
	service.Flush()

	entries, total, err := service.Find(context.Background(), Query{From: cutoff})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].EntityID)

	entries, _, err = service.Find(context.Background(), Query{To: cutoff})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "old", entries[0].EntityID)

	entries, _, err = service.Find(context.Background(), Query{From: cutoff.Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntityHistoryIsUnpaginated(t *testing.T) {
	repo := NewInMemoryRepository()
	service := NewService(repo)

	for range [120]struct{}{} {
		service.Record(context.Background(), Entry{Action: ActionUpdate, EntityType: "HelloEntity", EntityID: "abc"})
	}
	service.Record(context.Background(), Entry{Action: ActionCreate, EntityType: "HelloEntity", EntityID: "other"})
	service.Flush()

	entries, err := service.EntityHistory(context.Background(), "HelloEntity", "abc")
	require.NoError(t, err)
	assert.Len(t, entries, 120)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
	}
}

func TestFindClampsPageSize(t *testing.T) {
	repo := NewInMemoryRepository()
	service := NewService(repo)
	for range [120]struct{}{} {
		service.Record(context.Background(), Entry{Action: ActionRead, EntityType: "HelloEntity"})
	}
	service.Flush()

	entries, total, err := service.Find(context.Background(), Query{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(120), total)
	assert.Len(t, entries, MaxPageSize)

	entries, _, err = service.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, entries, DefaultPageSize)
}

func TestSnapshot(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	snapshot := Snapshot(payload{Name: "x", Count: 3})
	require.NotNil(t, snapshot)
	assert.Equal(t, "x", snapshot["name"])
	assert.Equal(t, float64(3), snapshot["count"])
}
