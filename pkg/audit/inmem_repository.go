package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository with an in-memory slice,
// for testing and local development without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemoryRepository creates a new in-memory audit repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Create appends a new entry to the audit trail
func (r *InMemoryRepository) Create(ctx context.Context, entry Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, entry)
	return entry, nil
}

// GetByID retrieves a single audit entry
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return Entry{}, ErrEntryNotFound
}

// Find returns matching entries newest first along with the total match count
func (r *InMemoryRepository) Find(ctx context.Context, q Query) ([]Entry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []Entry{}
	for _, entry := range r.entries {
		if q.EntityType != "" && entry.EntityType != q.EntityType {
			continue
		}
		if q.EntityID != "" && entry.EntityID != q.EntityID {
			continue
		}
		if q.UserID != nil && (entry.UserID == nil || *entry.UserID != *q.UserID) {
			continue
		}
		if q.Action != "" && entry.Action != q.Action {
			continue
		}
		if !q.From.IsZero() && entry.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && entry.CreatedAt.After(q.To) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return []Entry{}, total, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}
