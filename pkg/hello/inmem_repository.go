package hello

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryEntityRepository implements EntityRepository with an in-memory map,
// for testing and local development without a database.
type InMemoryEntityRepository struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]Entity
}

// NewInMemoryEntityRepository creates a new in-memory entity repository
func NewInMemoryEntityRepository() *InMemoryEntityRepository {
	return &InMemoryEntityRepository{entities: make(map[uuid.UUID]Entity)}
}

// Create inserts a new entity
func (r *InMemoryEntityRepository) Create(ctx context.Context, arg CreateEntityParams) (Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTaken(arg.Name, uuid.Nil) {
		return Entity{}, ErrNameTaken
	}

	now := time.Now().UTC()
	entity := Entity{
		ID:          uuid.New(),
		Name:        arg.Name,
		Description: arg.Description,
		IsActive:    arg.IsActive,
		Metadata:    arg.Metadata,
		CreatedBy:   arg.CreatedBy,
		UpdatedBy:   arg.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.entities[entity.ID] = entity
	return entity, nil
}

// GetByID retrieves an entity by id
func (r *InMemoryEntityRepository) GetByID(ctx context.Context, id uuid.UUID) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[id]
	if !ok {
		return Entity{}, ErrEntityNotFound
	}
	return entity, nil
}

// List returns a page of entities newest first plus the total match count
func (r *InMemoryEntityRepository) List(ctx context.Context, params ListParams) ([]Entity, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []Entity{}
	search := strings.ToLower(params.Search)
	for _, entity := range r.entities {
		if params.IsActive != nil && entity.IsActive != *params.IsActive {
			continue
		}
		if search != "" && !matchesSearch(entity, search) {
			continue
		}
		matched = append(matched, entity)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	offset := params.Offset()
	if offset >= len(matched) {
		return []Entity{}, total, nil
	}
	matched = matched[offset:]
	if params.Limit > 0 && params.Limit < len(matched) {
		matched = matched[:params.Limit]
	}
	return matched, total, nil
}

func matchesSearch(entity Entity, search string) bool {
	if strings.Contains(strings.ToLower(entity.Name), search) {
		return true
	}
	return entity.Description != nil && strings.Contains(strings.ToLower(*entity.Description), search)
}

// Update persists the full entity row
func (r *InMemoryEntityRepository) Update(ctx context.Context, entity Entity) (Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[entity.ID]; !ok {
		return Entity{}, ErrEntityNotFound
	}
	if r.nameTaken(entity.Name, entity.ID) {
		return Entity{}, ErrNameTaken
	}

	entity.UpdatedAt = time.Now().UTC()
	r.entities[entity.ID] = entity
	return entity, nil
}

// Delete removes an entity
func (r *InMemoryEntityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[id]; !ok {
		return ErrEntityNotFound
	}
	delete(r.entities, id)
	return nil
}

// nameTaken requires the caller to hold the write lock
func (r *InMemoryEntityRepository) nameTaken(name string, exclude uuid.UUID) bool {
	for _, entity := range r.entities {
		if entity.ID != exclude && strings.EqualFold(entity.Name, name) {
			return true
		}
	}
	return false
}
