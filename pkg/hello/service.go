package hello

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/openclaw/hello-api/pkg/audit"
	"github.com/openclaw/hello-api/pkg/rbac"
)

var (
	// ErrEntityNotFound is returned when an entity does not exist
	ErrEntityNotFound = errors.New("hello entity not found")
	// ErrNameTaken is returned when an entity name is already in use
	ErrNameTaken = errors.New("entity name already taken")
	// ErrNullField is returned when a patch nulls a non-nullable field
	ErrNullField = errors.New("field cannot be null")
)

// Service implements hello entity CRUD with every mutation and read recorded
// in the audit trail. Audit failures never fail the operation.
type Service struct {
	repo     EntityRepository
	recorder *audit.Service
}

// NewService creates a new hello entity service
func NewService(repo EntityRepository, recorder *audit.Service) *Service {
	return &Service{repo: repo, recorder: recorder}
}

// Create persists a new entity owned by the calling user
func (s *Service) Create(ctx context.Context, arg CreateEntityParams) (Entity, error) {
	arg.Name = strings.TrimSpace(arg.Name)
	if arg.Name == "" {
		return Entity{}, fmt.Errorf("name is required: %w", ErrNullField)
	}
	arg.CreatedBy = callerID(ctx)

	entity, err := s.repo.Create(ctx, arg)
	if err != nil {
		return Entity{}, err
	}

	s.recorder.RecordCreate(ctx, EntityType, entity.ID.String(), audit.Snapshot(entity))
	return entity, nil
}

// Get retrieves an entity and records the read access
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Entity, error) {
	entity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Entity{}, err
	}

	s.recorder.RecordRead(ctx, EntityType, entity.ID.String())
	return entity, nil
}

// List returns a page of entities and records one read access per call
func (s *Service) List(ctx context.Context, params ListParams) ([]Entity, int64, error) {
	params = params.Normalize()
	entities, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	s.recorder.RecordRead(ctx, EntityType, "")
	return entities, total, nil
}

// Update applies a tri-state patch: omitted fields stay, explicit nulls clear
// description and metadata, values replace. Name and isActive cannot be
// nulled. The audit entry carries before and after snapshots.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateEntityRequest) (Entity, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Entity{}, err
	}

	var after Entity
	if err := copier.CopyWithOption(&after, &before, copier.Option{DeepCopy: true}); err != nil {
		return Entity{}, fmt.Errorf("failed to clone entity %s: %w", id, err)
	}

	if req.Name.Set {
		if req.Name.Null {
			return Entity{}, fmt.Errorf("name: %w", ErrNullField)
		}
		name := strings.TrimSpace(req.Name.Value)
		if name == "" {
			return Entity{}, fmt.Errorf("name is required: %w", ErrNullField)
		}
		after.Name = name
	}
	if req.IsActive.Set {
		if req.IsActive.Null {
			return Entity{}, fmt.Errorf("isActive: %w", ErrNullField)
		}
		after.IsActive = req.IsActive.Value
	}
	if req.Description.Set {
		if req.Description.Null {
			after.Description = nil
		} else {
			after.Description = req.Description.Value
		}
	}
	if req.Metadata.Set {
		if req.Metadata.Null {
			after.Metadata = nil
		} else {
			after.Metadata = req.Metadata.Value
		}
	}
	after.UpdatedBy = callerID(ctx)

	updated, err := s.repo.Update(ctx, after)
	if err != nil {
		return Entity{}, err
	}

	s.recorder.RecordUpdate(ctx, EntityType, updated.ID.String(),
		audit.Snapshot(before), audit.Snapshot(updated))
	return updated, nil
}

// Delete removes an entity, recording its final state
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.RecordDelete(ctx, EntityType, id.String(), audit.Snapshot(before))
	return nil
}

// callerID returns the acting local user id, nil outside a guarded request
func callerID(ctx context.Context) *uuid.UUID {
	caller, ok := rbac.CallerFromContext(ctx)
	if !ok || caller.UserID == uuid.Nil {
		return nil
	}
	id := caller.UserID
	return &id
}
