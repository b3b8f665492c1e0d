package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw/hello-api/pkg/rbac"
)

// ErrEntryNotFound is returned when an audit entry does not exist
var ErrEntryNotFound = errors.New("audit entry not found")

// recordTimeout bounds a single background audit write
const recordTimeout = 5 * time.Second

// Service records and queries the audit trail. Recording is best-effort:
// writes happen in the background, failures are logged and never surface to
// the operation being audited.
type Service struct {
	repo Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends an entry to the audit trail without blocking the caller.
// The write is detached from the request context so a completed request
// cannot cancel it.
func (s *Service) Record(ctx context.Context, entry Entry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()

		if _, err := s.repo.Create(ctx, entry); err != nil {
			slog.Error("failed to record audit entry",
				"action", entry.Action,
				"entityType", entry.EntityType,
				"entityId", entry.EntityID,
				"err", err)
		}
	}()
}

// Flush blocks until all pending background writes have finished. Called on
// shutdown and by tests.
func (s *Service) Flush() {
	s.wg.Wait()
}

// RecordCreate records an entity creation attributed to the request context
func (s *Service) RecordCreate(ctx context.Context, entityType, entityID string, newData map[string]any) {
	s.Record(ctx, s.contextEntry(ctx, ActionCreate, entityType, entityID, nil, newData))
}

// RecordUpdate records an entity mutation with before and after snapshots
func (s *Service) RecordUpdate(ctx context.Context, entityType, entityID string, oldData, newData map[string]any) {
	s.Record(ctx, s.contextEntry(ctx, ActionUpdate, entityType, entityID, oldData, newData))
}

// RecordDelete records an entity deletion with its final snapshot
func (s *Service) RecordDelete(ctx context.Context, entityType, entityID string, oldData map[string]any) {
	s.Record(ctx, s.contextEntry(ctx, ActionDelete, entityType, entityID, oldData, nil))
}

// RecordRead records a read access; entityID may be empty for listings
func (s *Service) RecordRead(ctx context.Context, entityType, entityID string) {
	s.Record(ctx, s.contextEntry(ctx, ActionRead, entityType, entityID, nil, nil))
}

// contextEntry builds an entry stamped with whatever attribution the context
// carries: request origin from Middleware, actor from the guard.
func (s *Service) contextEntry(ctx context.Context, action Action, entityType, entityID string, oldData, newData map[string]any) Entry {
	entry := Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldData:    oldData,
		NewData:    newData,
	}
	if meta, ok := MetaFromContext(ctx); ok {
		entry.IPAddress = meta.IPAddress
		entry.UserAgent = meta.UserAgent
	}
	if caller, ok := rbac.CallerFromContext(ctx); ok && caller.UserID != uuid.Nil {
		userID := caller.UserID
		entry.UserID = &userID
	}
	return entry
}

// GetEntry retrieves a single audit entry
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// Find returns matching entries newest first along with the total match
// count, clamping the page size to MaxPageSize.
func (s *Service) Find(ctx context.Context, q Query) ([]Entry, int64, error) {
	return s.repo.Find(ctx, q.Normalize())
}

// EntityHistory returns the full unpaginated trail of a single entity,
// newest first.
func (s *Service) EntityHistory(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	entries, _, err := s.repo.Find(ctx, Query{EntityType: entityType, EntityID: entityID})
	return entries, err
}

// Snapshot converts an entity to the generic map form stored in audit data
// columns, using its JSON representation.
func Snapshot(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to snapshot entity for audit", "err", err)
		return nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		slog.Error("failed to snapshot entity for audit", "err", err)
		return nil
	}
	return snapshot
}
