package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action describes the kind of operation an audit entry records
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionRead   Action = "READ"
)

// Entry is a single immutable audit trail record. UserID is nil when the
// operation was not attributable to a local user (e.g. provider webhooks).
// OldData and NewData hold entity snapshots: create entries carry only
// NewData, delete entries only OldData, update entries both.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	Action     Action         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	UserID     *uuid.UUID     `json:"userId,omitempty"`
	OldData    map[string]any `json:"oldData,omitempty"`
	NewData    map[string]any `json:"newData,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Query filters and pages an audit trail listing. Zero-value fields are
// ignored. From and To bound CreatedAt inclusively. Limit is clamped to
// MaxPageSize by the service.
type Query struct {
	EntityType string
	EntityID   string
	UserID     *uuid.UUID
	Action     Action
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

const (
	// DefaultPageSize is used when a listing request gives no limit
	DefaultPageSize = 50
	// MaxPageSize caps a single audit listing page
	MaxPageSize = 100
)

// Normalize returns the query with paging defaulted and clamped
func (q Query) Normalize() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
