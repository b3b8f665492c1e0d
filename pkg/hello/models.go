package hello

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType tags hello entities in the audit trail
const EntityType = "HelloEntity"

// Entity is the managed resource. Name is unique; CreatedBy/UpdatedBy point
// at local users and are nil when the writer has since been removed.
type Entity struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	IsActive    bool           `json:"isActive"`
	Metadata    map[string]any `json:"metadata"`
	CreatedBy   *uuid.UUID     `json:"createdBy"`
	UpdatedBy   *uuid.UUID     `json:"updatedBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CreateEntityParams holds the fields for creating an entity
type CreateEntityParams struct {
	Name        string
	Description *string
	IsActive    bool
	Metadata    map[string]any
	CreatedBy   *uuid.UUID
}

// Optional is a JSON-aware tri-state field for patch requests: a field can
// be absent (leave unchanged), explicit null (clear), or carry a value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON is only invoked for fields present in the document, so Set
// always becomes true here; absent fields keep the zero Optional.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// UpdateEntityRequest is the tri-state patch body for updating an entity.
// Name and IsActive may be set or omitted, never null.
type UpdateEntityRequest struct {
	Name        Optional[string]         `json:"name"`
	Description Optional[*string]        `json:"description"`
	IsActive    Optional[bool]           `json:"isActive"`
	Metadata    Optional[map[string]any] `json:"metadata"`
}

// ListParams pages and filters an entity listing
type ListParams struct {
	Page     int
	Limit    int
	IsActive *bool
	Search   string
}

const (
	// DefaultPageSize is used when a listing request gives no limit
	DefaultPageSize = 20
	// MaxPageSize caps a single listing page
	MaxPageSize = 100
)

// Normalize returns the params with paging defaulted and clamped
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset converts the 1-based page to a row offset
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
