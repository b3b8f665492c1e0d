package hello

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/openclaw/hello-api/pkg/apierror"
	"github.com/openclaw/hello-api/pkg/rbac"
)

// Handle handles HTTP requests for hello entities
type Handle struct {
	service  *Service
	validate *validator.Validate
}

// NewHandle creates a new hello entity handler
func NewHandle(service *Service) *Handle {
	return &Handle{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes registers the hello entity routes behind the guard
func (h *Handle) RegisterRoutes(r chi.Router, guard *rbac.Guard) {
	r.Route("/hello-entities", func(r chi.Router) {
		r.With(guard.RequireAnyPermission(rbac.PermHelloRead)).Get("/", h.ListEntities)
		r.With(guard.RequireAnyPermission(rbac.PermHelloRead)).Get("/{id}", h.GetEntity)
		r.With(guard.RequirePermission(rbac.PermHelloWrite)).Post("/", h.CreateEntity)
		r.With(guard.RequirePermission(rbac.PermHelloWrite)).Patch("/{id}", h.UpdateEntity)
		r.With(guard.RequirePermission(rbac.PermHelloWrite)).Delete("/{id}", h.DeleteEntity)
	})
}

// CreateEntityRequest is the request body for creating an entity
type CreateEntityRequest struct {
	Name        string         `json:"name" validate:"required,max=255"`
	Description *string        `json:"description" validate:"omitempty,max=2000"`
	IsActive    *bool          `json:"isActive"`
	Metadata    map[string]any `json:"metadata"`
}

// ListPage is the paged response shape for entity listings
type ListPage struct {
	Entities []Entity `json:"entities"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	Limit    int      `json:"limit"`
}

// CreateEntity handles the request to create an entity
func (h *Handle) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierror.WriteJSON(w, r, validationError(err))
		return
	}

	// New entities default to active unless the request says otherwise
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	entity, err := h.service.Create(r.Context(), CreateEntityParams{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    isActive,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.writeError(w, r, err, "failed to create entity")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, entity)
}

// GetEntity handles the request to get a single entity
func (h *Handle) GetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	entity, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to get entity")
		return
	}
	render.JSON(w, r, entity)
}

// ListEntities handles the request to list entities with optional isActive
// and search filters.
func (h *Handle) ListEntities(w http.ResponseWriter, r *http.Request) {
	params := ListParams{Search: r.URL.Query().Get("search")}
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil {
			params.Page = page
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			params.Limit = limit
		}
	}
	if activeStr := r.URL.Query().Get("isActive"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid isActive filter"))
			return
		}
		params.IsActive = &active
	}
	params = params.Normalize()

	entities, total, err := h.service.List(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err, "failed to list entities")
		return
	}
	render.JSON(w, r, ListPage{Entities: entities, Total: total, Page: params.Page, Limit: params.Limit})
}

// UpdateEntity handles the request to patch an entity. Omitted fields stay
// unchanged; explicit null clears description and metadata.
func (h *Handle) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	var req UpdateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid request body"))
		return
	}

	entity, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err, "failed to update entity")
		return
	}
	render.JSON(w, r, entity)
}

// DeleteEntity handles the request to delete an entity
func (h *Handle) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err, "failed to delete entity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) entityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid entity id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handle) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrEntityNotFound):
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeNotFound, "hello entity not found"))
	case errors.Is(err, ErrNameTaken):
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeAlreadyExists, "entity name already taken"))
	case errors.Is(err, ErrNullField):
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, err.Error()))
	default:
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, fallback))
	}
}

func validationError(err error) *apierror.Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierror.New(apierror.ErrCodeValidationFailed, "validation failed")
	}
	details := map[string]any{}
	for _, fieldErr := range fieldErrs {
		details[fieldErr.Field()] = "failed validation on " + fieldErr.Tag()
	}
	return apierror.ValidationFailed(details)
}
