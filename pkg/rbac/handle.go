package rbac

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/openclaw/hello-api/pkg/apierror"
)

// Handle handles HTTP requests for role and assignment management
type Handle struct {
	roleService *RoleService
}

// NewHandle creates a new role handler
func NewHandle(roleService *RoleService) *Handle {
	return &Handle{roleService: roleService}
}

// RegisterRoutes registers the role management routes behind the guard
func (h *Handle) RegisterRoutes(r chi.Router, guard *Guard) {
	r.Route("/roles", func(r chi.Router) {
		r.With(guard.RequirePermission(PermRbacRead)).Get("/", h.ListRoles)
		r.With(guard.RequirePermission(PermRbacRead)).Get("/{roleID}", h.GetRole)
	})
	r.Route("/users/{userID}/roles", func(r chi.Router) {
		r.With(guard.RequirePermission(PermRbacRead)).Get("/", h.ListUserRoles)
		r.With(guard.RequirePermission(PermRbacWrite)).Post("/", h.AssignRole)
		r.With(guard.RequirePermission(PermRbacWrite)).Put("/", h.ReplaceUserRoles)
		r.With(guard.RequirePermission(PermRbacWrite)).Delete("/{roleID}", h.RemoveRole)
	})
}

// ListRoles handles the request to list all roles
func (h *Handle) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.FindRoles(r.Context())
	if err != nil {
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to list roles"))
		return
	}
	render.JSON(w, r, roles)
}

// GetRole handles the request to get a single role
func (h *Handle) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid role id"))
		return
	}

	role, err := h.roleService.GetRole(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			apierror.WriteJSON(w, r, apierror.NotFound("role", roleID.String()))
			return
		}
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to get role"))
		return
	}
	render.JSON(w, r, role)
}

// ListUserRoles handles the request to list a user's role assignments
func (h *Handle) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid user id"))
		return
	}

	assignments, err := h.roleService.AssignmentsForUser(r.Context(), userID)
	if err != nil {
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to list user roles"))
		return
	}
	render.JSON(w, r, assignments)
}

// AssignRoleRequest is the request body for assigning a role to a user
type AssignRoleRequest struct {
	RoleID uuid.UUID `json:"roleId"`
}

// AssignRole handles the request to assign a role to a user.
// Assigning a role the user already holds returns the existing assignment.
func (h *Handle) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid user id"))
		return
	}

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid request body"))
		return
	}
	if req.RoleID == uuid.Nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "roleId is required"))
		return
	}

	assignment, err := h.roleService.AssignRole(r.Context(), userID, req.RoleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			apierror.WriteJSON(w, r, apierror.NotFound("role", req.RoleID.String()))
			return
		}
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to assign role"))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, assignment)
}

// ReplaceUserRolesRequest is the request body for replacing a user's roles
type ReplaceUserRolesRequest struct {
	RoleIDs []uuid.UUID `json:"roleIds"`
}

// ReplaceUserRoles handles the request to replace a user's full role set
func (h *Handle) ReplaceUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid user id"))
		return
	}

	var req ReplaceUserRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid request body"))
		return
	}

	assignments, err := h.roleService.SetUserRoles(r.Context(), userID, req.RoleIDs)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeNotFound, "one or more roles not found"))
			return
		}
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to replace user roles"))
		return
	}
	render.JSON(w, r, assignments)
}

// RemoveRole handles the request to remove a role assignment from a user
func (h *Handle) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid user id"))
		return
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid role id"))
		return
	}

	if err := h.roleService.RemoveRole(r.Context(), userID, roleID); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			apierror.WriteJSON(w, r, apierror.NotFound("role assignment", roleID.String()))
			return
		}
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to remove role"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
