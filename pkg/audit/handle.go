package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/openclaw/hello-api/pkg/apierror"
	"github.com/openclaw/hello-api/pkg/rbac"
)

// Handle handles HTTP requests for reading the audit trail
type Handle struct {
	service *Service
}

// NewHandle creates a new audit handler
func NewHandle(service *Service) *Handle {
	return &Handle{service: service}
}

// RegisterRoutes registers the audit trail routes behind the guard
func (h *Handle) RegisterRoutes(r chi.Router, guard *rbac.Guard) {
	r.Route("/audit-logs", func(r chi.Router) {
		r.Use(guard.RequirePermission(rbac.PermAuditRead))
		r.Get("/", h.ListEntries)
		r.Get("/{id}", h.GetEntry)
		r.Get("/entity/{entityType}/{entityID}", h.ListEntityEntries)
	})
}

// ListPage is the paged response shape for audit trail listings
type ListPage struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// ListEntries handles the request to list audit entries with optional
// entityType, entityId, userId and action filters.
func (h *Handle) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := Query{
		EntityType: r.URL.Query().Get("entityType"),
		EntityID:   r.URL.Query().Get("entityId"),
		Action:     Action(r.URL.Query().Get("action")),
	}
	if userIDStr := r.URL.Query().Get("userId"); userIDStr != "" {
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid userId filter"))
			return
		}
		q.UserID = &userID
	}
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid from filter, expected RFC 3339 timestamp"))
			return
		}
		q.From = from
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid to filter, expected RFC 3339 timestamp"))
			return
		}
		q.To = to
	}
	q.Limit, q.Offset = pageParams(r)

	h.respondPage(w, r, q)
}

// ListEntityEntries handles the request for one entity's full change
// history, newest first. The trail of a single entity stays small, so this
// endpoint is not paginated.
func (h *Handle) ListEntityEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.EntityHistory(r.Context(),
		chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to list audit entries"))
		return
	}
	render.JSON(w, r, entries)
}

func (h *Handle) respondPage(w http.ResponseWriter, r *http.Request, q Query) {
	q = q.Normalize()
	entries, total, err := h.service.Find(r.Context(), q)
	if err != nil {
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to list audit entries"))
		return
	}
	render.JSON(w, r, ListPage{Entries: entries, Total: total, Limit: q.Limit, Offset: q.Offset})
}

// GetEntry handles the request to get a single audit entry
func (h *Handle) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid audit entry id"))
		return
	}

	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			apierror.WriteJSON(w, r, apierror.NotFound("audit entry", id.String()))
			return
		}
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to get audit entry"))
		return
	}
	render.JSON(w, r, entry)
}

func pageParams(r *http.Request) (limit, offset int) {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsed
		}
	}
	return limit, offset
}
