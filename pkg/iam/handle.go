package iam

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/openclaw/hello-api/pkg/apierror"
	"github.com/openclaw/hello-api/pkg/rbac"
)

// Webhook event types delivered by the identity provider
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "X-Webhook-Signature"

// maxWebhookBody caps the accepted webhook payload size
const maxWebhookBody = 1 << 20

// Handle handles HTTP requests for users and the identity provider webhook
type Handle struct {
	userService   *UserService
	webhookSecret string
}

// NewHandle creates a new user handler. webhookSecret enables signature
// verification on webhook deliveries when non-empty.
func NewHandle(userService *UserService, webhookSecret string) *Handle {
	return &Handle{userService: userService, webhookSecret: webhookSecret}
}

// RegisterRoutes registers the user admin routes behind the guard
func (h *Handle) RegisterRoutes(r chi.Router, guard *rbac.Guard) {
	r.Route("/users", func(r chi.Router) {
		r.Use(guard.RequirePermission(rbac.PermRbacRead))
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
	})
}

// RegisterWebhookRoutes registers the provider webhook endpoint. Webhook
// calls are authenticated by signature, not bearer token, so these routes
// mount outside the token middleware.
func (h *Handle) RegisterWebhookRoutes(r chi.Router) {
	r.Post("/webhooks/identity", h.HandleWebhook)
}

// ListUsers handles the request to list all local users
func (h *Handle) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.FindUsers(r.Context())
	if err != nil {
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to list users"))
		return
	}
	render.JSON(w, r, users)
}

// GetUser handles the request to get a single user
func (h *Handle) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid user id"))
		return
	}

	user, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			apierror.WriteJSON(w, r, apierror.NotFound("user", id.String()))
			return
		}
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to get user"))
		return
	}
	render.JSON(w, r, user)
}

// webhookEvent is the provider's delivery envelope
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		ImageURL  string `json:"image_url"`
	} `json:"data"`
}

// HandleWebhook handles identity provider account events. Unknown event
// types are acknowledged so the provider stops retrying them; sync failures
// return 5xx so delivery is retried.
func (h *Handle) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "failed to read request body"))
		return
	}

	if h.webhookSecret != "" && !verifySignature(h.webhookSecret, body, r.Header.Get(SignatureHeader)) {
		slog.Warn("webhook signature verification failed")
		apierror.WriteJSON(w, r, apierror.Unauthorized("invalid webhook signature"))
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "invalid webhook payload"))
		return
	}
	if ev.Data.ID == "" {
		apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeValidationFailed, "webhook event missing user id"))
		return
	}

	profile := ProfileEvent{
		Subject:    ev.Data.ID,
		Email:      ev.Data.Email,
		GivenName:  ev.Data.FirstName,
		FamilyName: ev.Data.LastName,
		AvatarURL:  ev.Data.ImageURL,
	}

	switch ev.Type {
	case EventUserCreated:
		_, err = h.userService.SyncCreated(r.Context(), profile)
	case EventUserUpdated:
		_, err = h.userService.SyncUpdated(r.Context(), profile)
	case EventUserDeleted:
		err = h.userService.SyncDeleted(r.Context(), ev.Data.ID)
	default:
		slog.Info("ignoring unknown webhook event type", "type", ev.Type)
		render.JSON(w, r, map[string]string{"status": "ignored"})
		return
	}

	if err != nil {
		// An update or delete for a subject that never synced is not
		// retryable, acknowledge it.
		if errors.Is(err, ErrUserNotFound) {
			slog.Warn("webhook event for unknown subject", "type", ev.Type, "subject", ev.Data.ID)
			render.JSON(w, r, map[string]string{"status": "ignored"})
			return
		}
		slog.Error("failed to process webhook event", "type", ev.Type, "subject", ev.Data.ID, "err", err)
		apierror.WriteJSON(w, r, apierror.Wrap(err, apierror.ErrCodeInternal, "failed to process webhook event"))
		return
	}

	render.JSON(w, r, map[string]string{"status": "ok"})
}

func verifySignature(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
