package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/openclaw/hello-api/pkg/apierror"
	"github.com/openclaw/hello-api/pkg/authn"
)

// UserDirectory maps a verified token subject to the local user record.
// Implemented by the iam user service.
type UserDirectory interface {
	UserIDBySubject(ctx context.Context, subject string) (uuid.UUID, error)
}

// ErrUnknownSubject is returned by a UserDirectory when no local user exists
// for the subject. The guard treats this the same as holding zero roles.
var ErrUnknownSubject = errors.New("unknown subject")

// Caller is the authorization result attached to the request context on a
// successful permission check, so downstream handlers skip a second store
// round-trip.
type Caller struct {
	UserID   uuid.UUID
	Identity *authn.Identity
	Roles    []Role
}

type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "rbac context value " + k.name
}

var callerKey = &contextKey{"Caller"}

// WithCaller returns a context carrying the authorization result
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the authorization result attached by the guard
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerKey).(*Caller)
	return caller, ok && caller != nil
}

// RolesFromContext returns the caller's resolved roles attached by the guard
func RolesFromContext(ctx context.Context) ([]Role, bool) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return nil, false
	}
	return caller.Roles, true
}

// Guard enforces permission checks over a caller's resolved roles.
// Evaluation order is fixed: identity first (401 when absent), then role
// resolution, then membership (403 when insufficient).
type Guard struct {
	roles *RoleService
	users UserDirectory
}

// NewGuard creates a new authorization guard
func NewGuard(roles *RoleService, users UserDirectory) *Guard {
	return &Guard{roles: roles, users: users}
}

type checkFunc func(PermissionSet) bool

func (g *Guard) require(perms []string, check checkFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authn.IdentityFromContext(r.Context())
			if !ok {
				apierror.WriteJSON(w, r, apierror.Unauthorized("authentication required"))
				return
			}

			caller, err := g.resolveCaller(r.Context(), identity)
			if err != nil {
				slog.Error("failed to resolve caller roles", "subject", identity.UserID, "err", err)
				apierror.WriteJSON(w, r, apierror.New(apierror.ErrCodeInternal, "failed to resolve permissions"))
				return
			}

			if !check(EffectivePermissions(caller.Roles)) {
				slog.Warn("permission denied",
					"subject", identity.UserID,
					"required", perms)
				apierror.WriteJSON(w, r, apierror.Forbidden(
					"missing required permission: "+strings.Join(perms, ", ")))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// resolveCaller maps the token subject to the local user and loads roles.
// A subject with no local user record carries zero roles; the membership
// check then fails with Forbidden rather than Unauthenticated, since the
// identity itself is valid.
func (g *Guard) resolveCaller(ctx context.Context, identity *authn.Identity) (*Caller, error) {
	userID, err := g.users.UserIDBySubject(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUnknownSubject) {
			return &Caller{Identity: identity, Roles: []Role{}}, nil
		}
		return nil, err
	}

	roles, err := g.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Caller{UserID: userID, Identity: identity, Roles: roles}, nil
}

// RequirePermission requires the caller to hold the permission (or wildcard)
func (g *Guard) RequirePermission(perm string) func(http.Handler) http.Handler {
	return g.require([]string{perm}, func(set PermissionSet) bool {
		return set.Has(perm)
	})
}

// RequireAnyPermission requires at least one of the permissions (or wildcard)
func (g *Guard) RequireAnyPermission(perms ...string) func(http.Handler) http.Handler {
	return g.require(perms, func(set PermissionSet) bool {
		return set.HasAny(perms...)
	})
}

// RequireAllPermissions requires every one of the permissions (or wildcard)
func (g *Guard) RequireAllPermissions(perms ...string) func(http.Handler) http.Handler {
	return g.require(perms, func(set PermissionSet) bool {
		return set.HasAll(perms...)
	})
}
