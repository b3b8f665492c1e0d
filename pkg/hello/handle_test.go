package hello

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/hello-api/pkg/audit"
	"github.com/openclaw/hello-api/pkg/authn"
	"github.com/openclaw/hello-api/pkg/rbac"
)

type fixedDirectory struct {
	subject string
	userID  uuid.UUID
}

func (d fixedDirectory) UserIDBySubject(ctx context.Context, subject string) (uuid.UUID, error) {
	if subject != d.subject {
		return uuid.Nil, rbac.ErrUnknownSubject
	}
	return d.userID, nil
}

func setupRouter(t *testing.T) (*chi.Mux, *Service, context.Context) {
	t.Helper()
	userID := uuid.New()

	roleRepo := rbac.NewInMemoryRoleRepository()
	role := roleRepo.SeedRole(rbac.Role{Name: "editor", Permissions: []string{rbac.PermHelloRead, rbac.PermHelloWrite}})
	roleService := rbac.NewRoleService(roleRepo)
	_, err := roleService.AssignRole(context.Background(), userID, role.ID)
	require.NoError(t, err)

	service := NewService(NewInMemoryEntityRepository(), audit.NewService(audit.NewInMemoryRepository()))
	guard := rbac.NewGuard(roleService, fixedDirectory{subject: "user_1", userID: userID})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := authn.WithIdentity(req.Context(), &authn.Identity{UserID: "user_1"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandle(service).RegisterRoutes(r, guard)

	return r, service, rbac.WithCaller(context.Background(), &rbac.Caller{UserID: userID})
}

func TestUpdateEntityRoutedAsPatch(t *testing.T) {
	router, service, ctx := setupRouter(t)
	entity, err := service.Create(ctx, CreateEntityParams{Name: "greeting", IsActive: true})
	require.NoError(t, err)

	body := []byte(`{"name":"renamed","description":null}`)
	req := httptest.NewRequest(http.MethodPatch, "/hello-entities/"+entity.ID.String(), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := service.Get(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	req = httptest.NewRequest(http.MethodPut, "/hello-entities/"+entity.ID.String(), bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
