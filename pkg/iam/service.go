package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/openclaw/hello-api/pkg/rbac"
)

var (
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a subject or email is already taken
	ErrUserExists = errors.New("user already exists")
)

// UserService syncs local user records from identity-provider events and
// serves the admin user listing.
type UserService struct {
	repo        UserRepository
	roles       *rbac.RoleService
	defaultRole string
}

// NewUserService creates a new user service. defaultRole names the role
// granted to newly synced users; it may be empty to grant none.
func NewUserService(repo UserRepository, roles *rbac.RoleService, defaultRole string) *UserService {
	return &UserService{repo: repo, roles: roles, defaultRole: defaultRole}
}

// FindUsers returns all local users
func (s *UserService) FindUsers(ctx context.Context) ([]User, error) {
	return s.repo.FindUsers(ctx)
}

// GetUser retrieves a user by local id
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetUserBySubject retrieves a user by provider subject
func (s *UserService) GetUserBySubject(ctx context.Context, subject string) (User, error) {
	return s.repo.GetBySubject(ctx, subject)
}

// UserIDBySubject maps a provider subject to the local user id. It satisfies
// the authorization guard's directory interface.
func (s *UserService) UserIDBySubject(ctx context.Context, subject string) (uuid.UUID, error) {
	user, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return uuid.Nil, rbac.ErrUnknownSubject
		}
		return uuid.Nil, err
	}
	return user.ID, nil
}

// SyncCreated handles a provider user.created event. Redelivery is
// tolerated: an already-synced subject returns the existing record
// unchanged.
func (s *UserService) SyncCreated(ctx context.Context, ev ProfileEvent) (User, error) {
	if existing, err := s.repo.GetBySubject(ctx, ev.Subject); err == nil {
		slog.Info("user already synced, skipping create", "user", existing)
		return existing, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("failed to look up subject %s: %w", ev.Subject, err)
	}

	user, err := s.repo.Create(ctx, CreateUserParams{
		Subject:    ev.Subject,
		Email:      ev.Email,
		GivenName:  ev.GivenName,
		FamilyName: ev.FamilyName,
		AvatarURL:  ev.AvatarURL,
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to create user for subject %s: %w", ev.Subject, err)
	}
	slog.Info("synced new user", "user", user)

	s.assignDefaultRole(ctx, user)
	return user, nil
}

// assignDefaultRole grants the configured default role to a new user. A
// missing role is logged, not fatal: the user exists either way.
func (s *UserService) assignDefaultRole(ctx context.Context, user User) {
	if s.defaultRole == "" {
		return
	}
	roleID, err := s.roles.GetRoleIDByName(ctx, s.defaultRole)
	if err != nil {
		slog.Warn("default role not found, user created without roles",
			"role", s.defaultRole, "user", user, "err", err)
		return
	}
	if _, err := s.roles.AssignRole(ctx, user.ID, roleID); err != nil {
		slog.Error("failed to assign default role", "role", s.defaultRole, "user", user, "err", err)
	}
}

// SyncUpdated handles a provider user.updated event
func (s *UserService) SyncUpdated(ctx context.Context, ev ProfileEvent) (User, error) {
	user, err := s.repo.UpdateBySubject(ctx, ev.Subject, UpdateUserParams{
		Email:      ev.Email,
		GivenName:  ev.GivenName,
		FamilyName: ev.FamilyName,
		AvatarURL:  ev.AvatarURL,
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to update user for subject %s: %w", ev.Subject, err)
	}
	slog.Info("synced user update", "user", user)
	return user, nil
}

// SyncDeleted handles a provider user.deleted event. Role assignments are
// removed along with the user.
func (s *UserService) SyncDeleted(ctx context.Context, subject string) error {
	user, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return fmt.Errorf("failed to look up subject %s: %w", subject, err)
	}
	if _, err := s.roles.SetUserRoles(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("failed to clear roles for user %s: %w", user.ID, err)
	}
	if err := s.repo.DeleteBySubject(ctx, subject); err != nil {
		return fmt.Errorf("failed to delete user for subject %s: %w", subject, err)
	}
	slog.Info("synced user deletion", "user", user)
	return nil
}
