package iam

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryUserRepository implements UserRepository with in-memory maps,
// for testing and local development without a database.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

// NewInMemoryUserRepository creates a new in-memory user repository
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[uuid.UUID]User)}
}

// FindUsers returns all users ordered by email
func (r *InMemoryUserRepository) FindUsers(ctx context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// GetByID retrieves a user by local id
func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// GetBySubject retrieves a user by provider subject
func (r *InMemoryUserRepository) GetBySubject(ctx context.Context, subject string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.lookupSubject(subject)
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// Create inserts a new user record
func (r *InMemoryUserRepository) Create(ctx context.Context, arg CreateUserParams) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lookupSubject(arg.Subject); exists {
		return User{}, ErrUserExists
	}
	for _, existing := range r.users {
		if existing.Email == arg.Email {
			return User{}, ErrUserExists
		}
	}

	now := time.Now().UTC()
	user := User{
		ID:         uuid.New(),
		Subject:    arg.Subject,
		Email:      arg.Email,
		GivenName:  arg.GivenName,
		FamilyName: arg.FamilyName,
		AvatarURL:  arg.AvatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.users[user.ID] = user
	return user, nil
}

// UpdateBySubject replaces the profile fields of the user with the subject
func (r *InMemoryUserRepository) UpdateBySubject(ctx context.Context, subject string, arg UpdateUserParams) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.lookupSubject(subject)
	if !ok {
		return User{}, ErrUserNotFound
	}
	for _, existing := range r.users {
		if existing.ID != user.ID && existing.Email == arg.Email {
			return User{}, ErrUserExists
		}
	}

	user.Email = arg.Email
	user.GivenName = arg.GivenName
	user.FamilyName = arg.FamilyName
	user.AvatarURL = arg.AvatarURL
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

// DeleteBySubject removes the user with the given subject
func (r *InMemoryUserRepository) DeleteBySubject(ctx context.Context, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.lookupSubject(subject)
	if !ok {
		return ErrUserNotFound
	}
	delete(r.users, user.ID)
	return nil
}

// lookupSubject requires the caller to hold at least a read lock
func (r *InMemoryUserRepository) lookupSubject(subject string) (User, bool) {
	for _, user := range r.users {
		if user.Subject == subject {
			return user, true
		}
	}
	return User{}, false
}
