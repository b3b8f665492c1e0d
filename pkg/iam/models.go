package iam

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// User is the local record of an identity-provider account. Subject is the
// provider's user id and is the stable join key for webhook sync; Email is
// unique as well.
type User struct {
	ID         uuid.UUID `json:"id"`
	Subject    string    `json:"subject"`
	Email      string    `json:"email"`
	GivenName  string    `json:"givenName,omitempty"`
	FamilyName string    `json:"familyName,omitempty"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// LogValue keeps user log records to stable identifiers
func (u User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", u.ID.String()),
		slog.String("subject", u.Subject),
		slog.String("email", u.Email),
	)
}

// ProfileEvent is the provider-side account state carried by a sync event
type ProfileEvent struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	AvatarURL  string
}

// CreateUserParams holds the fields for creating a local user record
type CreateUserParams struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	AvatarURL  string
}

// UpdateUserParams holds the profile fields updated on provider sync
type UpdateUserParams struct {
	Email      string
	GivenName  string
	FamilyName string
	AvatarURL  string
}
