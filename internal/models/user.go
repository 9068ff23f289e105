// Package models holds the domain records shared between the storage and
// service layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the account record owned by the user datastore. The auth core
// reads it on every verification and mutates only the token version.
// Everything else belongs to the product backend.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Active       bool
	TokenVersion int
	CreatedAt    time.Time
}

// Profile is the public projection of a user returned over HTTP.
// It never carries the password hash or the token version.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile returns the HTTP-safe view of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
