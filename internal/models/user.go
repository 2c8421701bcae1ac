package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a local identity bound 1:1 to a remote-ledger user.
//
// Users created through LinkRemoteAccount are upserted by RemoteID. Users
// created through local registration have an empty RemoteID and a password
// hash; they can only record personal expenses until they link an account.
type User struct {
	// ID is the unique local identifier (UUID format).
	ID string

	// RemoteID is the user's id on the remote ledger. Empty for local-only accounts.
	RemoteID string

	// Name is the display name.
	Name string

	// Email is the user's email address.
	Email string

	// PasswordHash is the bcrypt hash for local accounts. Empty for remote-linked users.
	PasswordHash string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewUser returns a local account with a fresh ID and timestamps set.
func NewUser(email, name, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
