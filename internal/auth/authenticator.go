// Package auth issues session tokens and verifies user credentials.
package auth

import (
	"context"

	"github.com/mmynk/tripledger/internal/models"
)

// Authenticator verifies credentials for one sign-in method.
//
// Two implementations exist: PasswordAuthenticator for local accounts and
// RemoteAuthenticator for accounts proven by a remote ledger token.
type Authenticator interface {
	// Register creates an account. The credential format depends on the method.
	Register(ctx context.Context, email, name, credential string) (*models.User, error)

	// Authenticate returns the user the credential belongs to.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks the credential's format before any lookup.
	ValidateCredential(credential string) error
}
