package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/models"
)

// ErrRemoteRejected is returned when the remote ledger does not accept a token.
var ErrRemoteRejected = errors.New("remote ledger rejected the token")

// DirectoryFactory returns a remote directory authenticated with token.
type DirectoryFactory func(token string) ledger.Directory

var _ Authenticator = (*RemoteAuthenticator)(nil)

// RemoteAuthenticator signs users in with a remote ledger access token. The
// token is proven by fetching the current user, who is then upserted locally
// by remote id. The token itself is not stored.
type RemoteAuthenticator struct {
	storage UserStorage
	dial    DirectoryFactory
}

// NewRemoteAuthenticator creates an authenticator backed by the remote ledger.
func NewRemoteAuthenticator(storage UserStorage, dial DirectoryFactory) *RemoteAuthenticator {
	return &RemoteAuthenticator{storage: storage, dial: dial}
}

// ValidateCredential rejects empty tokens.
func (a *RemoteAuthenticator) ValidateCredential(credential string) error {
	if credential == "" {
		return ErrMissingToken
	}
	return nil
}

// Register links the remote account; email and name are taken from the
// remote profile when it has them.
func (a *RemoteAuthenticator) Register(ctx context.Context, email, name, credential string) (*models.User, error) {
	return a.link(ctx, email, name, credential)
}

// Authenticate links the remote account. email is a fallback for profiles
// without one.
func (a *RemoteAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	return a.link(ctx, email, "", credential)
}

func (a *RemoteAuthenticator) link(ctx context.Context, email, name, token string) (*models.User, error) {
	if err := a.ValidateCredential(token); err != nil {
		return nil, err
	}

	remote, err := a.dial(token).CurrentUser(ctx)
	if err != nil {
		var lerr *ledger.Error
		if errors.As(err, &lerr) && (lerr.StatusCode == 401 || lerr.StatusCode == 403) {
			return nil, fmt.Errorf("%w: %v", ErrRemoteRejected, err)
		}
		return nil, fmt.Errorf("failed to fetch remote user: %w", err)
	}
	if remote.ID == "" {
		return nil, ErrRemoteRejected
	}

	user := &models.User{
		RemoteID: remote.ID,
		Name:     remote.Name,
		Email:    normalizeEmail(remote.Email),
	}
	if user.Name == "" {
		user.Name = name
	}
	if user.Email == "" {
		user.Email = normalizeEmail(email)
	}

	if err := a.storage.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	slog.Info("Remote account linked", "user_id", user.ID, "remote_id", user.RemoteID)
	return user, nil
}
