package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
	"github.com/mmynk/tripledger/pkg/api"
)

// AuthService implements the Connect AuthService.
type AuthService struct {
	passwords  auth.Authenticator
	remote     auth.Authenticator
	users      storage.UserStore
	jwtManager *auth.JWTManager
	logger     *slog.Logger
}

var _ api.AuthServiceHandler = (*AuthService)(nil)

// NewAuthService creates a new authentication service. remote may be nil,
// which disables LinkRemoteAccount.
func NewAuthService(passwords, remote auth.Authenticator, users storage.UserStore, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		passwords:  passwords,
		remote:     remote,
		users:      users,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

func (s *AuthService) session(user *models.User) (*api.User, string, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, "", connect.NewError(connect.CodeInternal, err)
	}
	return userToAPI(user), token, nil
}

// Register creates a local password account.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	s.logger.Info("Register request", "email", req.Msg.Email)

	if req.Msg.Email == "" || req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.passwords.Register(ctx, req.Msg.Email, req.Msg.Name, req.Msg.Password)
	if err != nil {
		s.logger.Error("Registration failed", "email", req.Msg.Email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	apiUser, token, err := s.session(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered successfully", "user_id", user.ID)
	return connect.NewResponse(&api.RegisterResponse{User: apiUser, Token: token}), nil
}

// Login authenticates a local password account.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	s.logger.Info("Login request", "email", req.Msg.Email)

	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.passwords.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Msg.Email, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	apiUser, token, err := s.session(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return connect.NewResponse(&api.LoginResponse{User: apiUser, Token: token}), nil
}

// LinkRemoteAccount signs in with a remote ledger access token, creating or
// refreshing the local user bound to the remote identity.
func (s *AuthService) LinkRemoteAccount(ctx context.Context, req *connect.Request[api.LinkRemoteAccountRequest]) (*connect.Response[api.LinkRemoteAccountResponse], error) {
	s.logger.Info("LinkRemoteAccount request")

	if s.remote == nil {
		return nil, toConnectError(errNoLedger)
	}
	user, err := s.remote.Authenticate(ctx, middleware.GetEmail(ctx), req.Msg.AccessToken)
	if err != nil {
		s.logger.Warn("LinkRemoteAccount failed", "error", err)
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		case errors.Is(err, auth.ErrRemoteRejected):
			return nil, connect.NewError(connect.CodeUnauthenticated, err)
		case errors.Is(err, ledger.ErrRemoteLedger):
			return nil, toConnectError(err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	apiUser, token, err := s.session(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Remote account linked successfully", "user_id", user.ID, "remote_id", user.RemoteID)
	return connect.NewResponse(&api.LinkRemoteAccountResponse{User: apiUser, Token: token}), nil
}

// GetCurrentUser returns the authenticated user.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	s.logger.Info("GetCurrentUser request", "user_id", userID)

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if user == nil {
		return nil, connect.NewError(connect.CodeNotFound, errMissingUser)
	}
	return connect.NewResponse(&api.GetCurrentUserResponse{User: userToAPI(user)}), nil
}
