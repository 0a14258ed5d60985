package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/clinic/internal/auth"
	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/pkg/crypto"
	apperrors "github.com/charlesng35/clinic/pkg/errors"
	"github.com/charlesng35/clinic/pkg/logger"
	"github.com/charlesng35/clinic/pkg/metrics"
)

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateAccessToken(input auth.AccessTokenInput) (string, error)
}

// ConnectionRecorder notes that a user has just connected.
type ConnectionRecorder interface {
	SaveLastConnected(ctx context.Context, id int64) error
}

// AuthResult is returned on successful authentication.
type AuthResult struct {
	AccessToken string `json:"access_token"`
}

// AuthService registers accounts and exchanges credentials for access tokens.
type AuthService struct {
	users    *UserService
	tokens   TokenIssuer
	recorder ConnectionRecorder
	log      *zap.Logger
}

// NewAuthService constructs an AuthService. recorder may be nil to skip last-connected tracking.
func NewAuthService(users *UserService, tokens TokenIssuer, recorder ConnectionRecorder) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("auth service: user service is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		recorder: recorder,
		log:      logger.WithModule("auth"),
	}, nil
}

// Register creates a new account.
func (s *AuthService) Register(ctx context.Context, input CreateUserInput) (*models.User, error) {
	return s.users.Create(ctx, input)
}

// Authenticate verifies credentials, records the connection and returns a signed access token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(auth.AccessTokenInput{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	if s.recorder != nil {
		if err := s.recorder.SaveLastConnected(ctx, user.ID); err != nil {
			s.log.Warn("record last connection failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &AuthResult{AccessToken: token}, nil
}
