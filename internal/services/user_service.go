package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/internal/repository"
	"github.com/charlesng35/clinic/pkg/crypto"
	apperrors "github.com/charlesng35/clinic/pkg/errors"
	"github.com/charlesng35/clinic/pkg/logger"
)

// MinPasswordLength is the shortest password accepted for any account.
const MinPasswordLength = 8

// DefaultResetTokenTTL bounds how long a password reset token stays valid.
const DefaultResetTokenTTL = time.Hour

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrPasswordTooShort rejects passwords below MinPasswordLength.
	ErrPasswordTooShort = apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	// ErrCurrentPasswordMismatch is returned when a password change presents the wrong current password.
	ErrCurrentPasswordMismatch = apperrors.New("USER_PASSWORD_MISMATCH", "Current password is incorrect", http.StatusBadRequest)
)

// UserStore is the persistence surface the user service depends on.
type UserStore interface {
	repository.CRUD[models.User]
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ResetNotifier delivers password reset tokens to their owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error
}

// LogResetNotifier writes reset tokens to the application log. Suitable for development only.
type LogResetNotifier struct{}

// SendPasswordReset logs the token.
func (LogResetNotifier) SendPasswordReset(_ context.Context, user *models.User, token string, expiresAt time.Time) error {
	logger.WithModule("users").Info("password reset requested",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("token", token),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// UserServiceOption customises a UserService.
type UserServiceOption func(*UserService)

// WithResetTokenTTL overrides DefaultResetTokenTTL.
func WithResetTokenTTL(ttl time.Duration) UserServiceOption {
	return func(s *UserService) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithResetNotifier sets how reset tokens reach users.
func WithResetNotifier(notifier ResetNotifier) UserServiceOption {
	return func(s *UserService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithUserClock overrides the clock used for reset token expiry.
func WithUserClock(now func() time.Time) UserServiceOption {
	return func(s *UserService) {
		if now != nil {
			s.now = now
		}
	}
}

// UserService manages the user lifecycle including password recovery.
type UserService struct {
	store    UserStore
	resource cachedResource[models.User]
	resetTTL time.Duration
	notifier ResetNotifier
	now      func() time.Time
}

// NewUserService constructs a UserService. cache may be nil to disable read-through caching.
func NewUserService(store UserStore, cache *CacheService, opts ...UserServiceOption) (*UserService, error) {
	if store == nil {
		return nil, errors.New("user service: store is required")
	}
	svc := &UserService{
		store:    store,
		resource: newCachedResource[models.User]("users", store, cache, CachePrefixUser, CachePrefixUsers, ErrUserNotFound),
		resetTTL: DefaultResetTokenTTL,
		notifier: LogResetNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create provisions a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	hashed, err := hashNewPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
	}
	if err := s.resource.create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get loads a user, serving from the cache when possible.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.resource.get(ctx, id)
}

// FindByEmail loads a user by email, bypassing the cache so the password hash is available.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.FindByEmail(ensureContext(ctx), email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find by email: %w", err)
	}
	return user, nil
}

// List retrieves users matching the supplied filters with pagination.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) (repository.Page[models.User], error) {
	return s.resource.list(ctx, opts)
}

// Update persists mutable attributes for an existing user.
func (s *UserService) Update(ctx context.Context, id int64, input UpdateUserInput) (*models.User, error) {
	updates := map[string]any{}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, apperrors.NewBadRequest("email cannot be empty")
		}
		updates["email"] = email
	}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	return s.resource.update(ctx, id, updates)
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.resource.delete(ctx, id)
}

// ForgotPassword issues a reset token for the account and hands it to the notifier.
func (s *UserService) ForgotPassword(ctx context.Context, email string) (string, error) {
	ctx = ensureContext(ctx)
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	expiresAt := s.now().Add(s.resetTTL)
	if _, err := s.store.Update(ctx, user.ID, map[string]any{
		"reset_password_token":   token,
		"reset_password_expires": expiresAt,
	}); err != nil {
		return "", fmt.Errorf("user service: store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user, token, expiresAt); err != nil {
		return "", fmt.Errorf("user service: send reset token: %w", err)
	}
	return token, nil
}

// ResetPassword sets a new password for the holder of a valid reset token and consumes the token.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.ErrInvalidResetToken
	}

	user, err := s.store.FindByResetToken(ctx, token, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("user service: find reset token: %w", err)
	}

	hashed, err := hashNewPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = s.resource.update(ctx, user.ID, map[string]any{
		"password":               hashed,
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	})
	return err
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)
	user, err := s.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return ErrCurrentPasswordMismatch
	}

	hashed, err := hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.resource.update(ctx, id, map[string]any{"password": hashed})
	return err
}

// ClearExpiredResetTokens drops reset tokens past their expiry.
func (s *UserService) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	cleared, err := s.store.ClearExpiredResetTokens(ensureContext(ctx), s.now())
	if err != nil {
		return 0, fmt.Errorf("user service: clear reset tokens: %w", err)
	}
	return cleared, nil
}

func hashNewPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hashed, nil
}
