package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/models"
)

// UserFilterFields lists the columns user listings may filter on.
var UserFilterFields = []string{"email", "first_name", "last_name"}

// UserRepository adds user-specific queries to the generic repository.
type UserRepository struct {
	*GormRepository[models.User]
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *gorm.DB) (*UserRepository, error) {
	base, err := NewGormRepository[models.User](db, Config{Filterable: UserFilterFields})
	if err != nil {
		return nil, err
	}
	return &UserRepository{GormRepository: base}, nil
}

// FindByEmail loads a user by normalised email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// FindByResetToken loads the user holding an unexpired reset token.
func (r *UserRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	var user models.User
	err := r.DB(ctx).
		Where("reset_password_token = ? AND reset_password_expires > ?", token, now).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastConnected writes the last connection timestamp for a user and reports how many rows
// changed. Zero rows means the user no longer exists.
func (r *UserRepository) UpdateLastConnected(ctx context.Context, id int64, at int64) (int64, error) {
	result := r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_connected_at", at)
	return result.RowsAffected, result.Error
}

// ClearExpiredResetTokens removes reset tokens whose expiry has passed.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result := r.DB(ctx).
		Model(&models.User{}).
		Where("reset_password_token IS NOT NULL AND reset_password_expires <= ?", now).
		UpdateColumns(map[string]any{
			"reset_password_token":   nil,
			"reset_password_expires": nil,
		})
	return result.RowsAffected, result.Error
}
