package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User describes an account able to authenticate against the API.
type User struct {
	BaseModel

	Email     string `gorm:"uniqueIndex;size:320;not null" json:"email"`
	FirstName string `gorm:"size:128" json:"first_name"`
	LastName  string `gorm:"size:128" json:"last_name"`
	Password  string `gorm:"not null" json:"-"`

	// LastConnectedAt is a unix timestamp in seconds, relayed from the cache by the sync job.
	LastConnectedAt int64 `gorm:"default:0" json:"last_connected_at"`

	ResetPasswordToken   *string    `gorm:"size:64;index" json:"-"`
	ResetPasswordExpires *time.Time `json:"-"`
}

// BeforeSave normalises the email address.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
