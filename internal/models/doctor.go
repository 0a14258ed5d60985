package models

import (
	"strings"

	"gorm.io/gorm"
)

// Doctor is a practitioner appointments can be booked with.
type Doctor struct {
	BaseModel

	Email     string `gorm:"uniqueIndex;size:320;not null" json:"email"`
	FirstName string `gorm:"size:128;not null" json:"first_name"`
	LastName  string `gorm:"size:128;not null" json:"last_name"`
	Specialty string `gorm:"size:128" json:"specialty"`
	Password  string `json:"-"`
}

// BeforeSave normalises the email address.
func (d *Doctor) BeforeSave(tx *gorm.DB) error {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	return nil
}
