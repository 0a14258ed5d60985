package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Patient is a person receiving care.
type Patient struct {
	BaseModel

	Email       string     `gorm:"uniqueIndex;size:320;not null" json:"email"`
	FullName    string     `gorm:"size:256;not null" json:"full_name"`
	Phone       string     `gorm:"size:32" json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Password    string     `json:"-"`
}

// BeforeSave normalises the email address.
func (p *Patient) BeforeSave(tx *gorm.DB) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	return nil
}
