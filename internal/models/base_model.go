package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel provides shared fields for all persistent models.
type BaseModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"modified_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetID exposes the identifier so generic repositories and caches can key records.
func (m BaseModel) GetID() int64 {
	return m.ID
}
