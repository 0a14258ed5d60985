package models

import (
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus tracks the lifecycle of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled:
		return true
	default:
		return false
	}
}

// Appointment books a patient with a doctor at a point in time.
type Appointment struct {
	BaseModel

	DoctorID        int64             `gorm:"index;not null" json:"doctor_id"`
	PatientID       int64             `gorm:"index;not null" json:"patient_id"`
	ScheduledAt     time.Time         `gorm:"index;not null" json:"scheduled_at"`
	DurationMinutes int               `gorm:"default:30" json:"duration_minutes"`
	Status          AppointmentStatus `gorm:"size:16;index;not null" json:"status"`
	Notes           string            `json:"notes,omitempty"`

	Doctor  *Doctor  `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
}

// BeforeCreate applies lifecycle defaults.
func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = 30
	}
	return nil
}
