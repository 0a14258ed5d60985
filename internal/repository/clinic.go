package repository

import (
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/models"
)

var (
	// DoctorFilterFields lists the columns doctor listings may filter on.
	DoctorFilterFields = []string{"email", "last_name", "specialty"}
	// PatientFilterFields lists the columns patient listings may filter on.
	PatientFilterFields = []string{"email", "full_name", "phone"}
	// AppointmentFilterFields lists the columns appointment listings may filter on.
	AppointmentFilterFields = []string{"doctor_id", "patient_id", "status"}
)

// NewDoctorRepository constructs the doctor repository.
func NewDoctorRepository(db *gorm.DB) (*GormRepository[models.Doctor], error) {
	return NewGormRepository[models.Doctor](db, Config{Filterable: DoctorFilterFields})
}

// NewPatientRepository constructs the patient repository.
func NewPatientRepository(db *gorm.DB) (*GormRepository[models.Patient], error) {
	return NewGormRepository[models.Patient](db, Config{Filterable: PatientFilterFields})
}

// NewAppointmentRepository constructs the appointment repository. Reads include the doctor and patient.
func NewAppointmentRepository(db *gorm.DB) (*GormRepository[models.Appointment], error) {
	return NewGormRepository[models.Appointment](db, Config{
		Filterable: AppointmentFilterFields,
		Preloads:   []string{"Doctor", "Patient"},
	})
}
