package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/internal/repository"
	apperrors "github.com/charlesng35/clinic/pkg/errors"
)

// ErrAppointmentNotFound indicates the requested appointment does not exist.
var ErrAppointmentNotFound = apperrors.New("APPOINTMENT_NOT_FOUND", "Appointment not found", http.StatusNotFound)

// CreateAppointmentInput describes a new appointment.
type CreateAppointmentInput struct {
	DoctorID        int64
	PatientID       int64
	ScheduledAt     time.Time
	DurationMinutes int
	Status          models.AppointmentStatus
	Notes           string
}

// UpdateAppointmentInput enumerates mutable appointment attributes.
type UpdateAppointmentInput struct {
	DoctorID        *int64
	PatientID       *int64
	ScheduledAt     *time.Time
	DurationMinutes *int
	Status          *models.AppointmentStatus
	Notes           *string
}

// AppointmentService books patients with doctors.
type AppointmentService struct {
	resource cachedResource[models.Appointment]
	doctors  repository.Reader[models.Doctor]
	patients repository.Reader[models.Patient]
}

// NewAppointmentService constructs an AppointmentService. cache may be nil.
func NewAppointmentService(
	repo repository.CRUD[models.Appointment],
	doctors repository.Reader[models.Doctor],
	patients repository.Reader[models.Patient],
	cache *CacheService,
) (*AppointmentService, error) {
	if repo == nil || doctors == nil || patients == nil {
		return nil, errors.New("appointment service: repositories are required")
	}
	return &AppointmentService{
		resource: newCachedResource[models.Appointment]("appointments", repo, cache, CachePrefixAppointment, CachePrefixAppointments, ErrAppointmentNotFound),
		doctors:  doctors,
		patients: patients,
	}, nil
}

// Create books an appointment after checking the doctor and patient exist.
func (s *AppointmentService) Create(ctx context.Context, input CreateAppointmentInput) (*models.Appointment, error) {
	ctx = ensureContext(ctx)
	if input.DoctorID <= 0 || input.PatientID <= 0 {
		return nil, apperrors.NewBadRequest("doctor_id and patient_id are required")
	}
	if input.ScheduledAt.IsZero() {
		return nil, apperrors.NewBadRequest("scheduled_at is required")
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown appointment status %q", input.Status))
	}
	if input.DurationMinutes < 0 {
		return nil, apperrors.NewBadRequest("duration_minutes cannot be negative")
	}
	if err := s.checkParticipants(ctx, input.DoctorID, input.PatientID); err != nil {
		return nil, err
	}

	appointment := &models.Appointment{
		DoctorID:        input.DoctorID,
		PatientID:       input.PatientID,
		ScheduledAt:     input.ScheduledAt.UTC(),
		DurationMinutes: input.DurationMinutes,
		Status:          input.Status,
		Notes:           strings.TrimSpace(input.Notes),
	}
	if err := s.resource.create(ctx, appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

// Get loads an appointment, serving from the cache when possible.
func (s *AppointmentService) Get(ctx context.Context, id int64) (*models.Appointment, error) {
	return s.resource.get(ctx, id)
}

// List pages through appointments.
func (s *AppointmentService) List(ctx context.Context, opts repository.ListOptions) (repository.Page[models.Appointment], error) {
	return s.resource.list(ctx, opts)
}

// Update edits an appointment.
func (s *AppointmentService) Update(ctx context.Context, id int64, input UpdateAppointmentInput) (*models.Appointment, error) {
	ctx = ensureContext(ctx)
	updates := map[string]any{}

	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown appointment status %q", *input.Status))
		}
		updates["status"] = *input.Status
	}
	if input.ScheduledAt != nil {
		if input.ScheduledAt.IsZero() {
			return nil, apperrors.NewBadRequest("scheduled_at cannot be empty")
		}
		updates["scheduled_at"] = input.ScheduledAt.UTC()
	}
	if input.DurationMinutes != nil {
		if *input.DurationMinutes <= 0 {
			return nil, apperrors.NewBadRequest("duration_minutes must be positive")
		}
		updates["duration_minutes"] = *input.DurationMinutes
	}
	if input.Notes != nil {
		updates["notes"] = strings.TrimSpace(*input.Notes)
	}
	if input.DoctorID != nil || input.PatientID != nil {
		var doctorID, patientID int64
		if input.DoctorID != nil {
			doctorID = *input.DoctorID
			updates["doctor_id"] = doctorID
		}
		if input.PatientID != nil {
			patientID = *input.PatientID
			updates["patient_id"] = patientID
		}
		if err := s.checkParticipants(ctx, doctorID, patientID); err != nil {
			return nil, err
		}
	}

	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	return s.resource.update(ctx, id, updates)
}

// Delete cancels and removes an appointment.
func (s *AppointmentService) Delete(ctx context.Context, id int64) error {
	return s.resource.delete(ctx, id)
}

// checkParticipants verifies the referenced doctor and patient exist. Zero IDs are skipped.
func (s *AppointmentService) checkParticipants(ctx context.Context, doctorID, patientID int64) error {
	if doctorID != 0 {
		if _, err := s.doctors.FindByID(ctx, doctorID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewBadRequest(fmt.Sprintf("doctor %d does not exist", doctorID))
			}
			return fmt.Errorf("appointment service: load doctor: %w", err)
		}
	}
	if patientID != 0 {
		if _, err := s.patients.FindByID(ctx, patientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewBadRequest(fmt.Sprintf("patient %d does not exist", patientID))
			}
			return fmt.Errorf("appointment service: load patient: %w", err)
		}
	}
	return nil
}
