package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/internal/repository"
	apperrors "github.com/charlesng35/clinic/pkg/errors"
)

// ErrPatientNotFound indicates the requested patient does not exist.
var ErrPatientNotFound = apperrors.New("PATIENT_NOT_FOUND", "Patient not found", http.StatusNotFound)

// CreatePatientInput describes a new patient.
type CreatePatientInput struct {
	Email       string
	FullName    string
	Phone       string
	DateOfBirth *time.Time
	Password    string
}

// UpdatePatientInput enumerates mutable patient attributes.
type UpdatePatientInput struct {
	Email       *string
	FullName    *string
	Phone       *string
	DateOfBirth *time.Time
}

// PatientService manages patients.
type PatientService struct {
	resource cachedResource[models.Patient]
}

// NewPatientService constructs a PatientService. cache may be nil.
func NewPatientService(repo repository.CRUD[models.Patient], cache *CacheService) (*PatientService, error) {
	if repo == nil {
		return nil, errors.New("patient service: repository is required")
	}
	return &PatientService{
		resource: newCachedResource[models.Patient]("patients", repo, cache, CachePrefixPatient, CachePrefixPatients, ErrPatientNotFound),
	}, nil
}

// Create registers a patient.
func (s *PatientService) Create(ctx context.Context, input CreatePatientInput) (*models.Patient, error) {
	patient := &models.Patient{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		FullName:    strings.TrimSpace(input.FullName),
		Phone:       strings.TrimSpace(input.Phone),
		DateOfBirth: input.DateOfBirth,
	}
	if patient.Email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if patient.FullName == "" {
		return nil, apperrors.NewBadRequest("full name is required")
	}
	if input.Password != "" {
		hashed, err := hashNewPassword(input.Password)
		if err != nil {
			return nil, err
		}
		patient.Password = hashed
	}

	if err := s.resource.create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// Get loads a patient, serving from the cache when possible.
func (s *PatientService) Get(ctx context.Context, id int64) (*models.Patient, error) {
	return s.resource.get(ctx, id)
}

// List pages through patients.
func (s *PatientService) List(ctx context.Context, opts repository.ListOptions) (repository.Page[models.Patient], error) {
	return s.resource.list(ctx, opts)
}

// Update edits a patient.
func (s *PatientService) Update(ctx context.Context, id int64, input UpdatePatientInput) (*models.Patient, error) {
	updates := map[string]any{}
	setTrimmed(updates, "full_name", input.FullName)
	setTrimmed(updates, "phone", input.Phone)
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, apperrors.NewBadRequest("email cannot be empty")
		}
		updates["email"] = email
	}
	if input.DateOfBirth != nil {
		updates["date_of_birth"] = *input.DateOfBirth
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	return s.resource.update(ctx, id, updates)
}

// Delete removes a patient.
func (s *PatientService) Delete(ctx context.Context, id int64) error {
	return s.resource.delete(ctx, id)
}
