package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/internal/repository"
	apperrors "github.com/charlesng35/clinic/pkg/errors"
)

// ErrDoctorNotFound indicates the requested doctor does not exist.
var ErrDoctorNotFound = apperrors.New("DOCTOR_NOT_FOUND", "Doctor not found", http.StatusNotFound)

// CreateDoctorInput describes a new doctor.
type CreateDoctorInput struct {
	Email     string
	FirstName string
	LastName  string
	Specialty string
	Password  string
}

// UpdateDoctorInput enumerates mutable doctor attributes.
type UpdateDoctorInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Specialty *string
}

// DoctorService manages doctors.
type DoctorService struct {
	resource cachedResource[models.Doctor]
}

// NewDoctorService constructs a DoctorService. cache may be nil.
func NewDoctorService(repo repository.CRUD[models.Doctor], cache *CacheService) (*DoctorService, error) {
	if repo == nil {
		return nil, errors.New("doctor service: repository is required")
	}
	return &DoctorService{
		resource: newCachedResource[models.Doctor]("doctors", repo, cache, CachePrefixDoctor, CachePrefixDoctors, ErrDoctorNotFound),
	}, nil
}

// Create registers a doctor. The password is optional and hashed when supplied.
func (s *DoctorService) Create(ctx context.Context, input CreateDoctorInput) (*models.Doctor, error) {
	doctor := &models.Doctor{
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Specialty: strings.TrimSpace(input.Specialty),
	}
	if doctor.Email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if input.Password != "" {
		hashed, err := hashNewPassword(input.Password)
		if err != nil {
			return nil, err
		}
		doctor.Password = hashed
	}

	if err := s.resource.create(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

// Get loads a doctor, serving from the cache when possible.
func (s *DoctorService) Get(ctx context.Context, id int64) (*models.Doctor, error) {
	return s.resource.get(ctx, id)
}

// List pages through doctors.
func (s *DoctorService) List(ctx context.Context, opts repository.ListOptions) (repository.Page[models.Doctor], error) {
	return s.resource.list(ctx, opts)
}

// Update edits a doctor.
func (s *DoctorService) Update(ctx context.Context, id int64, input UpdateDoctorInput) (*models.Doctor, error) {
	updates := map[string]any{}
	setTrimmed(updates, "first_name", input.FirstName)
	setTrimmed(updates, "last_name", input.LastName)
	setTrimmed(updates, "specialty", input.Specialty)
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, apperrors.NewBadRequest("email cannot be empty")
		}
		updates["email"] = email
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	return s.resource.update(ctx, id, updates)
}

// Delete removes a doctor.
func (s *DoctorService) Delete(ctx context.Context, id int64) error {
	return s.resource.delete(ctx, id)
}

func setTrimmed(updates map[string]any, column string, value *string) {
	if value != nil {
		updates[column] = strings.TrimSpace(*value)
	}
}
