package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/internal/repository"
	"github.com/charlesng35/clinic/internal/services"
	"github.com/charlesng35/clinic/pkg/response"
)

type AppointmentHandler struct {
	service *services.AppointmentService
}

type createAppointmentRequest struct {
	DoctorID        int64     `json:"doctor_id" validate:"required,gt=0"`
	PatientID       int64     `json:"patient_id" validate:"required,gt=0"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,gt=0,max=1440"`
	Status          string    `json:"status" validate:"omitempty,oneof=scheduled confirmed completed cancelled"`
	Notes           string    `json:"notes" validate:"max=2000"`
}

type updateAppointmentRequest struct {
	DoctorID        *int64     `json:"doctor_id" validate:"omitempty,gt=0"`
	PatientID       *int64     `json:"patient_id" validate:"omitempty,gt=0"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gt=0,max=1440"`
	Status          *string    `json:"status" validate:"omitempty,oneof=scheduled confirmed completed cancelled"`
	Notes           *string    `json:"notes" validate:"omitempty,max=2000"`
}

func NewAppointmentHandler(service *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// POST /api/appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	var body createAppointmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	appointment, err := h.service.Create(requestContext(c), services.CreateAppointmentInput{
		DoctorID:        body.DoctorID,
		PatientID:       body.PatientID,
		ScheduledAt:     body.ScheduledAt,
		DurationMinutes: body.DurationMinutes,
		Status:          models.AppointmentStatus(body.Status),
		Notes:           body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, appointment)
}

// GET /api/appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	appointment, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, appointment)
}

// GET /api/appointments
func (h *AppointmentHandler) List(c *gin.Context) {
	opts, ok := listOptions(c, repository.AppointmentFilterFields)
	if !ok {
		return
	}

	page, err := h.service.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, page)
}

// PATCH /api/appointments/:id
func (h *AppointmentHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body updateAppointmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	input := services.UpdateAppointmentInput{
		DoctorID:        body.DoctorID,
		PatientID:       body.PatientID,
		ScheduledAt:     body.ScheduledAt,
		DurationMinutes: body.DurationMinutes,
		Notes:           body.Notes,
	}
	if body.Status != nil {
		status := models.AppointmentStatus(*body.Status)
		input.Status = &status
	}

	appointment, err := h.service.Update(requestContext(c), id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, appointment)
}

// DELETE /api/appointments/:id
func (h *AppointmentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
