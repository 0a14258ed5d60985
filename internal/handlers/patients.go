package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/repository"
	"github.com/charlesng35/clinic/internal/services"
	"github.com/charlesng35/clinic/pkg/response"
)

type PatientHandler struct {
	service *services.PatientService
}

type createPatientRequest struct {
	Email       string     `json:"email" validate:"required,email,max=320"`
	FullName    string     `json:"full_name" validate:"required,notblank,max=256"`
	Phone       string     `json:"phone" validate:"omitempty,phone,max=32"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Password    string     `json:"password" validate:"omitempty,min=8,max=128"`
}

type updatePatientRequest struct {
	Email       *string    `json:"email" validate:"omitempty,email,max=320"`
	FullName    *string    `json:"full_name" validate:"omitempty,notblank,max=256"`
	Phone       *string    `json:"phone" validate:"omitempty,phone,max=32"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

func NewPatientHandler(service *services.PatientService) *PatientHandler {
	return &PatientHandler{service: service}
}

// POST /api/patients
func (h *PatientHandler) Create(c *gin.Context) {
	var body createPatientRequest
	if !bindAndValidate(c, &body) {
		return
	}

	patient, err := h.service.Create(requestContext(c), services.CreatePatientInput{
		Email:       body.Email,
		FullName:    body.FullName,
		Phone:       body.Phone,
		DateOfBirth: body.DateOfBirth,
		Password:    body.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, patient)
}

// GET /api/patients/:id
func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	patient, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, patient)
}

// GET /api/patients
func (h *PatientHandler) List(c *gin.Context) {
	opts, ok := listOptions(c, repository.PatientFilterFields)
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

// PATCH /api/patients/:id
func (h *PatientHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body updatePatientRequest
	if !bindAndValidate(c, &body) {
		return
	}

	patient, err := h.service.Update(requestContext(c), id, services.UpdatePatientInput{
		Email:       body.Email,
		FullName:    body.FullName,
		Phone:       body.Phone,
		DateOfBirth: body.DateOfBirth,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, patient)
}

// DELETE /api/patients/:id
func (h *PatientHandler) Delete(c *gin.Context) {
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
