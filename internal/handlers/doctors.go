package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/repository"
	"github.com/charlesng35/clinic/internal/services"
	"github.com/charlesng35/clinic/pkg/response"
)

type DoctorHandler struct {
	service *services.DoctorService
}

type createDoctorRequest struct {
	Email     string `json:"email" validate:"required,email,max=320"`
	FirstName string `json:"first_name" validate:"required,notblank,max=128"`
	LastName  string `json:"last_name" validate:"required,notblank,max=128"`
	Specialty string `json:"specialty" validate:"max=128"`
	Password  string `json:"password" validate:"omitempty,min=8,max=128"`
}

type updateDoctorRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=320"`
	FirstName *string `json:"first_name" validate:"omitempty,notblank,max=128"`
	LastName  *string `json:"last_name" validate:"omitempty,notblank,max=128"`
	Specialty *string `json:"specialty" validate:"omitempty,max=128"`
}

func NewDoctorHandler(service *services.DoctorService) *DoctorHandler {
	return &DoctorHandler{service: service}
}

// POST /api/doctors
func (h *DoctorHandler) Create(c *gin.Context) {
	var body createDoctorRequest
	if !bindAndValidate(c, &body) {
		return
	}

	doctor, err := h.service.Create(requestContext(c), services.CreateDoctorInput{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Specialty: body.Specialty,
		Password:  body.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, doctor)
}

// GET /api/doctors/:id
func (h *DoctorHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	doctor, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, doctor)
}

// GET /api/doctors
func (h *DoctorHandler) List(c *gin.Context) {
	opts, ok := listOptions(c, repository.DoctorFilterFields)
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

// PATCH /api/doctors/:id
func (h *DoctorHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body updateDoctorRequest
	if !bindAndValidate(c, &body) {
		return
	}

	doctor, err := h.service.Update(requestContext(c), id, services.UpdateDoctorInput{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Specialty: body.Specialty,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, doctor)
}

// DELETE /api/doctors/:id
func (h *DoctorHandler) Delete(c *gin.Context) {
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
