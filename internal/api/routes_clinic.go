package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/handlers"
)

type clinicHandlers struct {
	doctors      *handlers.DoctorHandler
	patients     *handlers.PatientHandler
	appointments *handlers.AppointmentHandler
}

// resourceHandler is the create/get/get-all/edit/delete set every clinic resource exposes.
type resourceHandler interface {
	Create(*gin.Context)
	Get(*gin.Context)
	List(*gin.Context)
	Update(*gin.Context)
	Delete(*gin.Context)
}

func registerClinicRoutes(protected *gin.RouterGroup, h clinicHandlers) {
	registerResource(protected.Group("/doctors"), h.doctors)
	registerResource(protected.Group("/patients"), h.patients)
	registerResource(protected.Group("/appointments"), h.appointments)
}

func registerResource(group *gin.RouterGroup, handler resourceHandler) {
	group.POST("", handler.Create)
	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
	group.PATCH("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
}
