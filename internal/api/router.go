package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/app"
	iauth "github.com/charlesng35/clinic/internal/auth"
	"github.com/charlesng35/clinic/internal/cache"
	"github.com/charlesng35/clinic/internal/handlers"
	"github.com/charlesng35/clinic/internal/middleware"
	"github.com/charlesng35/clinic/internal/services"
)

// Dependencies carries the long-lived collaborators the HTTP layer is built from.
type Dependencies struct {
	Config *app.Config
	DB     *gorm.DB
	// Cache is optional; health reports it as disabled when nil.
	Cache     cache.Store
	JWT       *iauth.JWTService
	RateStore middleware.RateStore

	Auth         *services.AuthService
	Users        *services.UserService
	Doctors      *services.DoctorService
	Patients     *services.PatientService
	Appointments *services.AppointmentService
	Sync         *services.LastConnectedSync
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.JWT == nil:
		return errors.New("jwt service must be provided")
	case d.Auth == nil || d.Users == nil:
		return errors.New("auth and user services must be provided")
	case d.Doctors == nil || d.Patients == nil || d.Appointments == nil:
		return errors.New("clinic services must be provided")
	case d.Sync == nil:
		return errors.New("last connected sync must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))

	var cachePinger handlers.Pinger
	if deps.Cache != nil {
		cachePinger = deps.Cache
	}
	registerHealthRoutes(r, deps.DB, cachePinger)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	public := r.Group("/api")
	protected := r.Group("/api")
	protected.Use(middleware.Auth(deps.JWT))

	registerAuthRoutes(public, handlers.NewAuthHandler(deps.Auth))
	registerUserRoutes(public, protected, handlers.NewUserHandler(deps.Users))
	registerClinicRoutes(protected, clinicHandlers{
		doctors:      handlers.NewDoctorHandler(deps.Doctors),
		patients:     handlers.NewPatientHandler(deps.Patients),
		appointments: handlers.NewAppointmentHandler(deps.Appointments),
	})
	registerAdminRoutes(protected, handlers.NewSyncHandler(deps.Sync))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
