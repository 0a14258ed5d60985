package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/api"
	"github.com/charlesng35/clinic/internal/app"
	"github.com/charlesng35/clinic/internal/app/maintenance"
	iauth "github.com/charlesng35/clinic/internal/auth"
	"github.com/charlesng35/clinic/internal/cache"
	"github.com/charlesng35/clinic/internal/database"
	"github.com/charlesng35/clinic/internal/middleware"
	"github.com/charlesng35/clinic/internal/repository"
	"github.com/charlesng35/clinic/internal/services"
	"github.com/charlesng35/clinic/pkg/logger"
)

// runtimeStack bundles long-lived resources used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Store     cache.Store
	Scheduler *maintenance.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime opens the database and cache, composes repositories and services, starts the
// background jobs and builds the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup failed", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store = initialiseCacheStore(cfg, stack.DB, log)

	cacheSvc, err := services.NewCacheService(stack.Store, services.WithCacheTTL(cfg.Cache.EntryTTL()))
	if err != nil {
		return nil, fmt.Errorf("initialise cache service: %w", err)
	}

	userRepo, err := repository.NewUserRepository(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user repository: %w", err)
	}
	doctorRepo, err := repository.NewDoctorRepository(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise doctor repository: %w", err)
	}
	patientRepo, err := repository.NewPatientRepository(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise patient repository: %w", err)
	}
	appointmentRepo, err := repository.NewAppointmentRepository(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise appointment repository: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	userSvc, err := services.NewUserService(userRepo, cacheSvc, services.WithResetTokenTTL(cfg.Auth.ResetTTL()))
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}
	authSvc, err := services.NewAuthService(userSvc, jwtSvc, cacheSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}
	doctorSvc, err := services.NewDoctorService(doctorRepo, cacheSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise doctor service: %w", err)
	}
	patientSvc, err := services.NewPatientService(patientRepo, cacheSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise patient service: %w", err)
	}
	appointmentSvc, err := services.NewAppointmentService(appointmentRepo, doctorRepo, patientRepo, cacheSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise appointment service: %w", err)
	}

	syncer, err := services.NewLastConnectedSync(cacheSvc, userRepo)
	if err != nil {
		return nil, fmt.Errorf("initialise last connected sync: %w", err)
	}

	var syncJob maintenance.SyncRunner
	if cfg.Sync.Enabled {
		syncJob = syncer
	} else {
		log.Info("periodic last connected sync disabled")
	}
	stack.Scheduler = maintenance.NewScheduler(syncJob, userSvc,
		maintenance.WithSyncSchedule(cfg.Sync.Schedule),
		maintenance.WithTokenSchedule(cfg.Maintenance.TokenSchedule),
	)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:       cfg,
		DB:           stack.DB,
		Cache:        stack.Store,
		JWT:          jwtSvc,
		RateStore:    middleware.NewCacheRateStore(stack.Store),
		Auth:         authSvc,
		Users:        userSvc,
		Doctors:      doctorSvc,
		Patients:     patientSvc,
		Appointments: appointmentSvc,
		Sync:         syncer,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases the cache connection and database handle.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
		}
	}

	var errs error
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close cache store: %w", err))
		}
	}
	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

// initialiseCacheStore connects to Redis when enabled and falls back to the database-backed store
// when Redis is disabled or unreachable.
func initialiseCacheStore(cfg *app.Config, db *gorm.DB, log *zap.Logger) cache.Store {
	if cfg.Cache.Redis.Enabled {
		store, err := cache.NewRedisStore(cfg.Cache.RedisClientConfig())
		if err == nil {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			return store
		}
		log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
	}
	return cache.NewDatabaseStore(db)
}
