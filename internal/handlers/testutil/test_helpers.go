package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/api"
	"github.com/charlesng35/clinic/internal/app"
	iauth "github.com/charlesng35/clinic/internal/auth"
	"github.com/charlesng35/clinic/internal/cache"
	sharedtestutil "github.com/charlesng35/clinic/internal/database/testutil"
	"github.com/charlesng35/clinic/internal/middleware"
	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/internal/repository"
	"github.com/charlesng35/clinic/internal/services"
	"github.com/charlesng35/clinic/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Store    cache.Store
	Cache    *services.CacheService
	Users    *services.UserService
	Notifier *ResetRecorder
}

// ResetRecorder captures password reset tokens instead of delivering them.
type ResetRecorder struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (r *ResetRecorder) SendPasswordReset(_ context.Context, user *models.User, token string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens == nil {
		r.tokens = make(map[string]string)
	}
	r.tokens[user.Email] = token
	return nil
}

// Token returns the last reset token issued for email.
func (r *ResetRecorder) Token(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[email]
}

// NewEnv provisions a fresh handler test environment with migrations applied. The database-backed
// cache store stands in for Redis.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		RateLimit:  app.RateLimitConfig{Requests: 10_000, Window: time.Minute},
		Monitoring: app.MonitoringConfig{Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}},
	}

	store := cache.NewDatabaseStore(db)
	cacheSvc, err := services.NewCacheService(store)
	require.NoError(t, err)

	userRepo, err := repository.NewUserRepository(db)
	require.NoError(t, err)
	doctorRepo, err := repository.NewDoctorRepository(db)
	require.NoError(t, err)
	patientRepo, err := repository.NewPatientRepository(db)
	require.NoError(t, err)
	appointmentRepo, err := repository.NewAppointmentRepository(db)
	require.NoError(t, err)

	notifier := &ResetRecorder{}
	users, err := services.NewUserService(userRepo, cacheSvc, services.WithResetNotifier(notifier))
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(users, jwtSvc, cacheSvc)
	require.NoError(t, err)
	doctors, err := services.NewDoctorService(doctorRepo, cacheSvc)
	require.NoError(t, err)
	patients, err := services.NewPatientService(patientRepo, cacheSvc)
	require.NoError(t, err)
	appointments, err := services.NewAppointmentService(appointmentRepo, doctorRepo, patientRepo, cacheSvc)
	require.NoError(t, err)
	syncer, err := services.NewLastConnectedSync(cacheSvc, userRepo)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Config:       cfg,
		DB:           db,
		Cache:        store,
		JWT:          jwtSvc,
		RateStore:    middleware.NewMemoryRateStore(),
		Auth:         authSvc,
		Users:        users,
		Doctors:      doctors,
		Patients:     patients,
		Appointments: appointments,
		Sync:         syncer,
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Store:    store,
		Cache:    cacheSvc,
		Users:    users,
		Notifier: notifier,
	}
}

// CreateUser provisions a user through the service layer.
func (e *Env) CreateUser(email, password string) *models.User {
	e.T.Helper()

	user, err := e.Users.Create(context.Background(), services.CreateUserInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(e.T, err)
	return user
}

// Login authenticates and returns the issued access token.
func (e *Env) Login(email, password string) string {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/authenticate", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result services.AuthResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	return result.AccessToken
}

// LoginAsNewUser creates a user and returns a token for it.
func (e *Env) LoginAsNewUser(email string) (*models.User, string) {
	e.T.Helper()
	const password = "Passw0rd!"
	user := e.CreateUser(email, password)
	return user, e.Login(email, password)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
