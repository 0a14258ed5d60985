package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clinic/internal/handlers/testutil"
)

type idPayload struct {
	ID int64 `json:"id"`
}

func createResource(t *testing.T, env *testutil.Env, path string, body any, token string) int64 {
	t.Helper()
	w := env.Request(http.MethodPost, path, body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created idPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &created)
	require.NotZero(t, created.ID)
	return created.ID
}

func TestDoctorHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginAsNewUser("staff@example.com")

	require.Equal(t, http.StatusUnauthorized, env.Request(http.MethodGet, "/api/doctors", nil, "").Code)

	id := createResource(t, env, "/api/doctors", map[string]string{
		"email":      "house@example.com",
		"first_name": "Gregory",
		"last_name":  "House",
		"specialty":  "diagnostics",
	}, token)
	path := fmt.Sprintf("/api/doctors/%d", id)

	w := env.Request(http.MethodPost, "/api/doctors", map[string]string{
		"email":      "blank@example.com",
		"first_name": "   ",
		"last_name":  "Blank",
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPatch, path, map[string]string{"specialty": "nephrology"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/doctors?filters=specialty:nephrology", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var doctors []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &doctors)
	require.Len(t, doctors, 1)
	require.Equal(t, "house@example.com", doctors[0]["email"])

	require.Equal(t, http.StatusOK, env.Request(http.MethodDelete, path, nil, token).Code)
	require.Equal(t, http.StatusNotFound, env.Request(http.MethodGet, path, nil, token).Code)
}

func TestPatientHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginAsNewUser("staff@example.com")

	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	id := createResource(t, env, "/api/patients", map[string]any{
		"email":         "patient@example.com",
		"full_name":     "Pat Ient",
		"phone":         "+1-555-0100",
		"date_of_birth": dob,
	}, token)
	path := fmt.Sprintf("/api/patients/%d", id)

	w := env.Request(http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var patient map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &patient)
	require.Equal(t, "Pat Ient", patient["full_name"])

	w = env.Request(http.MethodPost, "/api/patients", map[string]any{
		"email":     "patient@example.com",
		"full_name": "Duplicate",
	}, token)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodPatch, path, map[string]string{"phone": "+1-555-0199"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &patient)
	require.Equal(t, "+1-555-0199", patient["phone"])

	w = env.Request(http.MethodPatch, path, map[string]string{"phone": "call me"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "must be a phone number")

	require.Equal(t, http.StatusOK, env.Request(http.MethodDelete, path, nil, token).Code)
	require.Equal(t, http.StatusNotFound, env.Request(http.MethodPatch, path, map[string]string{"phone": "+1-555-0123"}, token).Code)
}

func TestAppointmentHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginAsNewUser("staff@example.com")

	doctorID := createResource(t, env, "/api/doctors", map[string]string{
		"email": "doc@example.com", "first_name": "Doc", "last_name": "Tor",
	}, token)
	patientID := createResource(t, env, "/api/patients", map[string]string{
		"email": "pat@example.com", "full_name": "Pat",
	}, token)

	scheduled := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)

	w := env.Request(http.MethodPost, "/api/appointments", map[string]any{
		"doctor_id": doctorID + 100, "patient_id": patientID, "scheduled_at": scheduled,
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/appointments", map[string]any{
		"doctor_id": doctorID, "patient_id": patientID, "scheduled_at": scheduled, "status": "pending",
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	id := createResource(t, env, "/api/appointments", map[string]any{
		"doctor_id": doctorID, "patient_id": patientID, "scheduled_at": scheduled,
	}, token)
	path := fmt.Sprintf("/api/appointments/%d", id)

	w = env.Request(http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var appointment map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &appointment)
	require.Equal(t, "scheduled", appointment["status"])
	require.EqualValues(t, 30, appointment["duration_minutes"])

	w = env.Request(http.MethodPatch, path, map[string]string{"status": "confirmed"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, fmt.Sprintf("/api/appointments?filters=status:confirmed,doctor_id:%d", doctorID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, 1, resp.Meta.Total)

	require.Equal(t, http.StatusOK, env.Request(http.MethodDelete, path, nil, token).Code)
	require.Equal(t, http.StatusNotFound, env.Request(http.MethodGet, path, nil, token).Code)
}
