package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clinic/internal/handlers/testutil"
	"github.com/charlesng35/clinic/internal/services"
)

type userPayload struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func TestUserHandler_RequiresAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/users", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodGet, "/api/users/1", nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_ListPaginatesAndFilters(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginAsNewUser("admin@example.com")
	for i := 0; i < 12; i++ {
		env.CreateUser(fmt.Sprintf("member%02d@example.com", i), "Passw0rd!")
	}

	w := env.Request(http.MethodGet, "/api/users?page=2&page_size=5", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var users []userPayload
	testutil.DecodeInto(t, resp.Data, &users)
	require.Len(t, users, 5)
	require.NotNil(t, resp.Meta)
	require.Equal(t, 13, resp.Meta.Total)
	require.Equal(t, 3, resp.Meta.TotalPages)
	require.NotNil(t, resp.Meta.Next)
	require.Equal(t, 3, *resp.Meta.Next)
	require.NotNil(t, resp.Meta.Prev)
	require.Equal(t, 1, *resp.Meta.Prev)

	w = env.Request(http.MethodGet, "/api/users?filters=email:member03@example.com", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	resp = testutil.DecodeResponse(t, w)
	testutil.DecodeInto(t, resp.Data, &users)
	require.Len(t, users, 1)
	require.Equal(t, "member03@example.com", users[0].Email)

	w = env.Request(http.MethodGet, "/api/users?filters=password:x", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_CRUD(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginAsNewUser("admin@example.com")

	w := env.Request(http.MethodPost, "/api/users", map[string]string{
		"email":      "new@example.com",
		"password":   "Passw0rd!",
		"first_name": "New",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created userPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &created)
	require.NotZero(t, created.ID)

	path := fmt.Sprintf("/api/users/%d", created.ID)

	w = env.Request(http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	// The read populated the entity cache.
	_, cached, err := env.Cache.FindEntity(context.Background(), services.CachePrefixUser, created.ID)
	require.NoError(t, err)
	require.True(t, cached)

	w = env.Request(http.MethodPut, path, map[string]string{"last_name": "Person"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated userPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "Person", updated.LastName)
	require.Equal(t, "New", updated.FirstName)

	w = env.Request(http.MethodGet, path, nil, token)
	var fetched userPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &fetched)
	require.Equal(t, "Person", fetched.LastName)

	w = env.Request(http.MethodPut, path, map[string]string{"email": "not-an-email"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodGet, "/api/users/abc", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_PasswordReset(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("forgetful@example.com", "OldPassw0rd")

	w := env.Request(http.MethodPost, "/api/users/forgot-password", map[string]string{"email": "forgetful@example.com"}, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	token := env.Notifier.Token("forgetful@example.com")
	require.NotEmpty(t, token)

	// Unknown addresses are indistinguishable from known ones.
	w = env.Request(http.MethodPost, "/api/users/forgot-password", map[string]string{"email": "ghost@example.com"}, "")
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.Request(http.MethodPost, "/api/users/reset-password", map[string]string{"token": "bogus", "password": "NewPassw0rd"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_RESET_TOKEN", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/api/users/reset-password", map[string]string{"token": token, "password": "NewPassw0rd"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.Login("forgetful@example.com", "NewPassw0rd")

	// Tokens are single use.
	w = env.Request(http.MethodPost, "/api/users/reset-password", map[string]string{"token": token, "password": "OtherPassw0rd"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_ChangePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginAsNewUser("changer@example.com")

	w := env.Request(http.MethodPost, "/api/users/change-password", map[string]string{
		"current_password": "wrong-password",
		"new_password":     "BrandNew123",
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "USER_PASSWORD_MISMATCH", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/api/users/change-password", map[string]string{
		"current_password": "Passw0rd!",
		"new_password":     "BrandNew123",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.Login("changer@example.com", "BrandNew123")

	w = env.Request(http.MethodPost, "/api/users/change-password", map[string]string{
		"current_password": "BrandNew123",
		"new_password":     "x",
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
