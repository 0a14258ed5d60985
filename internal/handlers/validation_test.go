package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appValidator "github.com/charlesng35/clinic/pkg/validator"
)

func TestFormatValidationError(t *testing.T) {
	err := appValidator.ValidationErrors{
		{Field: "email", Tag: "email"},
		{Field: "password", Tag: "min", Param: "8"},
		{Field: "status", Tag: "oneof", Param: "scheduled confirmed"},
		{Field: "doctor_id", Tag: "gt", Param: "0"},
		{Field: "first_name", Tag: "notblank"},
		{Field: "notes", Tag: "custom"},
	}

	msg := formatValidationError(err)
	require.Contains(t, msg, "email must be a valid email address")
	require.Contains(t, msg, "password must be at least 8 characters")
	require.Contains(t, msg, "status must be one of: scheduled, confirmed")
	require.Contains(t, msg, "doctor id must be greater than 0")
	require.Contains(t, msg, "first name must not be blank")
	require.Contains(t, msg, "notes failed validation: custom")

	require.Equal(t, "invalid request payload", formatValidationError(nil))
}

func TestPrettifyFieldName(t *testing.T) {
	require.Equal(t, "field", prettifyFieldName(""))
	require.Equal(t, "current password", prettifyFieldName("current_password"))
	require.Equal(t, "scheduled at", prettifyFieldName("ScheduledAt"))
}

func TestPathID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/things/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, status := range map[string]int{
		"/things/42":  http.StatusOK,
		"/things/0":   http.StatusBadRequest,
		"/things/-3":  http.StatusBadRequest,
		"/things/abc": http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, status, w.Code, path)
	}
}

func TestListOptionsDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/users?page=abc&page_size=500", nil)

	opts, ok := listOptions(c, []string{"email"})
	require.True(t, ok)
	require.Equal(t, 1, opts.Page)
	require.Equal(t, 100, opts.PageSize)
	require.Empty(t, opts.Filters)
}
