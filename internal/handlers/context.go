package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/clinic/pkg/errors"
	"github.com/charlesng35/clinic/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// pathID parses the :id route parameter. A non-numeric or non-positive id yields a 400.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.NewBadRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}
