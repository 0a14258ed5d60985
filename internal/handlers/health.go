package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/database"
	"github.com/charlesng35/clinic/pkg/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthPayload struct {
	Status   string          `json:"status"`
	Database componentStatus `json:"database"`
	Cache    componentStatus `json:"cache"`
}

// Health reports database and cache reachability. Any failing dependency turns the response into a
// 503 so load balancers take the instance out of rotation.
func Health(db *gorm.DB, cache Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), 3*time.Second)
		defer cancel()

		payload := healthPayload{
			Status:   "ok",
			Database: check(func() error { return database.Ping(ctx, db) }),
			Cache:    componentStatus{Status: "disabled"},
		}
		if cache != nil {
			payload.Cache = check(func() error { return cache.Ping(ctx) })
		}

		status := http.StatusOK
		if payload.Database.Status != "ok" || payload.Cache.Status == "down" {
			payload.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		response.Success(c, status, payload)
	}
}

func check(ping func() error) componentStatus {
	if err := ping(); err != nil {
		return componentStatus{Status: "down", Error: err.Error()}
	}
	return componentStatus{Status: "ok"}
}
