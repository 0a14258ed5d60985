package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, cache handlers.Pinger) {
	health := handlers.Health(db, cache)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
