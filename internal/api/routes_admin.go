package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/handlers"
)

func registerAdminRoutes(protected *gin.RouterGroup, sync *handlers.SyncHandler) {
	admin := protected.Group("/admin")
	admin.POST("/sync/last-connected", sync.LastConnected)
}
