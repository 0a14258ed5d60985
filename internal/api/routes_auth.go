package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/handlers"
)

func registerAuthRoutes(public *gin.RouterGroup, handler *handlers.AuthHandler) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/authenticate", handler.Authenticate)
	}
}
