package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/handlers"
)

func registerUserRoutes(public, protected *gin.RouterGroup, handler *handlers.UserHandler) {
	// Password recovery is reachable without a token.
	recovery := public.Group("/users")
	{
		recovery.POST("/forgot-password", handler.ForgotPassword)
		recovery.POST("/reset-password", handler.ResetPassword)
	}

	users := protected.Group("/users")
	{
		users.GET("", handler.List)
		users.POST("", handler.Create)
		users.POST("/change-password", handler.ChangePassword)
		users.GET("/:id", handler.Get)
		users.PUT("/:id", handler.Update)
		users.PATCH("/:id", handler.Update)
		users.DELETE("/:id", handler.Delete)
	}
}
