package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tablereserve/internal/middleware"
)

type RouterDeps struct {
	Users           *UserHandler
	Health          *HealthHandler
	JWTSecret       []byte
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limit := middleware.RateLimit(deps.RateLimitWindow)

	api.GET("/healthz", deps.Health.Get)

	api.POST("/users", limit, deps.Users.Create)
	api.POST("/users/login", limit, deps.Users.Login)
	api.GET("/users/me", middleware.JWTAuth(deps.JWTSecret), deps.Users.Me)
	api.GET("/users/count", deps.Users.Count)
	api.GET("/users", deps.Users.Find)
	api.PATCH("/users", deps.Users.UpdateAll)
	api.GET("/users/:id", deps.Users.FindByID)
	api.PATCH("/users/:id", deps.Users.UpdateByID)
	api.PUT("/users/:id", deps.Users.ReplaceByID)
	api.DELETE("/users/:id", deps.Users.DeleteByID)
}
