package main

import (
	"github.com/gin-gonic/gin"

	"github.com/stagecast/distributor/internal/config"
	"github.com/stagecast/distributor/internal/handlers"
	"github.com/stagecast/distributor/internal/middleware"
	"github.com/stagecast/distributor/pkg/logger"
)

// setupRoutes builds the gin engine: health, auth, the websocket
// gateway, and the REST mirror for stages and routers.
func setupRoutes(cfg *config.Config, app *appServices) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(app.distributor, app.hub, app.taskQueue)
	r.GET("/health", healthHandler.CheckHealth)

	authHandler := handlers.NewAuthHandler(app.distributor, cfg)
	socketHandler := handlers.NewSocketHandler(app.distributor, app.hub)
	stageHandler := handlers.NewStageHandler(app.distributor)
	routerHandler := handlers.NewRouterHandler(app.distributor)

	// Reconnect storms hit the gateway and the token endpoint first.
	limiter := middleware.NewRateLimiter(10, 30)

	// Websocket clients pass the token as a query parameter.
	r.GET("/ws", limiter.Middleware(), middleware.AuthRequired(), socketHandler.Serve)

	api := r.Group("/api")
	{
		api.POST("/auth/token", limiter.Middleware(), authHandler.IssueToken)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			protected.GET("/stages", stageHandler.List)
			protected.POST("/stages", stageHandler.Create)
			protected.GET("/stages/:id", stageHandler.Get)
			protected.PUT("/stages/:id", stageHandler.Update)
			protected.DELETE("/stages/:id", stageHandler.Delete)
			protected.GET("/stages/:id/groups", stageHandler.ListGroups)
			protected.POST("/stages/:id/groups", stageHandler.CreateGroup)
			protected.PUT("/groups/:id", stageHandler.UpdateGroup)
			protected.DELETE("/groups/:id", stageHandler.DeleteGroup)

			protected.GET("/routers", routerHandler.List)
			protected.POST("/routers", routerHandler.Register)
			protected.PUT("/routers/:id", routerHandler.Update)
			protected.DELETE("/routers/:id", routerHandler.Delete)
		}
	}

	return r
}
