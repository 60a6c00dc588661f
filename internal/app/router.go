package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	AuthHandler     *handler.AuthHandler
	UserHandler     *handler.UserHandler
	DriverHandler   *handler.DriverHandler
	ClientHandler   *handler.ClientHandler
	RideHandler     *handler.RideHandler
	PlanningHandler *handler.PlanningHandler
	Authenticator   middleware.Authenticator
	AllowedOrigins  []string
	RedisClient     *redis.Client // optional
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	dispatchers := middleware.RequireRole(domain.RoleDispatcher, domain.RoleAdmin)
	admins := middleware.RequireRole(domain.RoleAdmin)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		v1.POST("/auth/login", deps.AuthHandler.Login)

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(deps.Authenticator))
		authed.Use(middleware.ActorAttributesMiddleware())
		authed.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

		// User routes.
		users := authed.Group("/users", admins)
		{
			users.GET("", deps.UserHandler.GetAll)
			users.POST("", deps.UserHandler.Create)
			users.DELETE("/:id", deps.UserHandler.Delete)
		}

		authed.GET("/drivers", deps.DriverHandler.GetAll)

		// Regular client routes.
		clients := authed.Group("/clients", dispatchers)
		{
			clients.GET("", deps.ClientHandler.GetAll)
			clients.POST("", deps.ClientHandler.Create)
			clients.GET("/:id", deps.ClientHandler.Get)
			clients.PUT("/:id", deps.ClientHandler.Update)
			clients.DELETE("/:id", deps.ClientHandler.Deactivate)
		}

		// Ride routes. Drivers reach their own rides; the services enforce ownership.
		rides := authed.Group("/rides")
		{
			rides.POST("", dispatchers, deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.GetAll)
			rides.POST("/reassign", dispatchers, deps.RideHandler.ReassignBatch)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.PATCH("/:id", dispatchers, deps.RideHandler.UpdateRide)
			rides.DELETE("/:id", dispatchers, deps.RideHandler.DeleteRide)
			rides.POST("/:id/advance", deps.RideHandler.AdvanceRide)
			rides.POST("/:id/correct", admins, deps.RideHandler.CorrectRide)
			rides.PUT("/:id/driver-comment", deps.RideHandler.UpdateDriverComment)
			rides.POST("/:id/reassign", dispatchers, deps.RideHandler.ReassignRide)
		}

		// Planning routes.
		planning := authed.Group("/planning")
		{
			planning.GET("/week", dispatchers, deps.PlanningHandler.Week)
			planning.GET("/day", dispatchers, deps.PlanningHandler.Day)
			planning.GET("/drivers/:id/day", deps.PlanningHandler.DriverDay)
		}
	}

	return router
}
