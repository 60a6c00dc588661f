package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/handler"
	"dispatch/internal/rabbitmq"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	loc, _ := cfg.Dispatch.Location() // checked by Validate

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis is optional: without it rides are not locked across requests,
	// the roster is not cached and idempotency keys are ignored.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("Connected to Redis")
	} else {
		log.Println("REDIS_ADDR not set, running without Redis")
	}

	// Notifications go to RabbitMQ when configured, otherwise to the log.
	var publisher service.Publisher = service.LogPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	// Wire dependencies.
	server, userService := wireServer(db, redisClient, publisher, nrApp, cfg, loc)

	if cfg.Dispatch.SeedFile != "" {
		if err := bootstrapUsers(ctx, userService, cfg.Dispatch.SeedFile); err != nil {
			log.Fatalf("failed to bootstrap users: %v", err)
		}
	}

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s (timezone %s)", cfg.Server.Port, loc)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// bootstrapUsers creates the seed accounts when the store has no admin yet.
func bootstrapUsers(ctx context.Context, userService *service.UserService, path string) error {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return err
	}

	users := make([]service.BootstrapUser, 0, len(seed.Users))
	for _, u := range seed.Users {
		users = append(users, service.BootstrapUser{
			Login:       u.Login,
			DisplayName: u.DisplayName,
			Role:        u.Role,
			Password:    u.Password,
		})
	}

	created, err := userService.Bootstrap(ctx, users)
	if err != nil {
		return err
	}
	if created > 0 {
		log.Printf("Bootstrapped %d accounts from %s", created, path)
	}
	return nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher service.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	loc *time.Location,
) (*http.Server, *service.UserService) {
	// Initialize Redis stores.
	var (
		lockStore   internalRedis.LockStoreInterface
		rosterCache internalRedis.RosterCacheInterface
	)
	if redisClient != nil {
		lockStore = internalRedis.NewLockStore(redisClient)
		rosterCache = internalRedis.NewCacheStore(redisClient)
	}

	// Initialize repositories.
	userRepo := postgres.NewUserRepository(db)
	rideRepo := postgres.NewRideRepository(db, loc)
	clientRepo := postgres.NewClientRepository(db)
	transactor := postgres.NewTransactor(db, loc)

	// Initialize services.
	notificationService := service.NewNotificationService(publisher)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userService := service.NewUserService(userRepo, transactor, rosterCache)
	clientService := service.NewClientService(clientRepo)
	rideService := service.NewRideService(rideRepo, clientRepo, transactor, notificationService, loc)
	lifecycleService := service.NewLifecycleService(rideRepo, transactor, lockStore, notificationService, loc)
	reassignService := service.NewReassignService(transactor, lockStore, notificationService)
	planningService := service.NewPlanningService(rideRepo, userService, loc, cfg.Dispatch.DayColumns)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		AuthHandler:     handler.NewAuthHandler(authService),
		UserHandler:     handler.NewUserHandler(userService),
		DriverHandler:   handler.NewDriverHandler(userService),
		ClientHandler:   handler.NewClientHandler(clientService),
		RideHandler:     handler.NewRideHandler(rideService, lifecycleService, reassignService, loc),
		PlanningHandler: handler.NewPlanningHandler(planningService, loc),
		Authenticator:   authService,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, userService
}
