package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/lib/pq" // PostgreSQL driver

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"hookd/internal/archive"
	"hookd/internal/config"
	"hookd/internal/constants"
	"hookd/internal/executor"
	"hookd/internal/logger"
	"hookd/internal/signature"
	"hookd/internal/webhooks"
	"hookd/pkg/bootstrap"
	"hookd/pkg/health"
	"hookd/pkg/metrics"
	"hookd/pkg/middleware"
	"hookd/pkg/ratelimit"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	redis       *redisclient.Client
	mongoClient *mongo.Client
	pool        *executor.Pool
	registry    *webhooks.Registry
	repo        webhooks.Repository
	service     webhooks.Service
	server      *http.Server
	router      *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		registry:    webhooks.NewRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.initExecutor(); err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}

	if err := a.initService(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := a.initReceivers(); err != nil {
		return fmt.Errorf("failed to initialize receivers: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	redis, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = redis

	if a.Config.Database.MongoDB.URI != "" {
		mongoClient, err := a.dbConnector.InitMongoDB(ctx)
		if err != nil {
			a.Logger.WarnwCtx(ctx, "MongoDB connection failed, continuing without archive", "error", err)
		} else {
			a.mongoClient = mongoClient
		}
	}

	if a.db != nil {
		a.repo = webhooks.NewPostgresRepository(a.db)
	} else {
		a.Logger.Warn("PostgreSQL not configured, using in-memory event store")
		a.repo = webhooks.NewMemoryRepository()
	}

	return nil
}

func (a *App) initExecutor() error {
	var store executor.Store
	if a.redis != nil {
		ttl := time.Duration(a.Config.Executor.JobTTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = constants.DefaultJobTTL
		}
		store = executor.NewRedisStore(a.redis, ttl)
	} else {
		a.Logger.Warn("Redis not configured, using in-memory job store")
		store = executor.NewMemoryStore()
	}

	store = executor.NewCircuitBreakerStore(store, a.Config.CircuitBreaker)

	a.pool = executor.NewPool(a.Config.Executor, store, a.Logger)
	webhooks.RegisterProcessEventTask(a.pool, a.registry, a.repo)
	a.pool.Start()
	return nil
}

func (a *App) initService() error {
	opts := []webhooks.ServiceOption{
		webhooks.WithBaseURL(a.Config.Server.BaseURL),
	}

	if a.Config.Broker.Type != "" {
		if err := a.InitBroker(); err != nil {
			return err
		}

		topic := a.Config.Broker.Kafka.EventTopic
		if topic == "" {
			topic = constants.DefaultEventTopic
		}
		opts = append(opts, webhooks.WithNotifier(a.Producer, topic))
		metrics.RegisterBrokerMetrics()
	}

	if a.mongoClient != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		opts = append(opts, webhooks.WithArchiver(archive.NewMongoArchiver(a.mongoClient.Database(dbName))))
	}

	a.service = webhooks.NewService(a.registry, a.repo, a.Logger, opts...)
	return nil
}

// initReceivers registers the built-in receivers. Deployments that
// embed hookd register their own factories on App.Registry before
// Initialize.
func (a *App) initReceivers() error {
	var baseOpts []webhooks.BaseOption
	if a.Config.Webhooks.SignatureHeader != "" {
		verifier := signature.New(a.Config.Webhooks.Secret)
		baseOpts = append(baseOpts, webhooks.WithSignature(a.Config.Webhooks.SignatureHeader, verifier))
	}
	baseOpts = append(baseOpts, webhooks.WithDebugURLs(a.Config.Webhooks.Debug, a.Config.Webhooks.DebugReceiverURLs))

	factories := map[string]webhooks.Factory{
		"debug": func(id string) webhooks.Receiver {
			return newDebugReceiver(id, baseOpts...)
		},
		"debug-async": func(id string) webhooks.Receiver {
			return webhooks.NewAsyncReceiver(newDebugReceiver(id, baseOpts...), a.pool)
		},
	}

	return a.registry.Load(factories)
}

func (a *App) Registry() *webhooks.Registry {
	return a.registry
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.RateLimit.RPS,
			Burst:           a.Config.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	router.HandleMethodNotAllowed = true
	router.NoMethod(webhooks.MethodNotAllowed)

	resolver := webhooks.StaticTokenResolver(a.Config.Webhooks.Tokens)
	handler := webhooks.NewHandler(a.service, resolver, a.Logger)
	handler.RegisterRoutes(router)

	metrics.RegisterWebhookMetrics()
	metrics.RegisterExecutorMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.pool != nil {
			a.pool.Stop()
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
