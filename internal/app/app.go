package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/auth"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/cache"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/config"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/event"
	handler "github.com/sylwiakmieciak/madebyu-sub000/internal/handler/http"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository/memory"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository/postgres"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/service"
	"github.com/sylwiakmieciak/madebyu-sub000/migrations"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/health"
	pkgkafka "github.com/sylwiakmieciak/madebyu-sub000/pkg/kafka"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/middleware"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/tracing"
)

// ServiceName tags logs, metrics and traces emitted by the process.
const ServiceName = "madebyu-marketplace"

// Version is overridden at build time with -ldflags.
var Version = "dev"

// App wires together all dependencies and runs the marketplace service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	shutdownTracer func(context.Context) error
	stopLimiter    context.CancelFunc
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
// Anything opened before a failure is released again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	a.shutdownTracer, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	// The unread counter cache is optional; without Redis every count is read
	// from the store.
	var unread service.UnreadCache
	if cfg.RedisEnabled {
		client, redisErr := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if redisErr != nil {
			logger.Warn("redis unavailable, unread counts will not be cached",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", redisErr.Error()),
			)
		} else {
			a.redis = client
			unread = cache.NewUnreadCounts(client, cfg.UnreadCacheTTL)
			logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
		}
	}

	var publisher service.EventPublisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewPublisher(a.producer, event.DefaultBreakerConfig(), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	notifications := service.NewNotificationService(store, unread, logger)
	dispatcher := service.NewDispatcher(notifications, publisher, logger)
	sanitize := service.StrictSanitizer()
	svc := handler.Services{
		Orders:        service.NewOrderService(store, dispatcher, logger),
		Moderation:    service.NewModerationService(store, dispatcher, logger),
		Comments:      service.NewCommentService(store, dispatcher, sanitize, logger),
		Reviews:       service.NewReviewService(store, dispatcher, sanitize, logger),
		Notifications: notifications,
		Actors:        service.NewActorLoader(store),
	}

	if cfg.KafkaEnabled {
		a.consumers = a.paymentConsumers(svc.Orders)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("store", store.Ping)
	if a.redis != nil {
		client := a.redis
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	if cfg.KafkaEnabled {
		brokers := cfg.KafkaBrokers
		healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, brokers)
		})
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	a.stopLimiter = stopLimiter

	router := handler.NewRouter(svc, healthHandler, handler.RouterConfig{
		ServiceName: ServiceName,
		Validate:    jwtManager.Validator(),
		RateLimit:   middleware.RateLimit(limiterCtx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			Environment:    cfg.Environment,
		},
		PprofCIDRs: cfg.PprofAllowedCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// openStore connects the configured storage backend.
func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	cfg := a.cfg
	if cfg.StorageDriver == config.StorageMemory {
		store := memory.NewStore()
		if cfg.SeedFile != "" {
			seed, err := memory.LoadSeedFile(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			store.Apply(seed)
			a.logger.Info("memory store seeded",
				slog.String("file", cfg.SeedFile),
				slog.Int("users", len(seed.Users)),
				slog.Int("products", len(seed.Products)),
			)
		}
		a.logger.Warn("using in-memory storage, data is lost on restart")
		return store, nil
	}

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	database.RegisterPoolMetrics(pool, ServiceName)
	database.SetSlowQueryLogging(cfg.SlowQuery, a.logger)

	return postgres.NewStore(pool), nil
}

// paymentConsumers subscribes the order service to payment results. Redis
// backs deduplication when it is connected so restarts keep the seen set.
func (a *App) paymentConsumers(orders *service.OrderService) []*pkgkafka.Consumer {
	var idempotency pkgkafka.IdempotencyStore
	if a.redis != nil {
		idempotency = pkgkafka.NewRedisIdempotencyStore(a.redis, a.cfg.IdempotencyTTL)
	} else {
		idempotency = pkgkafka.NewMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	}
	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)

	return event.NewPaymentConsumers(event.ConsumerOptions{
		Brokers:     a.cfg.KafkaBrokers,
		GroupID:     a.cfg.KafkaConsumerGroup,
		Idempotency: idempotency,
		DLQ:         a.dlq,
	}, event.NewPaymentHandler(orders, a.logger), a.logger)
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and Kafka consumers, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	for _, consumer := range a.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.release()

	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// release closes every backend connection that was opened. Consumers go first
// so no payment event is applied after the store is gone.
func (a *App) release() {
	for _, consumer := range a.consumers {
		if err := consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	a.consumers = nil

	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
		}
		a.dlq = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.stopLimiter != nil {
		a.stopLimiter()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
