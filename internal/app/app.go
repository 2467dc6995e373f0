package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/cartify/cartify/internal/auth"
	"github.com/cartify/cartify/internal/config"
	"github.com/cartify/cartify/internal/event"
	handler "github.com/cartify/cartify/internal/handler/http"
	"github.com/cartify/cartify/internal/lock"
	"github.com/cartify/cartify/internal/repository"
	"github.com/cartify/cartify/internal/repository/memory"
	"github.com/cartify/cartify/internal/repository/postgres"
	"github.com/cartify/cartify/internal/service"
	"github.com/cartify/cartify/migrations"
	"github.com/cartify/cartify/pkg/database"
	"github.com/cartify/cartify/pkg/health"
	pkgkafka "github.com/cartify/cartify/pkg/kafka"
	"github.com/cartify/cartify/pkg/middleware"
	"github.com/cartify/cartify/pkg/tracing"
)

// App wires together all dependencies and runs the address service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	dlq            *pkgkafka.DeadLetterQueue
	workers        sync.WaitGroup
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(handler.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	repo, owners, err := a.initStore(ctx, healthHandler)
	if err != nil {
		_ = a.closeResources()
		return nil, err
	}

	locker, err := a.initLocker(ctx, healthHandler)
	if err != nil {
		_ = a.closeResources()
		return nil, err
	}

	// A nil interface, not a nil *event.Producer, disables publishing.
	var events service.EventPublisher
	if cfg.EventsEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.producer = producer
		publisher := pkgkafka.NewBreakerPublisher(producer, pkgkafka.DefaultBreakerConfig("address-events"), logger)
		events = event.NewProducer(publisher, logger)
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	addressService := service.NewAddressService(repo, owners, locker, events, logger)

	if cfg.UserDeletedConsumerEnabled {
		a.initUserDeletedConsumer(addressService)
	}

	jwtValidator := auth.NewJWTValidator(cfg.JWTSecret)
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment

	router := handler.NewRouter(addressService, jwtValidator.Middleware, healthHandler, logger, corsConfig)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context, healthHandler *health.Handler) (repository.AddressRepository, repository.OwnerDirectory, error) {
	if a.cfg.Store == config.StoreMemory {
		a.logger.Warn("using in-memory address store; data is lost on restart")
		return memory.NewAddressRepository(), nil, nil
	}

	pgCfg := a.cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if threshold := a.cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, a.logger)
	}

	healthHandler.RegisterCritical("postgres", pool.Ping)

	var owners repository.OwnerDirectory
	if a.cfg.OwnerCheckEnabled {
		owners = postgres.NewOwnerDirectory(pool)
	}
	return postgres.NewAddressRepository(pool), owners, nil
}

func (a *App) initLocker(ctx context.Context, healthHandler *health.Handler) (lock.OwnerLocker, error) {
	switch a.cfg.OwnerLockMode {
	case config.LockLocal:
		return lock.NewLocalLocker(), nil
	case config.LockRedis:
		client, err := database.NewRedisClient(ctx, a.cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		healthHandler.RegisterCritical("redis", database.RedisPinger(client))
		a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis().Addr()))

		lockCfg := lock.DefaultRedisConfig()
		lockCfg.TTL = a.cfg.OwnerLockTTL
		lockCfg.Wait = a.cfg.OwnerLockWait
		return lock.NewRedisLocker(client, lockCfg, a.logger), nil
	default:
		return lock.NoopLocker{}, nil
	}
}

// initUserDeletedConsumer purges a user's addresses when the user account is
// deleted. Processed event IDs live in Redis when the Redis lock is in use so
// every replica sees them.
func (a *App) initUserDeletedConsumer(purger event.AddressPurger) {
	var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	if a.redis != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.redis, "cartify:address-events:processed:", a.cfg.IdempotencyTTL)
	}

	consumer := event.NewConsumer(purger, a.logger)
	a.dlq = pkgkafka.NewDeadLetterQueue(a.cfg.KafkaBrokers, event.ConsumerGroupUserDeleted, a.logger)
	a.consumer = pkgkafka.NewConsumer(
		pkgkafka.DefaultConsumerConfig(a.cfg.KafkaBrokers, event.ConsumerGroupUserDeleted, event.TopicUserDeleted),
		pkgkafka.IdempotentHandler(store, consumer.HandleUserDeleted, a.logger),
		a.logger,
		pkgkafka.WithDeadLetterQueue(a.dlq),
	)
	a.logger.Info("user.deleted consumer initialized", slog.String("topic", event.TopicUserDeleted))
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.httpServer.Addr, err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	if a.consumer != nil {
		a.workers.Add(1)
		go func() {
			defer a.workers.Done()
			if err := a.consumer.Run(ctx); err != nil {
				a.logger.Error("user.deleted consumer stopped with error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", ln.Addr().String()))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		cancel()
		a.workers.Wait()
		_ = a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests, waits for the consumer to stop, then
// flushes spans and closes Kafka writers, Redis and PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Consumers stop once the run context is canceled.
	a.workers.Wait()

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka DLQ close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.dlq = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	return errors.Join(errs...)
}
