package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mopd1/LuckyDeck-clean/internal/core/port"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/config"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/database"
	kafkainfra "github.com/mopd1/LuckyDeck-clean/internal/infra/kafka"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/logger"
	redisinfra "github.com/mopd1/LuckyDeck-clean/internal/infra/redis"
	"github.com/mopd1/LuckyDeck-clean/internal/infra/security"
	postgresrepo "github.com/mopd1/LuckyDeck-clean/internal/repository/postgres"
	redisrepo "github.com/mopd1/LuckyDeck-clean/internal/repository/redis"
	"github.com/mopd1/LuckyDeck-clean/internal/transport/http/middleware"
	"github.com/mopd1/LuckyDeck-clean/internal/transport/http/routes"
	"github.com/mopd1/LuckyDeck-clean/internal/usecase"
)

// Application bundles the wired service graph and its shared resources.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	audit  port.AuditPublisher
}

// New wires configuration into a runnable application: storage pools,
// security primitives, services, and the HTTP engine.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	tokenManager, err := security.NewTokenManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.App.Name,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	hasher := security.NewHasher(cfg.Bcrypt.Cost)
	passwordValidator := security.DefaultPasswordValidator()

	auditPublisher := buildAuditPublisher(cfg, log)

	rateLimitTTL := maxDuration(cfg.RateLimit.LoginWindow, cfg.RateLimit.GeneralWindow) * 2
	if rateLimitTTL <= 0 {
		rateLimitTTL = 30 * time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.WindowConfig{
		KeyPrefix: "admin:rate-limit",
		TTL:       rateLimitTTL,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	userRepo := postgresrepo.NewUserRepository(pool)

	authService := usecase.NewAuthService(userRepo, tokenManager, hasher, log)
	userService := usecase.NewUserService(userRepo, hasher, passwordValidator, auditPublisher, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:  authService,
			Users: userService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		audit:  auditPublisher,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails. Shared resources are released on the way out.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.audit != nil {
			_ = a.audit.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting admin API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func buildAuditPublisher(cfg *config.AppConfig, log *zap.Logger) port.AuditPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub audit publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub audit publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}

	log.Info("kafka audit publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewAuditPublisher(producer, cfg.App, log)
}

func maxDuration(values ...time.Duration) time.Duration {
	var max time.Duration
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
