package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/config"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/database"
	kafkainfra "github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/kafka"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/logger"
	redisinfra "github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/redis"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/security"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/telemetry"
	postgresrepo "github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository/postgres"
	redisrepo "github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository/redis"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/transport/http/middleware"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/transport/http/routes"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/usecase"
)

// Application owns every long-lived resource of the service and knows how to
// start and stop them in order.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracing  *telemetry.TracerProvider
	sessions *usecase.SessionService
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracing *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracing, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	signer, err := security.NewTokenSigner(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
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

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var producer *kafkainfra.Producer
	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	identities := repos.Identities
	tokens := repos.Tokens

	validator := security.DefaultPasswordValidator()
	verifier := usecase.NewCredentialVerifier(identities)
	issuer := usecase.NewTokenIssuer(cfg.JWT, signer, tokens)
	sessions := usecase.NewSessionService(identities, tokens, verifier, issuer, signer, validator, events, log)
	registration := usecase.NewRegistrationService(identities, validator, events, log)
	identitySvc := usecase.NewIdentityService(identities, sessions, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Metrics:     metrics,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Sessions:     sessions,
			Registration: registration,
			Identities:   identitySvc,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		tracing:  tracing,
		sessions: sessions,
	}, nil
}

// Run starts the HTTP server and the token purge loop, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracing != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracing.Shutdown(shutdownCtx)
		}
	}()

	// The purge loop gets its own cancel so Run can stop it on any exit
	// path, including a server startup failure where the caller's context
	// is still alive.
	purgeCtx, stopPurge := context.WithCancel(ctx)
	purgeDone := a.startPurgeLoop(purgeCtx)
	defer func() {
		stopPurge()
		<-purgeDone
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
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

// startPurgeLoop deletes expired and revoked refresh tokens on a fixed
// interval so the table does not grow without bound.
func (a *Application) startPurgeLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	interval := a.cfg.Maintenance.PurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				purged, err := a.sessions.Cleanup(purgeCtx)
				cancel()
				if err != nil {
					a.logger.Warn("refresh token purge failed", zap.Error(err))
					continue
				}
				if purged > 0 {
					a.logger.Info("purged refresh tokens", zap.Int("count", purged))
				}
			}
		}
	}()

	return done
}
