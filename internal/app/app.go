package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kumanday/OmniLearn/internal/auth"
	"github.com/kumanday/OmniLearn/internal/config"
	"github.com/kumanday/OmniLearn/internal/event"
	handler "github.com/kumanday/OmniLearn/internal/handler/http"
	"github.com/kumanday/OmniLearn/internal/llm"
	"github.com/kumanday/OmniLearn/internal/oauth"
	"github.com/kumanday/OmniLearn/internal/repository"
	"github.com/kumanday/OmniLearn/internal/repository/postgres"
	rediscache "github.com/kumanday/OmniLearn/internal/repository/redis"
	"github.com/kumanday/OmniLearn/internal/service"
	"github.com/kumanday/OmniLearn/migrations"
	"github.com/kumanday/OmniLearn/pkg/database"
	"github.com/kumanday/OmniLearn/pkg/health"
	pkgkafka "github.com/kumanday/OmniLearn/pkg/kafka"
	"github.com/kumanday/OmniLearn/pkg/middleware"
	"github.com/kumanday/OmniLearn/pkg/sanitize"
	"github.com/kumanday/OmniLearn/pkg/tracing"
)

// Version is reported in traces.
const Version = "0.1.0"

// App wires together all dependencies and runs the OmniLearn API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	stopBackground context.CancelFunc
	tracerShutdown func(context.Context) error
}

// PostgresConfig maps the service configuration to pool settings.
func PostgresConfig(cfg *config.Config) database.PostgresConfig {
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL
	pgCfg.MaxConns = cfg.DBMaxConns
	pgCfg.MinConns = cfg.DBMinConns
	return pgCfg
}

// LLMConfig maps the service configuration to the provider gateway.
func LLMConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		Provider:          cfg.AIProvider,
		Model:             cfg.AIModel,
		OpenAIKey:         cfg.OpenAIKey,
		OpenAIBaseURL:     cfg.OpenAIBaseURL,
		OpenRouterKey:     cfg.OpenRouterKey,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		GeminiKey:         cfg.GeminiKey,
		GeminiBaseURL:     cfg.GeminiBaseURL,
		Timeout:           cfg.AITimeout,
	}
}

// NewApp creates a new application instance, initializing all dependencies.
// Redis and Kafka are optional; PostgreSQL and the LLM provider are not.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	// Fail on a bad provider setup before touching the network.
	provider, err := llm.New(LLMConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("configure llm provider: %w", err)
	}

	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pgCfg := PostgresConfig(cfg)
	if cfg.AutoMigrate {
		if err := migrate(pgCfg.DSN(), logger); err != nil {
			return nil, err
		}
	}

	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, handler.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	var lessonCache repository.LessonCache
	if cfg.RedisEnabled {
		a.redis, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		lessonCache = rediscache.NewLessonCache(a.redis, cfg.LessonCacheTTL)
		logger.Info("lesson cache enabled", slog.Duration("ttl", cfg.LessonCacheTTL))
	}

	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Build the dependency graph.
	userRepo := postgres.NewUserRepository(a.pool)
	progressRepo := postgres.NewProgressRepository(a.pool)
	treeRepo := postgres.NewKnowledgeTreeRepository(a.pool)
	lessonRepo := postgres.NewLessonRepository(a.pool)
	questionRepo := postgres.NewQuestionRepository(a.pool)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	verifier := oauth.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleTokenInfoURL, logger)
	generator := service.NewGenerator(provider, logger)

	svcs := handler.Services{
		Auth:      service.NewAuthService(userRepo, tokens, hasher, verifier, eventProducer, cfg.CookieName, logger),
		Users:     service.NewUserService(userRepo, progressRepo, treeRepo, logger),
		Trees:     service.NewKnowledgeTreeService(treeRepo, generator, eventProducer, logger),
		Lessons:   service.NewLessonService(lessonRepo, treeRepo, lessonCache, generator, sanitize.NewHTML(), eventProducer, logger),
		Questions: service.NewQuestionService(questionRepo, treeRepo, generator, eventProducer, logger),
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	a.stopBackground = stopBackground
	limiter := middleware.NewRateLimiter(bgCtx, middleware.RateLimitConfig{
		RPS:               cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		TrustForwardedFor: cfg.TrustForwardedFor,
	}, logger)

	router := handler.NewRouter(svcs, healthHandler, handler.RouterConfig{
		Cookie: auth.CookieConfig{
			Name:   cfg.CookieName,
			Domain: cfg.CookieDomain,
			Secure: cfg.SecureCookies,
		},
		CORSOrigins:       cfg.CORSAllowedOrigins,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		Limiter:           limiter,
	}, logger)

	// Generation requests wait on the model, so the write timeout follows
	// the provider timeout.
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.AITimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("llm provider configured",
		slog.String("provider", provider.Name()),
		slog.String("model", cfg.AIModel),
	)
	return a, nil
}

func migrate(dsn string, logger *slog.Logger) error {
	m, err := database.NewMigrator(migrations.FS, ".", dsn, logger)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", slog.String("error", err.Error()))
		}
	}()
	if err := m.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
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

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, Redis, PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Flush after the HTTP drain so in-flight request spans are captured.
	errs = append(errs, a.release())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release flushes the tracer and then closes everything NewApp opened. It
// tolerates a partially built App.
func (a *App) release() error {
	var errs []error
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
