package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authgin "github.com/pilab-dev/shadow-auth/api/gin"
	"github.com/pilab-dev/shadow-auth/cache"
	redisstore "github.com/pilab-dev/shadow-auth/cache/redis"
	"github.com/pilab-dev/shadow-auth/config"
	"github.com/pilab-dev/shadow-auth/internal/auth"
	"github.com/pilab-dev/shadow-auth/internal/auth/totp"
	"github.com/pilab-dev/shadow-auth/internal/federation"
	"github.com/pilab-dev/shadow-auth/internal/lockout"
	"github.com/pilab-dev/shadow-auth/internal/metrics"
	"github.com/pilab-dev/shadow-auth/internal/server"
	"github.com/pilab-dev/shadow-auth/log"
	"github.com/pilab-dev/shadow-auth/mongodb"
	"github.com/pilab-dev/shadow-auth/services"
	"github.com/pilab-dev/shadow-auth/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const redisKeyPrefix = "shadow-auth"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)
	if zl, ok := log.Zerolog(appLogger); ok {
		zerolog.DefaultContextLogger = &zl
	}

	ctx := context.Background()
	appLogger.Info(ctx, "Starting shadow-auth server...", log.Fields{
		"app_name":      cfg.AppName,
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"redis":         cfg.RedisURL != "",
		"oauth2":        cfg.GenericOAuthEnabled(),
		"github":        cfg.GitHubEnabled(),
		"otel_service":  cfg.OtelServiceName,
	})

	tracerProvider, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
	}
	db := mongodb.GetDB()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserRepository", err)
	}
	sessionRepo, err := mongodb.NewSessionRepositoryMongo(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize SessionRepository", err)
	}

	var (
		challengeStore cache.ChallengeStore
		counterStore   lockout.CounterStore
		redisClient    *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = redisstore.Connect(ctx, cfg.RedisURL, redisstore.ConnectOptions{})
		if err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err)
		}
		challengeStore = redisstore.NewChallengeStore(redisClient, redisKeyPrefix)
		counterStore = lockout.NewRedisCounterStore(redisClient, redisKeyPrefix)
		appLogger.Info(ctx, "Using Redis checkpoint and lockout stores")
	} else {
		memChallenges := cache.NewMemoryChallengeStore(cfg.CheckpointTTL)
		defer memChallenges.Close()
		challengeStore = memChallenges
		counterStore = lockout.NewMemoryCounterStore()
		appLogger.Warn(ctx, "REDIS_URL not set, using in-process checkpoint and lockout stores")
	}

	registry, err := buildProviders(cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to configure login providers", err)
	}

	hasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
	limiter := lockout.NewLimiter(counterStore, cfg.LockoutAttempts, cfg.LockoutTime)
	sessions := services.NewSessionService(sessionRepo, cfg.SessionLifetime)
	checkpoint := services.NewSecondFactorChallenge(challengeStore, userRepo, totp.NewValidator(), sessions, cfg.CheckpointTTL)
	credentials := services.NewCredentialAuthenticator(userRepo, hasher, limiter, checkpoint, sessions)
	resolver := services.NewIdentityResolver(userRepo)
	orchestrator := services.NewLoginOrchestrator(cfg.AppName, credentials, checkpoint, registry, resolver, sessions)

	loginAPI := authgin.NewLoginAPI(orchestrator, authgin.Options{
		SessionCookie: cfg.SessionCookie,
		SecureCookies: cfg.SecureCookies,
	})

	httpServer := server.NewHTTPServer(cfg, appLogger, server.Deps{
		LoginAPI: loginAPI,
		Gatherer: prometheus.DefaultGatherer,
		Health:   mongodb.Ping,
	})
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			appLogger.Error(shutdownCtx, "Redis close error", err)
		}
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}

	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

// buildProviders registers every provider that has credentials configured.
func buildProviders(cfg *config.ServerConfig) (*federation.Registry, error) {
	registry := federation.NewRegistry()

	if cfg.GenericOAuthEnabled() {
		p, err := federation.NewGenericProvider(federation.GenericConfig{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			AuthURL:      cfg.OAuthAuthURL,
			TokenURL:     cfg.OAuthTokenURL,
			UserURL:      cfg.OAuthUserURL,
			RedirectURL:  cfg.OAuthRedirectURI,
			Scopes:       cfg.OAuthScopes,
			Timeout:      cfg.OAuthHTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("oauth2 provider: %w", err)
		}
		registry.Register(p)
	}

	if cfg.GitHubEnabled() {
		p, err := federation.NewGitHubProvider(federation.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURI,
			Timeout:      cfg.OAuthHTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("github provider: %w", err)
		}
		registry.Register(p)
	}

	return registry, nil
}
