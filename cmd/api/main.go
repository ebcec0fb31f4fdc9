// Package main provides the entrypoint for the RateBoard API server.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/api"
	"github.com/rateboard/rateboard/internal/api/middleware"
	"github.com/rateboard/rateboard/internal/auth"
	"github.com/rateboard/rateboard/internal/database"
	"github.com/rateboard/rateboard/internal/featureflags"
	"github.com/rateboard/rateboard/internal/rule"
	"github.com/rateboard/rateboard/internal/scenario"
	"github.com/rateboard/rateboard/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// loadOperators reads the provisioned operator set from the OPERATORS
// environment variable (a JSON array). Returns a single local-dev admin
// when unset.
func loadOperators(log zerolog.Logger) []auth.Operator {
	raw := os.Getenv("OPERATORS")
	if raw == "" {
		log.Warn().Msg("OPERATORS not set - using local-dev admin operator")
		return []auth.Operator{
			{
				ID:     "opr_localdev",
				Email:  "dev@rateboard.io",
				Name:   "Local Dev",
				Role:   auth.RoleAdmin,
				APIKey: "localdev-api-key",
			},
		}
	}

	var operators []auth.Operator
	if err := json.Unmarshal([]byte(raw), &operators); err != nil {
		log.Fatal().Err(err).Msg("failed to parse OPERATORS")
	}
	return operators
}

func main() {
	const serviceName = "rateboard-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting RateBoard API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
	})

	authService := auth.NewService(auth.ServiceConfig{
		JWTService: jwtService,
		Operators:  loadOperators(log),
	})
	log.Info().Msg("auth service initialized")

	// Initialize rule repository and service
	ruleRepo := rule.NewPostgresRepository(pool)
	ruleService := rule.NewService(rule.ServiceConfig{
		Repository: ruleRepo,
		Logger:     log,
	})
	log.Info().Msg("rule service initialized")

	// Initialize scenario repository and service
	scenarioRepo := scenario.NewPostgresRepository(pool)
	scenarioService := scenario.NewService(scenario.ServiceConfig{
		Repository: scenarioRepo,
		Logger:     log,
	})
	log.Info().Msg("scenario service initialized")

	// Initialize feature flags repository and service
	ffRepo := featureflags.NewPostgresRepository(pool)
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: ffRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		AuthService:        authService,
		RuleService:        ruleService,
		ScenarioService:    scenarioService,
		FeatureFlagService: ffService,
		DBPing:             pool.Ping,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
