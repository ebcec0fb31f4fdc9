// Package main provides the entrypoint for the RateBoard telemetry worker.
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

	"github.com/rateboard/rateboard/internal/database"
	"github.com/rateboard/rateboard/internal/demand"
	"github.com/rateboard/rateboard/internal/demand/feed"
	"github.com/rateboard/rateboard/internal/featureflags"
	"github.com/rateboard/rateboard/internal/rule"
	"github.com/rateboard/rateboard/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "rateboard-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting RateBoard worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize rule service
	ruleService := rule.NewService(rule.ServiceConfig{
		Repository: rule.NewPostgresRepository(pool),
		Logger:     log,
	})

	// Feature flags gate the demand feed (cached_only_demand kill switch)
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	// Initialize the demand feed client and caching service
	feedClient := feed.NewClient(feed.ClientConfig{
		APIKey:  os.Getenv("DEMAND_FEED_API_KEY"),
		BaseURL: os.Getenv("DEMAND_FEED_URL"),
		Logger:  log,
	})
	demandService := demand.NewService(demand.ServiceConfig{
		Provider:   feedClient,
		Logger:     log,
		CachedOnly: ffService.IsCachedOnlyDemand,
	})

	// Create the telemetry refresh job
	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:        worker.DefaultRefreshConfig(),
		Logger:        log,
		DemandService: demandService,
		RuleService:   ruleService,
	})

	// Create HTTP server for health checks and metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": Version,
		})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(refreshJob.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Prefer Pub/Sub driven refreshes when a subscription is configured.
	// Fall back to a local ticker otherwise.
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")

	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
		log.Info().
			Str("subscription", subscription).
			Msg("worker listening for refresh jobs")
	} else {
		interval := 5 * time.Minute
		if raw := os.Getenv("REFRESH_INTERVAL"); raw != "" {
			parsed, parseErr := time.ParseDuration(raw)
			if parseErr != nil {
				log.Fatal().Err(parseErr).Msg("invalid REFRESH_INTERVAL")
			}
			interval = parsed
		}

		go func() {
			log.Info().Dur("interval", interval).Msg("worker running on local ticker")
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					result := refreshJob.Run(ctx)
					log.Info().
						Int("successful", result.Successful).
						Int("failed", result.Failed).
						Dur("duration", result.Duration).
						Msg("telemetry refresh completed")
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
