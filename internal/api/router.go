// Package api provides the HTTP API for RateBoard.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/api/handler"
	"github.com/rateboard/rateboard/internal/api/middleware"
	"github.com/rateboard/rateboard/internal/auth"
	"github.com/rateboard/rateboard/internal/featureflags"
	"github.com/rateboard/rateboard/internal/provider/resilience"
	"github.com/rateboard/rateboard/internal/rule"
	"github.com/rateboard/rateboard/internal/scenario"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	AuthService        *auth.Service
	RuleService        *rule.Service
	ScenarioService    *scenario.Service
	FeatureFlagService *featureflags.Service
	ProviderRegistry   *resilience.Registry
	DBPing             handler.PingFunc
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "rateboard-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ProviderRegistry, cfg.DBPing)
	pricingHandler := handler.NewPricingHandler(cfg.RuleService, cfg.FeatureFlagService, cfg.Logger)
	ruleHandler := handler.NewRuleHandler(cfg.RuleService, cfg.FeatureFlagService, cfg.Logger)
	scenarioHandler := handler.NewScenarioHandler(cfg.ScenarioService, cfg.RuleService, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)           // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Authentication endpoints - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit) // 10 requests per minute per IP
			r.Post("/token", authHandler.IssueToken)
			r.With(authMiddleware).Get("/operator", authHandler.GetOperator)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Price resolution - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/pricing/timeslots:compute", pricingHandler.ComputeTimeslots)

		// Layer inspection and simulation preview - standard rate limiting
		r.With(standardRateLimit).Get("/pricing/layers", pricingHandler.ListLayers)
		r.With(standardRateLimit).Post("/pricing/layers:preview", pricingHandler.PreviewLayerToggle)

		// Rule management (authenticated) - operator-based rate limiting
		r.Route("/rules", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByOperator(middleware.StandardRateLimit)) // 100 req/min per operator
			r.Get("/", ruleHandler.ListRules)
			r.Post("/", ruleHandler.CreateRule)
			r.Route("/{ruleId}", func(r chi.Router) {
				r.Get("/", ruleHandler.GetRule)
				r.Put("/", ruleHandler.UpdateRule)
				r.Delete("/", ruleHandler.DeleteRule)
				r.Post("/status", ruleHandler.TransitionRule)
			})
		})

		// Entity default rates (authenticated)
		r.Route("/entities/{entityId}/defaults", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByOperator(middleware.StandardRateLimit))
			r.Get("/", ruleHandler.ListDefaults)
			r.Put("/{level}", ruleHandler.PutDefault)
			r.Delete("/{level}", ruleHandler.DeleteDefault)
		})

		// Surge configs - reads are public, materialization requires authentication
		r.Route("/surge-configs", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", ruleHandler.ListSurgeConfigs)
			r.Get("/{surgeConfigId}", ruleHandler.GetSurgeConfig)
			r.With(authMiddleware).Post("/{surgeConfigId}/materialize", ruleHandler.MaterializeSurge)
		})

		// Scenario management (authenticated) - operator-based rate limiting
		r.Route("/scenarios", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByOperator(middleware.StandardRateLimit))
			r.Get("/", scenarioHandler.ListScenarios)
			r.Post("/", scenarioHandler.SaveScenario)
			r.Route("/{scenarioId}", func(r chi.Router) {
				r.Get("/", scenarioHandler.GetScenario)
				r.Put("/", scenarioHandler.OverwriteScenario)
				r.Delete("/", scenarioHandler.DeleteScenario)
				r.Post("/restore", scenarioHandler.RestoreScenario)
				r.Post("/diff", scenarioHandler.DiffScenario)
			})
		})

		// Admin endpoints (authenticated) - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
