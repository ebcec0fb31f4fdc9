package rule

import (
	"context"

	"github.com/rateboard/rateboard/internal/pricing"
)

// Repository defines the interface for pricing-rule data persistence.
type Repository interface {
	// GetRule retrieves a pricing rule by ID.
	// Returns ErrRuleNotFound if the rule doesn't exist.
	GetRule(ctx context.Context, id string) (*pricing.PricingRule, error)

	// ListRules retrieves pricing rules matching the options, newest first.
	ListRules(ctx context.Context, opts ListOptions) (*ListResult, error)

	// CreateRule creates a new pricing rule.
	CreateRule(ctx context.Context, rule *pricing.PricingRule) error

	// UpdateRule updates an existing pricing rule.
	UpdateRule(ctx context.Context, rule *pricing.PricingRule) error

	// DeleteRule deletes a pricing rule by ID.
	DeleteRule(ctx context.Context, id string) error

	// ListDefaults retrieves the default rates configured for an entity's
	// hierarchy. The slice holds at most one entry per level.
	ListDefaults(ctx context.Context, entityID string) ([]pricing.DefaultRate, error)

	// PutDefault creates or replaces the default rate for one level.
	PutDefault(ctx context.Context, entityID string, rate pricing.DefaultRate) error

	// DeleteDefault removes the default rate for one level.
	// Returns ErrDefaultNotFound if no rate is configured for the level.
	DeleteDefault(ctx context.Context, entityID string, level pricing.Level) error

	// GetSurgeConfig retrieves a surge config by ID.
	GetSurgeConfig(ctx context.Context, id string) (*pricing.SurgeConfig, error)

	// GetSurgeConfigForSubLocation retrieves the highest-priority active
	// surge config for a sub-location.
	// Returns ErrSurgeConfigNotFound when none is active.
	GetSurgeConfigForSubLocation(ctx context.Context, subLocationID string) (*pricing.SurgeConfig, error)

	// ListSurgeConfigs retrieves every surge config, active or not.
	ListSurgeConfigs(ctx context.Context) ([]*pricing.SurgeConfig, error)

	// PutSurgeConfig creates or replaces a surge config.
	PutSurgeConfig(ctx context.Context, cfg *pricing.SurgeConfig) error

	// UpdateTelemetry applies a demand/supply observation to every active
	// surge config of the sub-location and returns how many were updated.
	UpdateTelemetry(ctx context.Context, obs Telemetry) (int, error)
}
