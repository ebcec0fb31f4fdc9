package rule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rateboard/rateboard/internal/pricing"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	rules    map[string]*pricing.PricingRule
	defaults map[string]map[pricing.Level]pricing.DefaultRate
	surge    map[string]*pricing.SurgeConfig
}

// NewInMemoryRepository creates a new in-memory rule repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rules:    make(map[string]*pricing.PricingRule),
		defaults: make(map[string]map[pricing.Level]pricing.DefaultRate),
		surge:    make(map[string]*pricing.SurgeConfig),
	}
}

// GetRule retrieves a pricing rule by ID.
func (r *InMemoryRepository) GetRule(_ context.Context, id string) (*pricing.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}

	cpy := copyRule(rule)
	return cpy, nil
}

// ListRules retrieves pricing rules matching the options, newest first.
func (r *InMemoryRepository) ListRules(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []*pricing.PricingRule
	for _, rule := range r.rules {
		if !matchesList(rule, opts) {
			continue
		}
		rules = append(rules, copyRule(rule))
	}

	sort.Slice(rules, func(a, b int) bool {
		if !rules[a].CreatedAt.Equal(rules[b].CreatedAt) {
			return rules[a].CreatedAt.After(rules[b].CreatedAt)
		}
		return rules[a].ID < rules[b].ID
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	result := &ListResult{Items: rules}
	if len(rules) > limit {
		result.Items = rules[:limit]
		result.NextCursor = rules[limit-1].ID
	}

	return result, nil
}

// CreateRule creates a new pricing rule.
func (r *InMemoryRepository) CreateRule(_ context.Context, rule *pricing.PricingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[rule.ID] = copyRule(rule)
	return nil
}

// UpdateRule updates an existing pricing rule.
func (r *InMemoryRepository) UpdateRule(_ context.Context, rule *pricing.PricingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[rule.ID]; !ok {
		return ErrRuleNotFound
	}

	r.rules[rule.ID] = copyRule(rule)
	return nil
}

// DeleteRule deletes a pricing rule by ID.
func (r *InMemoryRepository) DeleteRule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rules, id)
	return nil
}

// ListDefaults retrieves the default rates configured for an entity.
func (r *InMemoryRepository) ListDefaults(_ context.Context, entityID string) ([]pricing.DefaultRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rates := make([]pricing.DefaultRate, 0, len(r.defaults[entityID]))
	for _, rate := range r.defaults[entityID] {
		rates = append(rates, rate)
	}

	sort.Slice(rates, func(a, b int) bool { return rates[a].Level < rates[b].Level })
	return rates, nil
}

// PutDefault creates or replaces the default rate for one level.
func (r *InMemoryRepository) PutDefault(_ context.Context, entityID string, rate pricing.DefaultRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.defaults[entityID] == nil {
		r.defaults[entityID] = make(map[pricing.Level]pricing.DefaultRate)
	}
	r.defaults[entityID][rate.Level] = rate
	return nil
}

// DeleteDefault removes the default rate for one level.
func (r *InMemoryRepository) DeleteDefault(_ context.Context, entityID string, level pricing.Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defaults[entityID][level]; !ok {
		return ErrDefaultNotFound
	}
	delete(r.defaults[entityID], level)
	return nil
}

// GetSurgeConfig retrieves a surge config by ID.
func (r *InMemoryRepository) GetSurgeConfig(_ context.Context, id string) (*pricing.SurgeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.surge[id]
	if !ok {
		return nil, ErrSurgeConfigNotFound
	}

	cpy := *cfg
	return &cpy, nil
}

// GetSurgeConfigForSubLocation retrieves the highest-priority active surge
// config for a sub-location.
func (r *InMemoryRepository) GetSurgeConfigForSubLocation(_ context.Context, subLocationID string) (*pricing.SurgeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *pricing.SurgeConfig
	for _, cfg := range r.surge {
		if cfg.SubLocationID != subLocationID || !cfg.IsActive {
			continue
		}
		if best == nil || cfg.Priority > best.Priority {
			best = cfg
		}
	}
	if best == nil {
		return nil, ErrSurgeConfigNotFound
	}

	cpy := *best
	return &cpy, nil
}

// ListSurgeConfigs retrieves every surge config.
func (r *InMemoryRepository) ListSurgeConfigs(_ context.Context) ([]*pricing.SurgeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]*pricing.SurgeConfig, 0, len(r.surge))
	for _, cfg := range r.surge {
		cpy := *cfg
		configs = append(configs, &cpy)
	}

	sort.Slice(configs, func(a, b int) bool { return configs[a].ID < configs[b].ID })
	return configs, nil
}

// PutSurgeConfig creates or replaces a surge config.
func (r *InMemoryRepository) PutSurgeConfig(_ context.Context, cfg *pricing.SurgeConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *cfg
	r.surge[cfg.ID] = &cpy
	return nil
}

// UpdateTelemetry applies a demand/supply observation to every active surge
// config of the sub-location.
func (r *InMemoryRepository) UpdateTelemetry(_ context.Context, obs Telemetry) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, cfg := range r.surge {
		if cfg.SubLocationID != obs.SubLocationID || !cfg.IsActive {
			continue
		}
		cfg.CurrentDemand = obs.CurrentDemand
		cfg.CurrentSupply = obs.CurrentSupply
		if obs.HistoricalAvgPressure > 0 {
			cfg.HistoricalAvgPressure = obs.HistoricalAvgPressure
		}
		cfg.UpdatedAt = time.Now()
		updated++
	}

	return updated, nil
}

// matchesList reports whether a rule satisfies the list filter.
func matchesList(rule *pricing.PricingRule, opts ListOptions) bool {
	if opts.EntityID != "" && rule.EntityID != opts.EntityID {
		return false
	}
	if opts.Level != "" && rule.Level != opts.Level {
		return false
	}
	if len(opts.Statuses) == 0 {
		return rule.ApprovalStatus != pricing.StatusArchived
	}
	for _, s := range opts.Statuses {
		if rule.ApprovalStatus == s {
			return true
		}
	}
	return false
}

// copyRule returns a deep copy so callers cannot mutate stored state.
func copyRule(rule *pricing.PricingRule) *pricing.PricingRule {
	cpy := *rule
	cpy.Windows = append([]pricing.TimeWindow(nil), rule.Windows...)
	for i := range cpy.Windows {
		w := &cpy.Windows[i]
		w.DaysOfWeek = append([]int(nil), w.DaysOfWeek...)
		if w.StartMinute != nil {
			v := *w.StartMinute
			w.StartMinute = &v
		}
		if w.EndMinute != nil {
			v := *w.EndMinute
			w.EndMinute = &v
		}
	}
	if rule.EffectiveTo != nil {
		v := *rule.EffectiveTo
		cpy.EffectiveTo = &v
	}
	if rule.SurgeConfigID != nil {
		v := *rule.SurgeConfigID
		cpy.SurgeConfigID = &v
	}
	if rule.SurgeMultiplierSnapshot != nil {
		v := *rule.SurgeMultiplierSnapshot
		cpy.SurgeMultiplierSnapshot = &v
	}
	return &cpy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
