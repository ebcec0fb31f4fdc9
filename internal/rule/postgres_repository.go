package rule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rateboard/rateboard/internal/pricing"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL rule repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// windowRecord is the jsonb wire form of a time window.
type windowRecord struct {
	Type         string  `json:"type"`
	StartTime    string  `json:"startTime,omitempty"`
	EndTime      string  `json:"endTime,omitempty"`
	DaysOfWeek   []int   `json:"daysOfWeek,omitempty"`
	StartMinute  *int    `json:"startMinute,omitempty"`
	EndMinute    *int    `json:"endMinute,omitempty"`
	PricePerHour float64 `json:"pricePerHour"`
}

func encodeWindows(windows []pricing.TimeWindow) ([]byte, error) {
	records := make([]windowRecord, 0, len(windows))
	for _, w := range windows {
		records = append(records, windowRecord{
			Type:         string(w.Type),
			StartTime:    w.StartTime,
			EndTime:      w.EndTime,
			DaysOfWeek:   w.DaysOfWeek,
			StartMinute:  w.StartMinute,
			EndMinute:    w.EndMinute,
			PricePerHour: w.PricePerHour,
		})
	}
	return json.Marshal(records)
}

func decodeWindows(data []byte) ([]pricing.TimeWindow, error) {
	var records []windowRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode windows: %w", err)
	}

	windows := make([]pricing.TimeWindow, 0, len(records))
	for _, rec := range records {
		windows = append(windows, pricing.TimeWindow{
			Type:         pricing.WindowType(rec.Type),
			StartTime:    rec.StartTime,
			EndTime:      rec.EndTime,
			DaysOfWeek:   rec.DaysOfWeek,
			StartMinute:  rec.StartMinute,
			EndMinute:    rec.EndMinute,
			PricePerHour: rec.PricePerHour,
		})
	}
	return windows, nil
}

const ruleColumns = `
	id, name, entity_id, level, priority, kind, conflict_resolution,
	effective_from, effective_to, is_active, approval_status, windows,
	surge_config_id, surge_multiplier_snapshot, created_at, updated_at
`

// GetRule retrieves a pricing rule by ID.
func (r *PostgresRepository) GetRule(ctx context.Context, id string) (*pricing.PricingRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM pricing_rules WHERE id = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves pricing rules matching the options, newest first.
func (r *PostgresRepository) ListRules(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := `SELECT ` + ruleColumns + ` FROM pricing_rules WHERE 1=1`
	args := []interface{}{}

	if opts.EntityID != "" {
		args = append(args, opts.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if opts.Level != "" {
		args = append(args, string(opts.Level))
		query += fmt.Sprintf(" AND level = $%d", len(args))
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, 0, len(opts.Statuses))
		for _, s := range opts.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		query += fmt.Sprintf(" AND approval_status = ANY($%d)", len(args))
	} else {
		args = append(args, string(pricing.StatusArchived))
		query += fmt.Sprintf(" AND approval_status <> $%d", len(args))
	}

	args = append(args, fetchLimit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*pricing.PricingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: rules}
	if len(rules) > limit {
		result.Items = rules[:limit]
		result.NextCursor = rules[limit-1].ID
	}

	return result, nil
}

// scanRule scans one pricing rule from a row.
func scanRule(row pgx.Row) (*pricing.PricingRule, error) {
	var rule pricing.PricingRule
	var windowData []byte

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.EntityID,
		&rule.Level,
		&rule.Priority,
		&rule.Kind,
		&rule.ConflictResolution,
		&rule.EffectiveFrom,
		&rule.EffectiveTo,
		&rule.IsActive,
		&rule.ApprovalStatus,
		&windowData,
		&rule.SurgeConfigID,
		&rule.SurgeMultiplierSnapshot,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Windows, err = decodeWindows(windowData)
	if err != nil {
		return nil, err
	}

	return &rule, nil
}

// CreateRule creates a new pricing rule.
func (r *PostgresRepository) CreateRule(ctx context.Context, rule *pricing.PricingRule) error {
	windowData, err := encodeWindows(rule.Windows)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pricing_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.EntityID,
		string(rule.Level),
		rule.Priority,
		string(rule.Kind),
		string(rule.ConflictResolution),
		rule.EffectiveFrom,
		rule.EffectiveTo,
		rule.IsActive,
		string(rule.ApprovalStatus),
		windowData,
		rule.SurgeConfigID,
		rule.SurgeMultiplierSnapshot,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	return err
}

// UpdateRule updates an existing pricing rule.
func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *pricing.PricingRule) error {
	windowData, err := encodeWindows(rule.Windows)
	if err != nil {
		return err
	}

	query := `
		UPDATE pricing_rules SET
			name = $2,
			level = $3,
			priority = $4,
			kind = $5,
			conflict_resolution = $6,
			effective_from = $7,
			effective_to = $8,
			is_active = $9,
			approval_status = $10,
			windows = $11,
			surge_config_id = $12,
			surge_multiplier_snapshot = $13,
			updated_at = $14
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		string(rule.Level),
		rule.Priority,
		string(rule.Kind),
		string(rule.ConflictResolution),
		rule.EffectiveFrom,
		rule.EffectiveTo,
		rule.IsActive,
		string(rule.ApprovalStatus),
		windowData,
		rule.SurgeConfigID,
		rule.SurgeMultiplierSnapshot,
		rule.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// DeleteRule deletes a pricing rule by ID.
func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) error {
	query := `DELETE FROM pricing_rules WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// ListDefaults retrieves the default rates configured for an entity.
func (r *PostgresRepository) ListDefaults(ctx context.Context, entityID string) ([]pricing.DefaultRate, error) {
	query := `
		SELECT level, hourly_rate
		FROM default_rates
		WHERE entity_id = $1
		ORDER BY level
	`

	rows, err := r.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []pricing.DefaultRate
	for rows.Next() {
		var rate pricing.DefaultRate
		if err := rows.Scan(&rate.Level, &rate.HourlyRate); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

// PutDefault creates or replaces the default rate for one level.
func (r *PostgresRepository) PutDefault(ctx context.Context, entityID string, rate pricing.DefaultRate) error {
	query := `
		INSERT INTO default_rates (entity_id, level, hourly_rate)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id, level) DO UPDATE SET hourly_rate = EXCLUDED.hourly_rate
	`

	_, err := r.pool.Exec(ctx, query, entityID, string(rate.Level), rate.HourlyRate)
	return err
}

// DeleteDefault removes the default rate for one level.
func (r *PostgresRepository) DeleteDefault(ctx context.Context, entityID string, level pricing.Level) error {
	query := `DELETE FROM default_rates WHERE entity_id = $1 AND level = $2`

	result, err := r.pool.Exec(ctx, query, entityID, string(level))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDefaultNotFound
	}
	return nil
}

const surgeColumns = `
	id, sub_location_id, priority,
	current_demand, current_supply, historical_avg_pressure,
	alpha, min_multiplier, max_multiplier, is_active, updated_at
`

// GetSurgeConfig retrieves a surge config by ID.
func (r *PostgresRepository) GetSurgeConfig(ctx context.Context, id string) (*pricing.SurgeConfig, error) {
	query := `SELECT ` + surgeColumns + ` FROM surge_configs WHERE id = $1`
	return r.scanSurgeConfig(ctx, query, id)
}

// GetSurgeConfigForSubLocation retrieves the highest-priority active surge
// config for a sub-location.
func (r *PostgresRepository) GetSurgeConfigForSubLocation(ctx context.Context, subLocationID string) (*pricing.SurgeConfig, error) {
	query := `
		SELECT ` + surgeColumns + `
		FROM surge_configs
		WHERE sub_location_id = $1 AND is_active
		ORDER BY priority DESC
		LIMIT 1
	`
	return r.scanSurgeConfig(ctx, query, subLocationID)
}

// scanSurgeConfig scans a surge config from a query result.
func (r *PostgresRepository) scanSurgeConfig(ctx context.Context, query string, args ...interface{}) (*pricing.SurgeConfig, error) {
	var cfg pricing.SurgeConfig

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&cfg.ID,
		&cfg.SubLocationID,
		&cfg.Priority,
		&cfg.CurrentDemand,
		&cfg.CurrentSupply,
		&cfg.HistoricalAvgPressure,
		&cfg.Alpha,
		&cfg.MinMultiplier,
		&cfg.MaxMultiplier,
		&cfg.IsActive,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSurgeConfigNotFound
		}
		return nil, err
	}

	return &cfg, nil
}

// ListSurgeConfigs retrieves every surge config.
func (r *PostgresRepository) ListSurgeConfigs(ctx context.Context) ([]*pricing.SurgeConfig, error) {
	query := `SELECT ` + surgeColumns + ` FROM surge_configs ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*pricing.SurgeConfig
	for rows.Next() {
		var cfg pricing.SurgeConfig
		err := rows.Scan(
			&cfg.ID,
			&cfg.SubLocationID,
			&cfg.Priority,
			&cfg.CurrentDemand,
			&cfg.CurrentSupply,
			&cfg.HistoricalAvgPressure,
			&cfg.Alpha,
			&cfg.MinMultiplier,
			&cfg.MaxMultiplier,
			&cfg.IsActive,
			&cfg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// PutSurgeConfig creates or replaces a surge config.
func (r *PostgresRepository) PutSurgeConfig(ctx context.Context, cfg *pricing.SurgeConfig) error {
	query := `
		INSERT INTO surge_configs (` + surgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			sub_location_id = EXCLUDED.sub_location_id,
			priority = EXCLUDED.priority,
			current_demand = EXCLUDED.current_demand,
			current_supply = EXCLUDED.current_supply,
			historical_avg_pressure = EXCLUDED.historical_avg_pressure,
			alpha = EXCLUDED.alpha,
			min_multiplier = EXCLUDED.min_multiplier,
			max_multiplier = EXCLUDED.max_multiplier,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		cfg.ID,
		cfg.SubLocationID,
		cfg.Priority,
		cfg.CurrentDemand,
		cfg.CurrentSupply,
		cfg.HistoricalAvgPressure,
		cfg.Alpha,
		cfg.MinMultiplier,
		cfg.MaxMultiplier,
		cfg.IsActive,
		cfg.UpdatedAt,
	)
	return err
}

// UpdateTelemetry applies a demand/supply observation to every active surge
// config of the sub-location. A non-positive historical average in the
// observation keeps the stored baseline.
func (r *PostgresRepository) UpdateTelemetry(ctx context.Context, obs Telemetry) (int, error) {
	query := `
		UPDATE surge_configs SET
			current_demand = $2,
			current_supply = $3,
			historical_avg_pressure = CASE WHEN $4 > 0 THEN $4 ELSE historical_avg_pressure END,
			updated_at = now()
		WHERE sub_location_id = $1 AND is_active
	`

	result, err := r.pool.Exec(ctx, query,
		obs.SubLocationID,
		obs.CurrentDemand,
		obs.CurrentSupply,
		obs.HistoricalAvgPressure,
	)
	if err != nil {
		return 0, err
	}

	return int(result.RowsAffected()), nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
