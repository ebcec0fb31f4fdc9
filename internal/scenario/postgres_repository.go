package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// Parameters are stored as an opaque jsonb blob; only round-trip fidelity
// is guaranteed.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL scenario repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a scenario by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Scenario, error) {
	query := `
		SELECT id, sub_location_id, name, enabled_layer_ids, parameters, created_at, updated_at
		FROM pricing_scenarios
		WHERE id = $1
	`

	s, err := scanScenario(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScenarioNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListBySubLocation retrieves all scenarios for a sub-location.
func (r *PostgresRepository) ListBySubLocation(ctx context.Context, subLocationID string) ([]*Scenario, error) {
	query := `
		SELECT id, sub_location_id, name, enabled_layer_ids, parameters, created_at, updated_at
		FROM pricing_scenarios
		WHERE sub_location_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.pool.Query(ctx, query, subLocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []*Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, rows.Err()
}

// scanScenario scans one scenario from a row.
func scanScenario(row pgx.Row) (*Scenario, error) {
	var s Scenario
	var params []byte

	err := row.Scan(
		&s.ID,
		&s.SubLocationID,
		&s.Name,
		&s.EnabledLayerIDs,
		&params,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &s.Parameters); err != nil {
		return nil, fmt.Errorf("decode scenario parameters: %w", err)
	}

	return &s, nil
}

// Create creates a new scenario.
func (r *PostgresRepository) Create(ctx context.Context, s *Scenario) error {
	params, err := json.Marshal(s.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pricing_scenarios (
			id, sub_location_id, name, enabled_layer_ids, parameters, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.SubLocationID,
		s.Name,
		s.EnabledLayerIDs,
		params,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

// Update updates an existing scenario.
func (r *PostgresRepository) Update(ctx context.Context, s *Scenario) error {
	params, err := json.Marshal(s.Parameters)
	if err != nil {
		return err
	}

	query := `
		UPDATE pricing_scenarios SET
			name = $2,
			enabled_layer_ids = $3,
			parameters = $4,
			updated_at = $5
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.EnabledLayerIDs,
		params,
		s.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrScenarioNotFound
	}

	return nil
}

// Delete deletes a scenario by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM pricing_scenarios WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
