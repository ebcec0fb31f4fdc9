package scenario

import "context"

// Repository defines the interface for scenario persistence.
type Repository interface {
	// Get retrieves a scenario by ID.
	// Returns ErrScenarioNotFound if the scenario doesn't exist.
	Get(ctx context.Context, id string) (*Scenario, error)

	// ListBySubLocation retrieves all scenarios for a sub-location,
	// newest first.
	ListBySubLocation(ctx context.Context, subLocationID string) ([]*Scenario, error)

	// Create creates a new scenario.
	Create(ctx context.Context, s *Scenario) error

	// Update updates an existing scenario.
	Update(ctx context.Context, s *Scenario) error

	// Delete deletes a scenario by ID.
	Delete(ctx context.Context, id string) error
}
