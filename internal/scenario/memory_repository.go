package scenario

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	scenarios map[string]*Scenario
}

// NewInMemoryRepository creates a new in-memory scenario repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		scenarios: make(map[string]*Scenario),
	}
}

// Get retrieves a scenario by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scenarios[id]
	if !ok {
		return nil, ErrScenarioNotFound
	}

	return copyScenario(s), nil
}

// ListBySubLocation retrieves all scenarios for a sub-location.
func (r *InMemoryRepository) ListBySubLocation(_ context.Context, subLocationID string) ([]*Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var scenarios []*Scenario
	for _, s := range r.scenarios {
		if s.SubLocationID == subLocationID {
			scenarios = append(scenarios, copyScenario(s))
		}
	}

	sort.Slice(scenarios, func(a, b int) bool {
		if !scenarios[a].CreatedAt.Equal(scenarios[b].CreatedAt) {
			return scenarios[a].CreatedAt.After(scenarios[b].CreatedAt)
		}
		return scenarios[a].ID < scenarios[b].ID
	})

	return scenarios, nil
}

// Create creates a new scenario.
func (r *InMemoryRepository) Create(_ context.Context, s *Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scenarios[s.ID] = copyScenario(s)
	return nil
}

// Update updates an existing scenario.
func (r *InMemoryRepository) Update(_ context.Context, s *Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.scenarios[s.ID]; !ok {
		return ErrScenarioNotFound
	}

	r.scenarios[s.ID] = copyScenario(s)
	return nil
}

// Delete deletes a scenario by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.scenarios, id)
	return nil
}

func copyScenario(s *Scenario) *Scenario {
	cpy := *s
	cpy.EnabledLayerIDs = append([]string(nil), s.EnabledLayerIDs...)
	if s.Parameters.ViewWindow != nil {
		w := *s.Parameters.ViewWindow
		cpy.Parameters.ViewWindow = &w
	}
	if s.Parameters.RangeWindow != nil {
		w := *s.Parameters.RangeWindow
		cpy.Parameters.RangeWindow = &w
	}
	if s.Parameters.PricingCoefficients != nil {
		v := *s.Parameters.PricingCoefficients
		cpy.Parameters.PricingCoefficients = &v
	}
	return &cpy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
