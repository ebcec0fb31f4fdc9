package scenario

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/api/models"
	"github.com/rateboard/rateboard/internal/pricing"
)

// Validation constants.
const (
	MaxNameLength = 80
)

// ServiceConfig holds configuration for the scenario service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
}

// Service provides scenario save/replay operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService creates a new scenario service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
}

// SaveInput holds the state captured when saving a simulation session.
type SaveInput struct {
	SubLocationID   string
	Name            string
	EnabledLayerIDs []string
	Parameters      Parameters
}

// Save persists the current simulation state as a new named scenario.
func (s *Service) Save(ctx context.Context, input *SaveInput) (*Scenario, error) {
	if fieldErrors := validateSaveInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now()
	sc := &Scenario{
		ID:              "scn_" + uuid.New().String()[:22],
		SubLocationID:   input.SubLocationID,
		Name:            input.Name,
		EnabledLayerIDs: input.EnabledLayerIDs,
		Parameters:      input.Parameters,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, sc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("scenario_id", sc.ID).
		Str("sub_location_id", sc.SubLocationID).
		Int("layers", len(sc.EnabledLayerIDs)).
		Msg("scenario saved")

	return sc, nil
}

// Overwrite replaces the stored state of an existing scenario.
func (s *Service) Overwrite(ctx context.Context, id string, input *SaveInput) (*Scenario, error) {
	if fieldErrors := validateSaveInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	sc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sc.Name = input.Name
	sc.EnabledLayerIDs = input.EnabledLayerIDs
	sc.Parameters = input.Parameters
	sc.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}

	return sc, nil
}

// Get retrieves a scenario by ID.
func (s *Service) Get(ctx context.Context, id string) (*Scenario, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves all scenarios for a sub-location.
func (s *Service) List(ctx context.Context, subLocationID string) ([]*Scenario, error) {
	return s.repo.ListBySubLocation(ctx, subLocationID)
}

// Delete deletes a scenario by ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Restore loads a scenario against the currently discovered layers.
//
// Replay is two-phase: the caller first normalizes the current rule set
// with the scenario's restored parameters (so virtual and materialized
// surge layers exist and carry their final ids), then this reconciles the
// saved enabled set against those layers. Saved ids with no matching layer
// are dropped; the rules behind them may have expired or been deleted
// since the save.
func (s *Service) Restore(ctx context.Context, id string, layers []pricing.Layer) (*Scenario, *pricing.Simulation, error) {
	sc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	sim := pricing.NewSimulation(layers)
	sim.Reconcile(sc.EnabledLayerIDs)

	if dropped := len(sc.EnabledLayerIDs) - len(sim.EnabledIDs()); dropped > 0 {
		s.logger.Info().
			Str("scenario_id", sc.ID).
			Int("dropped", dropped).
			Msg("scenario referenced layers that no longer exist")
	}

	return sc, sim, nil
}

// HasUnsavedChanges reports whether the current session diverges from the
// scenario's saved state: a different enabled layer set, or a change to any
// scalar parameter (duration, surge flag, coefficients).
func (s *Service) HasUnsavedChanges(ctx context.Context, id string, currentEnabled []string, current Parameters) (bool, error) {
	sc, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !pricing.SameLayerSet(sc.EnabledLayerIDs, currentEnabled) {
		return true, nil
	}
	return !sc.Parameters.EqualScalars(current), nil
}

// validateSaveInput validates the save scenario input.
func validateSaveInput(input *SaveInput) []models.FieldError {
	var errs []models.FieldError

	if input.Name == "" {
		errs = append(errs, models.FieldError{Field: "name", Message: "is required"})
	} else if len(input.Name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 80 characters"})
	}

	if input.SubLocationID == "" {
		errs = append(errs, models.FieldError{Field: "subLocationId", Message: "is required"})
	}

	return errs
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
