package scenario_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/pricing"
	"github.com/rateboard/rateboard/internal/scenario"
)

func newService() *scenario.Service {
	return scenario.NewService(scenario.ServiceConfig{
		Repository: scenario.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
}

func saveInput() *scenario.SaveInput {
	coeff := 1.15
	return &scenario.SaveInput{
		SubLocationID:   "sub_1",
		Name:            "Concert weekend",
		EnabledLayerIDs: []string{"default:SUBLOCATION", "rul_event", "surge:srg_1"},
		Parameters: scenario.Parameters{
			SelectedDurationHours: 3,
			SurgeEnabled:          true,
			IsEventBooking:        true,
			PricingCoefficients:   &coeff,
			RangeWindow: &scenario.Window{
				Start: time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestService_SaveAndGet(t *testing.T) {
	service := newService()
	ctx := context.Background()

	saved, err := service.Save(ctx, saveInput())
	if err != nil {
		t.Fatalf("failed to save scenario: %v", err)
	}
	if !strings.HasPrefix(saved.ID, "scn_") {
		t.Errorf("expected scenario ID to start with 'scn_', got %q", saved.ID)
	}

	loaded, err := service.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("failed to load scenario: %v", err)
	}

	// The parameter blob must round-trip untouched.
	if loaded.Parameters.SelectedDurationHours != 3 {
		t.Errorf("expected duration 3, got %d", loaded.Parameters.SelectedDurationHours)
	}
	if !loaded.Parameters.SurgeEnabled || !loaded.Parameters.IsEventBooking {
		t.Error("expected surge and event-booking flags to survive the round trip")
	}
	if loaded.Parameters.PricingCoefficients == nil || *loaded.Parameters.PricingCoefficients != 1.15 {
		t.Errorf("expected coefficient 1.15, got %v", loaded.Parameters.PricingCoefficients)
	}
	if loaded.Parameters.RangeWindow == nil || !loaded.Parameters.RangeWindow.Start.Equal(time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)) {
		t.Errorf("expected range window to survive the round trip, got %+v", loaded.Parameters.RangeWindow)
	}
	if len(loaded.EnabledLayerIDs) != 3 {
		t.Errorf("expected 3 enabled layer ids, got %d", len(loaded.EnabledLayerIDs))
	}
}

func TestService_Save_ValidationErrors(t *testing.T) {
	service := newService()
	ctx := context.Background()

	input := saveInput()
	input.Name = ""
	input.SubLocationID = ""

	_, err := service.Save(ctx, input)

	var verr *scenario.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("expected errors on name and subLocationId, got %+v", verr.Errors)
	}
}

func TestService_Restore_ReconcilesAgainstCurrentLayers(t *testing.T) {
	service := newService()
	ctx := context.Background()

	input := saveInput()
	// One saved id points at a rule that has since been deleted.
	input.EnabledLayerIDs = append(input.EnabledLayerIDs, "rul_deleted")
	saved, err := service.Save(ctx, input)
	if err != nil {
		t.Fatal(err)
	}

	layers := []pricing.Layer{
		{ID: "default:SUBLOCATION", Source: pricing.SourceLevelDefault, Priority: 300},
		{ID: "rul_event", Source: pricing.SourceRatesheet, Priority: 900},
		{ID: "surge:srg_1", Source: pricing.SourceSurge, Priority: 950},
		{ID: "rul_new", Source: pricing.SourceRatesheet, Priority: 800},
	}

	sc, sim, err := service.Restore(ctx, saved.ID, layers)
	if err != nil {
		t.Fatalf("failed to restore scenario: %v", err)
	}
	if sc.ID != saved.ID {
		t.Errorf("expected scenario %q, got %q", saved.ID, sc.ID)
	}

	enabled := sim.EnabledIDs()
	want := []string{"default:SUBLOCATION", "rul_event", "surge:srg_1"}
	if len(enabled) != len(want) {
		t.Fatalf("expected %d enabled layers, got %v", len(want), enabled)
	}
	for i, id := range want {
		if enabled[i] != id {
			t.Errorf("expected enabled[%d] = %q, got %q", i, id, enabled[i])
		}
	}

	// A layer added since the save starts disabled after a restore.
	if sim.IsEnabled("rul_new") {
		t.Error("expected layers absent from the saved set to restore disabled")
	}
}

func TestService_HasUnsavedChanges(t *testing.T) {
	service := newService()
	ctx := context.Background()

	input := saveInput()
	saved, err := service.Save(ctx, input)
	if err != nil {
		t.Fatal(err)
	}

	same := []string{"surge:srg_1", "rul_event", "default:SUBLOCATION"}
	changed, err := service.HasUnsavedChanges(ctx, saved.ID, same, input.Parameters)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("expected order-independent comparison to report no changes")
	}

	changed, err = service.HasUnsavedChanges(ctx, saved.ID, []string{"rul_event"}, input.Parameters)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected a smaller enabled set to report unsaved changes")
	}
}

func TestService_HasUnsavedChanges_ParameterDrift(t *testing.T) {
	service := newService()
	ctx := context.Background()

	input := saveInput()
	saved, err := service.Save(ctx, input)
	if err != nil {
		t.Fatal(err)
	}
	sameLayers := input.EnabledLayerIDs

	longer := input.Parameters
	longer.SelectedDurationHours = 4
	changed, err := service.HasUnsavedChanges(ctx, saved.ID, sameLayers, longer)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected a duration change to report unsaved changes")
	}

	noSurge := input.Parameters
	noSurge.SurgeEnabled = false
	changed, err = service.HasUnsavedChanges(ctx, saved.ID, sameLayers, noSurge)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected a surge toggle to report unsaved changes")
	}

	newCoeff := 1.30
	recoeff := input.Parameters
	recoeff.PricingCoefficients = &newCoeff
	changed, err = service.HasUnsavedChanges(ctx, saved.ID, sameLayers, recoeff)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected a coefficient change to report unsaved changes")
	}

	// Window movement is view state, not a divergence.
	panned := input.Parameters
	panned.RangeWindow = &scenario.Window{
		Start: time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC),
	}
	changed, err = service.HasUnsavedChanges(ctx, saved.ID, sameLayers, panned)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("expected a moved window alone to report no changes")
	}
}

func TestService_OverwriteAndDelete(t *testing.T) {
	service := newService()
	ctx := context.Background()

	saved, err := service.Save(ctx, saveInput())
	if err != nil {
		t.Fatal(err)
	}

	input := saveInput()
	input.Name = "Concert weekend v2"
	input.EnabledLayerIDs = []string{"default:SUBLOCATION"}

	updated, err := service.Overwrite(ctx, saved.ID, input)
	if err != nil {
		t.Fatalf("failed to overwrite scenario: %v", err)
	}
	if updated.Name != "Concert weekend v2" || len(updated.EnabledLayerIDs) != 1 {
		t.Errorf("expected overwritten state, got %+v", updated)
	}

	if err := service.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("failed to delete scenario: %v", err)
	}
	if _, err := service.Get(ctx, saved.ID); !errors.Is(err, scenario.ErrScenarioNotFound) {
		t.Errorf("expected ErrScenarioNotFound after delete, got %v", err)
	}

	if err := service.Delete(ctx, "scn_missing"); !errors.Is(err, scenario.ErrScenarioNotFound) {
		t.Errorf("expected ErrScenarioNotFound for unknown scenario, got %v", err)
	}
}
