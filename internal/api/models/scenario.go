package models

import "time"

// Scenario is the API representation of a saved simulation snapshot.
type Scenario struct {
	ID              string             `json:"id"`
	SubLocationID   string             `json:"subLocationId"`
	Name            string             `json:"name"`
	EnabledLayerIDs []string           `json:"enabledLayerIds"`
	Parameters      ScenarioParameters `json:"parameters"`
	CreatedAt       Timestamp          `json:"createdAt"`
	UpdatedAt       Timestamp          `json:"updatedAt"`
}

// ScenarioParameters is the simulation session state carried alongside the
// enabled layer ids. The API stores and returns it with round-trip fidelity.
type ScenarioParameters struct {
	SelectedDurationHours int             `json:"selectedDurationHours,omitempty"`
	ViewWindow            *ScenarioWindow `json:"viewWindow,omitempty"`
	RangeWindow           *ScenarioWindow `json:"rangeWindow,omitempty"`
	SurgeEnabled          bool            `json:"surgeEnabled"`
	PricingCoefficients   *float64        `json:"pricingCoefficients,omitempty"`
	IsEventBooking        bool            `json:"isEventBooking,omitempty"`
}

// ScenarioWindow is a saved [start, end) time range.
type ScenarioWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScenarioList is a list of saved scenarios.
type ScenarioList struct {
	Items []Scenario `json:"items"`
}

// ScenarioSaveRequest is the request body for saving a scenario.
type ScenarioSaveRequest struct {
	SubLocationID   string             `json:"subLocationId"`
	Name            string             `json:"name"`
	EnabledLayerIDs []string           `json:"enabledLayerIds"`
	Parameters      ScenarioParameters `json:"parameters"`
}

// ScenarioRestoreRequest is the request body for restoring a scenario
// against the current rule population.
type ScenarioRestoreRequest struct {
	// EntityID selects whose rules the saved layer set is reconciled
	// against. Defaults to the scenario's sub-location.
	EntityID string `json:"entityId,omitempty"`
}

// ScenarioRestoreResponse reports the reconciled simulation state.
type ScenarioRestoreResponse struct {
	Scenario Scenario `json:"scenario"`

	// EnabledLayerIDs is the saved set minus layers that no longer exist.
	EnabledLayerIDs []string `json:"enabledLayerIds"`

	// Layers is the current layer stack with restored enablement.
	Layers []PricingLayer `json:"layers"`

	// DroppedLayerIDs are saved ids that no longer resolve to a layer.
	DroppedLayerIDs []string `json:"droppedLayerIds,omitempty"`
}

// ScenarioDiffRequest carries the current in-session layer set and
// parameters for an unsaved-changes check.
type ScenarioDiffRequest struct {
	EnabledLayerIDs []string           `json:"enabledLayerIds"`
	Parameters      ScenarioParameters `json:"parameters"`
}

// ScenarioDiffResponse reports whether the session diverged from the save.
type ScenarioDiffResponse struct {
	HasUnsavedChanges bool `json:"hasUnsavedChanges"`
}
