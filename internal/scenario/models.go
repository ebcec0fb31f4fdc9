// Package scenario persists named snapshots of simulation state so a
// what-if session can be replayed later against the then-current rules.
package scenario

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrScenarioNotFound = errors.New("scenario not found")
)

// Parameters is the opaque simulation state saved alongside the enabled
// layer ids. The store guarantees round-trip fidelity and nothing else;
// interpretation belongs to the caller.
type Parameters struct {
	SelectedDurationHours int      `json:"selectedDurationHours,omitempty"`
	ViewWindow            *Window  `json:"viewWindow,omitempty"`
	RangeWindow           *Window  `json:"rangeWindow,omitempty"`
	SurgeEnabled          bool     `json:"surgeEnabled"`
	PricingCoefficients   *float64 `json:"pricingCoefficients,omitempty"`
	IsEventBooking        bool     `json:"isEventBooking,omitempty"`
}

// Window is a saved [start, end) time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EqualScalars reports whether the scalar session parameters match: the
// selected duration, the surge-enabled flag, the event-booking flag, and
// the pricing coefficients. View and range windows are presentation state
// and do not count as divergence.
func (p Parameters) EqualScalars(other Parameters) bool {
	if p.SelectedDurationHours != other.SelectedDurationHours {
		return false
	}
	if p.SurgeEnabled != other.SurgeEnabled {
		return false
	}
	if p.IsEventBooking != other.IsEventBooking {
		return false
	}
	if (p.PricingCoefficients == nil) != (other.PricingCoefficients == nil) {
		return false
	}
	if p.PricingCoefficients != nil && *p.PricingCoefficients != *other.PricingCoefficients {
		return false
	}
	return true
}

// Scenario is a named, persisted snapshot of one simulation session,
// bound to a sub-location.
type Scenario struct {
	ID            string
	SubLocationID string
	Name          string

	EnabledLayerIDs []string
	Parameters      Parameters

	CreatedAt time.Time
	UpdatedAt time.Time
}
