package models

import (
	"time"

	"github.com/rateboard/rateboard/internal/pricing"
)

// ComputeTimeslotsRequest is the request body for POST /v1/pricing/timeslots:compute.
type ComputeTimeslotsRequest struct {
	// EntityID is the entity whose rules and defaults are resolved.
	EntityID string `json:"entityId"`

	// SubLocationID selects the surge config, if any.
	SubLocationID string `json:"subLocationId,omitempty"`

	// Mode is LIVE or SIMULATION. Defaults to LIVE.
	Mode string `json:"mode,omitempty"`

	RangeStart time.Time `json:"rangeStart"`
	RangeEnd   time.Time `json:"rangeEnd"`

	// GranularityMinutes is the slot width. Defaults to 60.
	GranularityMinutes int `json:"granularityMinutes,omitempty"`

	// Timezone is an IANA zone name used to interpret absolute windows.
	// Defaults to UTC.
	Timezone string `json:"timezone,omitempty"`

	IsEventBooking bool `json:"isEventBooking,omitempty"`

	// SurgeEnabled admits the live surge layer. Defaults to true.
	SurgeEnabled *bool `json:"surgeEnabled,omitempty"`

	// EnabledLayerIDs filters which layers may win. Null means all.
	EnabledLayerIDs []string `json:"enabledLayerIds,omitempty"`

	// BaselinePrice is the surge base when no other layer is active.
	BaselinePrice *float64 `json:"baselinePrice,omitempty"`
}

// PricingLayer is one normalized layer in the resolution stack.
type PricingLayer struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Priority int    `json:"priority"`
	Level    string `json:"level"`
	Enabled  bool   `json:"enabled"`
}

// LayerResult is the per-slot outcome of one layer.
type LayerResult struct {
	LayerID    string   `json:"layerId"`
	Source     string   `json:"source"`
	Priority   int      `json:"priority"`
	Active     bool     `json:"active"`
	Enabled    bool     `json:"enabled"`
	Price      *float64 `json:"price,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty"`
}

// TimeSlot is one resolved slot of the queried range.
type TimeSlot struct {
	Hour            Timestamp     `json:"hour"`
	WinningLayerID  string        `json:"winningLayerId,omitempty"`
	WinningPrice    *float64      `json:"winningPrice,omitempty"`
	BasePrice       *float64      `json:"basePrice,omitempty"`
	SurgePrice      *float64      `json:"surgePrice,omitempty"`
	SurgeMultiplier *float64      `json:"surgeMultiplier,omitempty"`
	Layers          []LayerResult `json:"layers,omitempty"`
}

// ComputeTimeslotsResponse is the response for a compute request.
type ComputeTimeslotsResponse struct {
	Slots         []TimeSlot     `json:"slots"`
	Layers        []PricingLayer `json:"layers"`
	TotalCost     float64        `json:"totalCost"`
	UnpricedHours int            `json:"unpricedHours"`
}

// LayerListResponse is the response for GET /v1/pricing/layers.
type LayerListResponse struct {
	Layers []PricingLayer `json:"layers"`
}

// NewPricingLayer converts an engine layer to its API representation.
func NewPricingLayer(l pricing.Layer, enabled bool) PricingLayer {
	return PricingLayer{
		ID:       l.ID,
		Source:   string(l.Source),
		Priority: l.Priority,
		Level:    string(l.Level),
		Enabled:  enabled,
	}
}

// NewLayerResult converts a per-slot layer outcome to its API representation.
func NewLayerResult(lr pricing.LayerResult) LayerResult {
	return LayerResult{
		LayerID:    lr.LayerID,
		Source:     string(lr.Source),
		Priority:   lr.Priority,
		Active:     lr.Active,
		Enabled:    lr.Enabled,
		Price:      lr.Price,
		Multiplier: lr.Multiplier,
	}
}

// NewTimeSlot converts a resolved slot to its API representation.
func NewTimeSlot(s pricing.TimeSlot) TimeSlot {
	slot := TimeSlot{
		Hour:            Timestamp(s.Hour),
		WinningLayerID:  s.WinningLayerID,
		WinningPrice:    s.WinningPrice,
		BasePrice:       s.BasePrice,
		SurgePrice:      s.SurgePrice,
		SurgeMultiplier: s.SurgeMultiplier,
	}
	for _, lr := range s.Layers {
		slot.Layers = append(slot.Layers, NewLayerResult(lr))
	}
	return slot
}

// NewComputeTimeslotsResponse assembles the full compute response.
func NewComputeTimeslotsResponse(result *pricing.Result, layers []pricing.Layer, enabled map[string]bool) ComputeTimeslotsResponse {
	resp := ComputeTimeslotsResponse{
		Slots:         make([]TimeSlot, 0, len(result.Slots)),
		Layers:        make([]PricingLayer, 0, len(layers)),
		TotalCost:     result.TotalCost,
		UnpricedHours: result.UnpricedHours,
	}
	for _, s := range result.Slots {
		resp.Slots = append(resp.Slots, NewTimeSlot(s))
	}
	for _, l := range layers {
		on := true
		if enabled != nil {
			on = enabled[l.ID]
		}
		resp.Layers = append(resp.Layers, NewPricingLayer(l, on))
	}
	return resp
}
