package models

import (
	"time"

	"github.com/rateboard/rateboard/internal/pricing"
)

// TimeWindow is the API representation of one priced rule window.
type TimeWindow struct {
	Type         string  `json:"type"`
	StartTime    string  `json:"startTime,omitempty"`
	EndTime      string  `json:"endTime,omitempty"`
	DaysOfWeek   []int   `json:"daysOfWeek,omitempty"`
	StartMinute  *int    `json:"startMinute,omitempty"`
	EndMinute    *int    `json:"endMinute,omitempty"`
	PricePerHour float64 `json:"pricePerHour"`
}

// PricingRule is the API representation of a pricing rule.
type PricingRule struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	EntityID           string       `json:"entityId"`
	Level              string       `json:"level"`
	Priority           int          `json:"priority"`
	Kind               string       `json:"kind"`
	ConflictResolution string       `json:"conflictResolution"`
	EffectiveFrom      Timestamp    `json:"effectiveFrom"`
	EffectiveTo        *Timestamp   `json:"effectiveTo,omitempty"`
	IsActive           bool         `json:"isActive"`
	ApprovalStatus     string       `json:"approvalStatus"`
	Windows            []TimeWindow `json:"windows"`

	SurgeConfigID           *string  `json:"surgeConfigId,omitempty"`
	SurgeMultiplierSnapshot *float64 `json:"surgeMultiplierSnapshot,omitempty"`

	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// PagedRules is a paginated list of pricing rules.
type PagedRules struct {
	Items []PricingRule     `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// RuleCreateRequest is the request body for creating a rule.
type RuleCreateRequest struct {
	Name               string       `json:"name"`
	EntityID           string       `json:"entityId"`
	Level              string       `json:"level"`
	Priority           int          `json:"priority"`
	Kind               string       `json:"kind"`
	ConflictResolution string       `json:"conflictResolution,omitempty"`
	EffectiveFrom      time.Time    `json:"effectiveFrom"`
	EffectiveTo        *time.Time   `json:"effectiveTo,omitempty"`
	Windows            []TimeWindow `json:"windows"`
}

// RuleUpdateRequest is the request body for updating a draft rule.
// Nil fields are left unchanged.
type RuleUpdateRequest struct {
	Name          *string      `json:"name,omitempty"`
	Priority      *int         `json:"priority,omitempty"`
	EffectiveFrom *time.Time   `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time   `json:"effectiveTo,omitempty"`
	Windows       []TimeWindow `json:"windows,omitempty"`
	IsActive      *bool        `json:"isActive,omitempty"`
}

// RuleTransitionRequest is the request body for moving a rule through the
// approval workflow.
type RuleTransitionRequest struct {
	Status string `json:"status"`
}

// MaterializeSurgeRequest is the request body for freezing a surge config's
// current multiplier into an approved rule.
type MaterializeSurgeRequest struct {
	EntityID      string       `json:"entityId"`
	Name          string       `json:"name"`
	EffectiveFrom time.Time    `json:"effectiveFrom"`
	EffectiveTo   *time.Time   `json:"effectiveTo,omitempty"`
	Windows       []TimeWindow `json:"windows"`
}

// SurgeConfig is the API representation of a surge configuration.
type SurgeConfig struct {
	ID                    string    `json:"id"`
	SubLocationID         string    `json:"subLocationId"`
	Priority              int       `json:"priority"`
	CurrentDemand         float64   `json:"currentDemand"`
	CurrentSupply         float64   `json:"currentSupply"`
	HistoricalAvgPressure float64   `json:"historicalAvgPressure"`
	Alpha                 float64   `json:"alpha"`
	MinMultiplier         float64   `json:"minMultiplier"`
	MaxMultiplier         float64   `json:"maxMultiplier"`
	IsActive              bool      `json:"isActive"`
	UpdatedAt             Timestamp `json:"updatedAt"`
}

// SurgeConfigList is a list of surge configurations.
type SurgeConfigList struct {
	Items []SurgeConfig `json:"items"`
}

// DefaultRate is the API representation of a per-level fallback price.
type DefaultRate struct {
	Level      string  `json:"level"`
	HourlyRate float64 `json:"hourlyRate"`
}

// DefaultRateList is the set of default rates of one entity.
type DefaultRateList struct {
	Items []DefaultRate `json:"items"`
}

// NewTimeWindow converts an engine window to its API representation.
func NewTimeWindow(w pricing.TimeWindow) TimeWindow {
	return TimeWindow{
		Type:         string(w.Type),
		StartTime:    w.StartTime,
		EndTime:      w.EndTime,
		DaysOfWeek:   w.DaysOfWeek,
		StartMinute:  w.StartMinute,
		EndMinute:    w.EndMinute,
		PricePerHour: w.PricePerHour,
	}
}

// ToEngine converts the API window to its engine representation.
func (w TimeWindow) ToEngine() pricing.TimeWindow {
	return pricing.TimeWindow{
		Type:         pricing.WindowType(w.Type),
		StartTime:    w.StartTime,
		EndTime:      w.EndTime,
		DaysOfWeek:   w.DaysOfWeek,
		StartMinute:  w.StartMinute,
		EndMinute:    w.EndMinute,
		PricePerHour: w.PricePerHour,
	}
}

// EngineWindows converts a slice of API windows to engine windows.
func EngineWindows(windows []TimeWindow) []pricing.TimeWindow {
	if windows == nil {
		return nil
	}
	out := make([]pricing.TimeWindow, 0, len(windows))
	for _, w := range windows {
		out = append(out, w.ToEngine())
	}
	return out
}

// NewPricingRule converts an engine rule to its API representation.
func NewPricingRule(r *pricing.PricingRule) PricingRule {
	dto := PricingRule{
		ID:                 r.ID,
		Name:               r.Name,
		EntityID:           r.EntityID,
		Level:              string(r.Level),
		Priority:           r.Priority,
		Kind:               string(r.Kind),
		ConflictResolution: string(r.ConflictResolution),
		EffectiveFrom:      Timestamp(r.EffectiveFrom),
		IsActive:           r.IsActive,
		ApprovalStatus:     string(r.ApprovalStatus),
		Windows:            make([]TimeWindow, 0, len(r.Windows)),

		SurgeConfigID:           r.SurgeConfigID,
		SurgeMultiplierSnapshot: r.SurgeMultiplierSnapshot,

		CreatedAt: Timestamp(r.CreatedAt),
		UpdatedAt: Timestamp(r.UpdatedAt),
	}
	if r.EffectiveTo != nil {
		ts := Timestamp(*r.EffectiveTo)
		dto.EffectiveTo = &ts
	}
	for _, w := range r.Windows {
		dto.Windows = append(dto.Windows, NewTimeWindow(w))
	}
	return dto
}

// NewSurgeConfig converts an engine surge config to its API representation.
func NewSurgeConfig(cfg *pricing.SurgeConfig) SurgeConfig {
	return SurgeConfig{
		ID:                    cfg.ID,
		SubLocationID:         cfg.SubLocationID,
		Priority:              cfg.Priority,
		CurrentDemand:         cfg.CurrentDemand,
		CurrentSupply:         cfg.CurrentSupply,
		HistoricalAvgPressure: cfg.HistoricalAvgPressure,
		Alpha:                 cfg.Alpha,
		MinMultiplier:         cfg.MinMultiplier,
		MaxMultiplier:         cfg.MaxMultiplier,
		IsActive:              cfg.IsActive,
		UpdatedAt:             Timestamp(cfg.UpdatedAt),
	}
}
