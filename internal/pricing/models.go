// Package pricing implements the priority-waterfall pricing resolution engine.
//
// The engine is a pure computation: given an immutable snapshot of pricing
// rules, per-level default rates and an optional surge configuration, it
// decides for every hour of a queried range which single pricing layer wins
// and what price it yields. All durable state (rules, scenarios) lives in
// the rule and scenario packages; nothing here performs I/O.
package pricing

import (
	"errors"
	"time"
)

// Engine errors.
var (
	// ErrInvalidRange is returned when a query's rangeEnd is not after rangeStart.
	ErrInvalidRange = errors.New("range end must be after range start")

	// ErrZeroSupply is returned when a surge config has no supply to price against.
	ErrZeroSupply = errors.New("surge supply is zero")

	// ErrInvalidBaselinePressure is returned when the historical average pressure
	// is zero or negative, making the surge normalization undefined.
	ErrInvalidBaselinePressure = errors.New("historical average pressure must be positive")

	// ErrLastDefaultLayer is returned when disabling a layer would leave the
	// simulation without any enabled level-default fallback.
	ErrLastDefaultLayer = errors.New("cannot disable the last enabled level-default layer")

	// ErrLayerNotFound is returned when toggling a layer id that is not part
	// of the simulation.
	ErrLayerNotFound = errors.New("layer not found")
)

// Level identifies where in the organizational hierarchy a rule is attached.
type Level string

const (
	LevelCustomer    Level = "CUSTOMER"
	LevelLocation    Level = "LOCATION"
	LevelSubLocation Level = "SUBLOCATION"
	LevelEvent       Level = "EVENT"
)

// LevelRange is the configured priority band for one hierarchy level.
// A rule's priority is expected to fall inside its level's band; the band
// midpoint is used as the priority of that level's default rate.
type LevelRange struct {
	Min int
	Max int
}

// Midpoint returns the priority assigned to the level's default rate.
func (r LevelRange) Midpoint() int {
	return (r.Min + r.Max) / 2
}

// DefaultLevelRanges returns the standard priority bands per level.
// Higher levels in the hierarchy sit lower in the band so that more specific
// rules win: event rules always outrank sub-location defaults.
func DefaultLevelRanges() map[Level]LevelRange {
	return map[Level]LevelRange{
		LevelCustomer:    {Min: 0, Max: 200},
		LevelLocation:    {Min: 100, Max: 300},
		LevelSubLocation: {Min: 200, Max: 400},
		LevelEvent:       {Min: 700, Max: 1100},
	}
}

// RuleKind determines how a rule's windows are interpreted.
type RuleKind string

const (
	KindTimingBased   RuleKind = "TIMING_BASED"
	KindDurationBased RuleKind = "DURATION_BASED"
)

// ConflictResolution is the declared tie-handling strategy of a rule.
//
// Only PRIORITY (then price descending) is implemented by the resolver; the
// HIGHEST_PRICE and LOWEST_PRICE strategies are accepted on the model for
// round-trip fidelity with stored rules but are not dispatched on.
type ConflictResolution string

const (
	ResolvePriority     ConflictResolution = "PRIORITY"
	ResolveHighestPrice ConflictResolution = "HIGHEST_PRICE"
	ResolveLowestPrice  ConflictResolution = "LOWEST_PRICE"
)

// ApprovalStatus is the workflow state of a pricing rule.
type ApprovalStatus string

const (
	StatusDraft           ApprovalStatus = "DRAFT"
	StatusPendingApproval ApprovalStatus = "PENDING_APPROVAL"
	StatusApproved        ApprovalStatus = "APPROVED"
	StatusRejected        ApprovalStatus = "REJECTED"
	StatusArchived        ApprovalStatus = "ARCHIVED"
)

// WindowType distinguishes the two window interpretations.
type WindowType string

const (
	WindowAbsoluteTime  WindowType = "ABSOLUTE_TIME"
	WindowDurationBased WindowType = "DURATION_BASED"
)

// TimeWindow is one priced applicability window of a rule.
//
// Absolute windows use local HH:MM bounds and an optional day-of-week filter;
// duration windows use minute offsets from the rule's effectiveFrom anchor.
// Windows within a rule must not overlap; the matcher takes the first match
// in list order and overlapping declarations are undefined behavior.
type TimeWindow struct {
	Type WindowType

	// Absolute window bounds as local "HH:MM". An end before the start
	// denotes an overnight window that wraps past midnight.
	StartTime string
	EndTime   string

	// DaysOfWeek restricts absolute windows to a subset of weekdays
	// (0=Sunday .. 6=Saturday). Empty means every day.
	DaysOfWeek []int

	// Duration window bounds in minutes since the rule's effectiveFrom.
	StartMinute *int
	EndMinute   *int

	// PricePerHour is the non-negative hourly price this window yields.
	PricePerHour float64
}

// PricingRule is a priced policy attached at one hierarchy level.
type PricingRule struct {
	ID       string
	Name     string
	EntityID string

	Level              Level
	Priority           int
	Kind               RuleKind
	ConflictResolution ConflictResolution

	EffectiveFrom time.Time
	EffectiveTo   *time.Time

	IsActive       bool
	ApprovalStatus ApprovalStatus

	Windows []TimeWindow

	// SurgeConfigID is set when this rule is a materialized surge rule:
	// a surge adjustment frozen into a concrete approved rule carrying
	// a snapshot of the multiplier taken at materialization time.
	SurgeConfigID           *string
	SurgeMultiplierSnapshot *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveAt reports whether the rule's effective window covers the instant.
func (r *PricingRule) EffectiveAt(at time.Time) bool {
	if at.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && !r.EffectiveTo.After(at) {
		return false
	}
	return true
}

// IsMaterializedSurge reports whether the rule is a frozen surge adjustment.
func (r *PricingRule) IsMaterializedSurge() bool {
	return r.SurgeConfigID != nil
}

// DefaultRate is a per-level fallback price with no time window.
// It is always applicable and its priority is the midpoint of the level's band.
type DefaultRate struct {
	Level      Level
	HourlyRate float64
}

// SurgeConfig holds the demand/supply parameters that drive a live,
// unmaterialized surge multiplier for one sub-location.
type SurgeConfig struct {
	ID            string
	SubLocationID string
	Priority      int

	CurrentDemand         float64
	CurrentSupply         float64
	HistoricalAvgPressure float64

	Alpha         float64
	MinMultiplier float64
	MaxMultiplier float64

	IsActive  bool
	UpdatedAt time.Time
}

// Mode selects which approval states are admitted into resolution.
type Mode string

const (
	// ModeLive restricts candidates to approved rules.
	ModeLive Mode = "LIVE"

	// ModeSimulation additionally admits draft and pending rules so that
	// unapproved pricing can be previewed.
	ModeSimulation Mode = "SIMULATION"
)

// RuleSet is the immutable input snapshot for one resolution pass,
// as assembled by the rule repository.
type RuleSet struct {
	Rules    []*PricingRule
	Defaults []DefaultRate
	Surge    *SurgeConfig
	Mode     Mode

	// BaselinePrice is a previously observed price used as the surge base
	// when no non-surge layer is active for an hour. Optional.
	BaselinePrice *float64
}

// Query describes one resolution request.
type Query struct {
	EntityID   string
	RangeStart time.Time
	RangeEnd   time.Time

	// Granularity is the slot width; defaults to one hour.
	Granularity time.Duration

	// IsEventBooking controls the grace-period exception: zero-priced
	// event-level windows only match event-context bookings.
	IsEventBooking bool

	// EnabledLayerIDs filters which layers may win (simulation mode).
	// Nil means every discovered layer is enabled.
	EnabledLayerIDs []string

	// SurgeEnabled adds the virtual surge layer when an active SurgeConfig
	// is present in the RuleSet.
	SurgeEnabled bool

	// Location is the entity's local timezone used to interpret absolute
	// windows. Defaults to UTC.
	Location *time.Location
}

// LayerSource tags the origin of a normalized pricing layer.
type LayerSource string

const (
	SourceRatesheet    LayerSource = "RATESHEET"
	SourceSurge        LayerSource = "SURGE"
	SourceLevelDefault LayerSource = "LEVEL_DEFAULT"
)

// Layer is the normalized, priority-ranked pricing input evaluated per hour.
// Exactly one of Rule, Default or Surge is set, selected by Source.
type Layer struct {
	ID       string
	Source   LayerSource
	Priority int
	Level    Level

	Rule    *PricingRule
	Default *DefaultRate
	Surge   *SurgeConfig
}

// LayerResult is the per-hour evaluation outcome of one layer.
type LayerResult struct {
	LayerID  string
	Source   LayerSource
	Priority int

	// Active reports whether the layer matched the hour, independent of
	// whether it was enabled for winner selection.
	Active bool

	// Price is the resolved hourly price; nil when inactive, or for a surge
	// layer that had no base price to scale.
	Price *float64

	// Multiplier is set for surge layers (live or snapshot).
	Multiplier *float64

	// Enabled reports whether the layer was admitted to winner selection.
	Enabled bool
}

// TimeSlot is the computed output for one hour of the query range.
// Slots are never persisted; they are recomputed on every query.
type TimeSlot struct {
	Hour   time.Time
	Layers []LayerResult

	// WinningLayerID is empty when no active, enabled layer priced the hour.
	WinningLayerID string

	// WinningPrice is nil for an unpriced hour, which is a valid terminal
	// state rather than an error.
	WinningPrice *float64

	BasePrice       *float64
	SurgePrice      *float64
	SurgeMultiplier *float64
}

// Result is the full output of one resolution pass.
type Result struct {
	Slots []TimeSlot

	// TotalCost sums winning prices; unpriced hours contribute zero and are
	// counted separately.
	TotalCost     float64
	UnpricedHours int
}
