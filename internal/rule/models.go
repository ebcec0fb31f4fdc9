// Package rule provides durable storage and lifecycle management for
// pricing rules, per-level default rates and surge configurations, and
// assembles the immutable rule-set snapshots the pricing engine resolves.
package rule

import (
	"errors"

	"github.com/rateboard/rateboard/internal/pricing"
)

// Repository errors.
var (
	ErrRuleNotFound        = errors.New("pricing rule not found")
	ErrDefaultNotFound     = errors.New("default rate not found")
	ErrSurgeConfigNotFound = errors.New("surge config not found")
)

// Lifecycle errors.
var (
	// ErrInvalidTransition is returned when an approval-status change does
	// not follow the workflow.
	ErrInvalidTransition = errors.New("invalid approval status transition")

	// ErrSurgeInactive is returned when materialization is requested for a
	// surge config that is disabled or cannot produce a multiplier.
	ErrSurgeInactive = errors.New("surge config is not active")
)

// allowedTransitions is the approval workflow. Archiving is allowed from
// every state and is terminal.
var allowedTransitions = map[pricing.ApprovalStatus][]pricing.ApprovalStatus{
	pricing.StatusDraft:           {pricing.StatusPendingApproval, pricing.StatusArchived},
	pricing.StatusPendingApproval: {pricing.StatusApproved, pricing.StatusRejected, pricing.StatusArchived},
	pricing.StatusApproved:        {pricing.StatusArchived},
	pricing.StatusRejected:        {pricing.StatusDraft, pricing.StatusArchived},
	pricing.StatusArchived:        {},
}

// TransitionAllowed reports whether the approval workflow permits moving a
// rule from one status to another.
func TransitionAllowed(from, to pricing.ApprovalStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ListOptions contains options for listing pricing rules.
type ListOptions struct {
	// EntityID restricts results to rules attached to one entity.
	// Empty means all entities.
	EntityID string

	// Level restricts results to one hierarchy level. Empty means all.
	Level pricing.Level

	// Statuses restricts results to a set of approval states. Empty means
	// all states except ARCHIVED.
	Statuses []pricing.ApprovalStatus

	Limit  int
	Cursor string
}

// ListResult contains the results of listing pricing rules.
type ListResult struct {
	Items      []*pricing.PricingRule
	NextCursor string
}

// Telemetry is one demand/supply observation for a sub-location, as
// delivered by the demand feed and applied to the matching surge config.
type Telemetry struct {
	SubLocationID         string
	CurrentDemand         float64
	CurrentSupply         float64
	HistoricalAvgPressure float64
}
