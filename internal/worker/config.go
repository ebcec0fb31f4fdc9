// Package worker provides background job processing for RateBoard.
package worker

import (
	"sort"
	"time"
)

// RefreshTarget represents a group of sub-locations to refresh together,
// typically one venue or location.
type RefreshTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// SubLocationIDs are the sub-locations whose surge telemetry to refresh.
	SubLocationIDs []string

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the telemetry refresh job.
type RefreshConfig struct {
	// Targets are the sub-location groups to refresh. If empty, the job
	// discovers sub-locations from the stored surge configs at run time.
	Targets []RefreshTarget

	// Concurrency is the number of concurrent refresh operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each sub-location refresh.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// AllSubLocations returns all sub-location ids from all targets, ordered
// by target priority.
func (c RefreshConfig) AllSubLocations() []string {
	byPriority := make([]RefreshTarget, len(c.Targets))
	copy(byPriority, c.Targets)
	sort.SliceStable(byPriority, func(a, b int) bool {
		return byPriority[a].Priority < byPriority[b].Priority
	})

	var ids []string
	seen := make(map[string]bool)
	for _, target := range byPriority {
		for _, id := range target.SubLocationIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// TotalSubLocations returns the number of distinct sub-locations to refresh.
func (c RefreshConfig) TotalSubLocations() int {
	return len(c.AllSubLocations())
}
