// Package demand supplies live demand/supply telemetry for sub-locations
// from an external feed.
package demand

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for demand feed operations.
var (
	// ErrProviderUnavailable indicates the feed is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("demand feed unavailable")
	// ErrSubLocationUnknown indicates the feed has no data for the sub-location.
	ErrSubLocationUnknown = errors.New("sub-location unknown to demand feed")
	// ErrRateLimitExceeded indicates the feed quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Provider defines the interface for demand telemetry providers.
type Provider interface {
	// GetSample retrieves the current demand/supply sample for a sub-location.
	GetSample(ctx context.Context, subLocationID string) (*Sample, error)
	// Name returns the provider identifier for logging and health tracking.
	Name() string
}

// Sample is one demand/supply observation for a sub-location.
type Sample struct {
	SubLocationID string

	// Demand is the current booking pressure (requests, holds, conversions).
	Demand float64
	// Supply is the remaining sellable capacity.
	Supply float64
	// HistoricalAvgPressure is the feed's rolling baseline; zero when the
	// feed has not accumulated one yet.
	HistoricalAvgPressure float64

	ObservedAt time.Time
	Provider   string
}

// Error provides detailed error information from the demand feed.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
