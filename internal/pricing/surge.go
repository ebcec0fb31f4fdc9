package pricing

import "math"

// SurgeMultiplier computes the bounded demand/supply multiplier for a surge
// configuration:
//
//	pressure   = currentDemand / currentSupply
//	normalized = pressure / historicalAvgPressure
//	raw        = 1 + alpha * ln(normalized)
//
// The raw factor is clamped to [MinMultiplier, MaxMultiplier]. A zero supply
// or non-positive historical pressure makes the formula undefined; callers
// must treat surge as inactive for that hour rather than propagate NaN.
func SurgeMultiplier(cfg *SurgeConfig) (float64, error) {
	if cfg.CurrentSupply == 0 {
		return 0, ErrZeroSupply
	}
	if cfg.HistoricalAvgPressure <= 0 {
		return 0, ErrInvalidBaselinePressure
	}

	pressure := cfg.CurrentDemand / cfg.CurrentSupply
	normalized := pressure / cfg.HistoricalAvgPressure
	raw := 1 + cfg.Alpha*math.Log(normalized)

	return clamp(raw, cfg.MinMultiplier, cfg.MaxMultiplier), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
