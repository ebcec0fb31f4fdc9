package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rateboard/rateboard/internal/pricing"
)

func surgeConfig() *pricing.SurgeConfig {
	return &pricing.SurgeConfig{
		ID:                    "srg_test",
		SubLocationID:         "sub_1",
		Priority:              950,
		CurrentDemand:         120,
		CurrentSupply:         60,
		HistoricalAvgPressure: 1.0,
		Alpha:                 0.5,
		MinMultiplier:         1.0,
		MaxMultiplier:         3.0,
		IsActive:              true,
	}
}

func TestSurgeMultiplier(t *testing.T) {
	// pressure=2.0, normalized=2.0, raw=1+0.5*ln(2)≈1.3466
	mult, err := pricing.SurgeMultiplier(surgeConfig())
	require.NoError(t, err)
	assert.InDelta(t, 1.3466, mult, 0.0001)
}

func TestSurgeMultiplier_ClampedToMax(t *testing.T) {
	cfg := surgeConfig()
	cfg.Alpha = 5.0

	mult, err := pricing.SurgeMultiplier(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3.0, mult)
}

func TestSurgeMultiplier_ClampedToMin(t *testing.T) {
	cfg := surgeConfig()
	cfg.CurrentDemand = 10 // pressure well below baseline

	mult, err := pricing.SurgeMultiplier(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, mult)
}

func TestSurgeMultiplier_ZeroSupply(t *testing.T) {
	cfg := surgeConfig()
	cfg.CurrentSupply = 0

	_, err := pricing.SurgeMultiplier(cfg)
	assert.ErrorIs(t, err, pricing.ErrZeroSupply)
}

func TestSurgeMultiplier_NonPositiveBaseline(t *testing.T) {
	cfg := surgeConfig()
	cfg.HistoricalAvgPressure = 0

	_, err := pricing.SurgeMultiplier(cfg)
	assert.ErrorIs(t, err, pricing.ErrInvalidBaselinePressure)

	cfg.HistoricalAvgPressure = -1
	_, err = pricing.SurgeMultiplier(cfg)
	assert.ErrorIs(t, err, pricing.ErrInvalidBaselinePressure)
}
