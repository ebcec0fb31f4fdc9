package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rateboard/rateboard/internal/pricing"
)

func simulationLayers() []pricing.Layer {
	return []pricing.Layer{
		{ID: "rul_event", Source: pricing.SourceRatesheet, Priority: 900, Level: pricing.LevelEvent},
		{ID: "surge:srg_test", Source: pricing.SourceSurge, Priority: 950},
		{ID: "default:SUBLOCATION", Source: pricing.SourceLevelDefault, Priority: 300, Level: pricing.LevelSubLocation},
		{ID: "default:LOCATION", Source: pricing.SourceLevelDefault, Priority: 200, Level: pricing.LevelLocation},
	}
}

func TestSimulation_StartsFullyEnabled(t *testing.T) {
	sim := pricing.NewSimulation(simulationLayers())

	assert.Equal(t, []string{
		"default:LOCATION",
		"default:SUBLOCATION",
		"rul_event",
		"surge:srg_test",
	}, sim.EnabledIDs())
}

func TestSimulation_ToggleRoundTrip(t *testing.T) {
	sim := pricing.NewSimulation(simulationLayers())

	require.NoError(t, sim.Disable("rul_event"))
	assert.False(t, sim.IsEnabled("rul_event"))

	require.NoError(t, sim.Enable("rul_event"))
	assert.True(t, sim.IsEnabled("rul_event"))
}

func TestSimulation_UnknownLayer(t *testing.T) {
	sim := pricing.NewSimulation(simulationLayers())

	assert.ErrorIs(t, sim.Disable("rul_missing"), pricing.ErrLayerNotFound)
	assert.ErrorIs(t, sim.Enable("rul_missing"), pricing.ErrLayerNotFound)
}

func TestSimulation_LastDefaultLayerGuard(t *testing.T) {
	sim := pricing.NewSimulation(simulationLayers())

	// Two defaults enabled: the first one can go.
	require.NoError(t, sim.Disable("default:LOCATION"))

	// One left: disabling it must fail and leave the set unchanged.
	before := sim.EnabledIDs()
	err := sim.Disable("default:SUBLOCATION")
	assert.ErrorIs(t, err, pricing.ErrLastDefaultLayer)
	assert.Equal(t, before, sim.EnabledIDs())
	assert.True(t, sim.IsEnabled("default:SUBLOCATION"))

	// Non-default layers remain freely togglable.
	require.NoError(t, sim.Disable("rul_event"))
	require.NoError(t, sim.Disable("surge:srg_test"))
}

func TestSimulation_DisableAlreadyDisabledDefault(t *testing.T) {
	sim := pricing.NewSimulation(simulationLayers())

	require.NoError(t, sim.Disable("default:LOCATION"))

	// Repeating the toggle is a no-op even with only one default left;
	// the guard protects the remaining fallback, not idempotent calls.
	require.NoError(t, sim.Disable("default:LOCATION"))
	assert.False(t, sim.IsEnabled("default:LOCATION"))
	assert.True(t, sim.IsEnabled("default:SUBLOCATION"))

	assert.ErrorIs(t, sim.Disable("default:SUBLOCATION"), pricing.ErrLastDefaultLayer)
}

func TestSimulation_ReconcileDropsUnknownIDs(t *testing.T) {
	sim := pricing.NewSimulation(simulationLayers())

	// The saved scenario references a rule that has since been deleted.
	sim.Reconcile([]string{"default:SUBLOCATION", "rul_event", "rul_deleted"})

	assert.Equal(t, []string{"default:SUBLOCATION", "rul_event"}, sim.EnabledIDs())
	assert.False(t, sim.IsEnabled("surge:srg_test"))
	assert.False(t, sim.IsEnabled("default:LOCATION"))
}

func TestSameLayerSet(t *testing.T) {
	assert.True(t, pricing.SameLayerSet(
		[]string{"a", "b", "c"},
		[]string{"c", "a", "b"},
	))
	assert.True(t, pricing.SameLayerSet(nil, nil))
	assert.False(t, pricing.SameLayerSet([]string{"a", "b"}, []string{"a"}))
	assert.False(t, pricing.SameLayerSet([]string{"a", "b"}, []string{"a", "x"}))
}
