package pricing

import "sort"

// Simulation tracks which layers are enabled during a what-if session.
//
// Every discovered layer starts enabled. Ratesheet and surge layers may
// always be toggled off; a level-default layer may only be disabled while at
// least one other level-default layer remains enabled, so an experiment can
// never leave an hour silently unpriced for lack of any fallback. The guard
// is a precondition on the toggle, not on resolution itself.
type Simulation struct {
	layers  []Layer
	enabled map[string]bool
}

// NewSimulation starts a simulation over the given normalized layers with
// every layer enabled.
func NewSimulation(layers []Layer) *Simulation {
	enabled := make(map[string]bool, len(layers))
	for i := range layers {
		enabled[layers[i].ID] = true
	}
	return &Simulation{layers: layers, enabled: enabled}
}

// Layers returns the normalized layers the simulation was built from.
func (s *Simulation) Layers() []Layer {
	return s.layers
}

// IsEnabled reports whether the layer participates in winner selection.
func (s *Simulation) IsEnabled(id string) bool {
	return s.enabled[id]
}

// Enable turns a layer back on.
func (s *Simulation) Enable(id string) error {
	l := s.find(id)
	if l == nil {
		return ErrLayerNotFound
	}
	s.enabled[id] = true
	return nil
}

// Disable turns a layer off. Disabling the last enabled level-default layer
// is rejected and leaves the enabled set unchanged.
func (s *Simulation) Disable(id string) error {
	l := s.find(id)
	if l == nil {
		return ErrLayerNotFound
	}

	// Disabling an already-disabled default changes nothing, so the
	// last-fallback guard only applies while the target still counts.
	if l.Source == SourceLevelDefault && s.enabled[id] && s.enabledDefaults() <= 1 {
		return ErrLastDefaultLayer
	}

	s.enabled[id] = false
	return nil
}

// EnabledIDs returns the enabled layer ids in a stable sorted order.
func (s *Simulation) EnabledIDs() []string {
	ids := make([]string, 0, len(s.enabled))
	for id, on := range s.enabled {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Reconcile restores a saved enabled set against the currently discovered
// layers. Saved ids with no matching layer are silently dropped: the rules
// behind them may have expired or been deleted since the scenario was saved.
// Layers absent from the saved set are disabled.
func (s *Simulation) Reconcile(savedIDs []string) {
	saved := make(map[string]bool, len(savedIDs))
	for _, id := range savedIDs {
		saved[id] = true
	}
	for i := range s.layers {
		id := s.layers[i].ID
		s.enabled[id] = saved[id]
	}
}

func (s *Simulation) find(id string) *Layer {
	for i := range s.layers {
		if s.layers[i].ID == id {
			return &s.layers[i]
		}
	}
	return nil
}

func (s *Simulation) enabledDefaults() int {
	n := 0
	for i := range s.layers {
		if s.layers[i].Source == SourceLevelDefault && s.enabled[s.layers[i].ID] {
			n++
		}
	}
	return n
}

// SameLayerSet reports exact set equality of two layer-id lists, used by the
// unsaved-changes indicator when comparing current against saved state.
func SameLayerSet(a, b []string) bool {
	as, bs := setOf(a), setOf(b)
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if !bs[id] {
			return false
		}
	}
	return true
}

func setOf(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
