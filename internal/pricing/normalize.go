package pricing

import "sort"

// Normalize converts the heterogeneous rule set into the uniform,
// priority-ordered layer list the resolver operates on. It is a pure
// transform: one layer per rule that passes the mode filter, one layer per
// non-zero level default, and at most one surge layer.
//
// A virtual surge layer is only added when no materialized surge rule for the
// same config survived the mode filter, so a frozen surge adjustment and its
// live counterpart are never both counted.
func Normalize(rs RuleSet, q Query) []Layer {
	layers := make([]Layer, 0, len(rs.Rules)+len(rs.Defaults)+1)

	materializedFor := make(map[string]bool)

	for _, rule := range rs.Rules {
		if !admitRule(rule, rs.Mode) {
			continue
		}

		source := SourceRatesheet
		if rule.IsMaterializedSurge() {
			source = SourceSurge
			materializedFor[*rule.SurgeConfigID] = true
		}

		layers = append(layers, Layer{
			ID:       rule.ID,
			Source:   source,
			Priority: rule.Priority,
			Level:    rule.Level,
			Rule:     rule,
		})
	}

	ranges := DefaultLevelRanges()
	for i := range rs.Defaults {
		d := &rs.Defaults[i]
		if d.HourlyRate == 0 {
			continue
		}
		layers = append(layers, Layer{
			ID:       "default:" + string(d.Level),
			Source:   SourceLevelDefault,
			Priority: ranges[d.Level].Midpoint(),
			Level:    d.Level,
			Default:  d,
		})
	}

	if q.SurgeEnabled && rs.Surge != nil && rs.Surge.IsActive && !materializedFor[rs.Surge.ID] {
		layers = append(layers, Layer{
			ID:       "surge:" + rs.Surge.ID,
			Source:   SourceSurge,
			Priority: rs.Surge.Priority,
			Level:    LevelSubLocation,
			Surge:    rs.Surge,
		})
	}

	// Priority descending; price ties are broken later, at resolution time.
	sort.SliceStable(layers, func(a, b int) bool {
		return layers[a].Priority > layers[b].Priority
	})

	return layers
}

// admitRule applies the mode filter: live pricing only sees approved rules,
// simulation additionally previews draft and pending ones. Inactive,
// rejected and archived rules never participate.
func admitRule(rule *PricingRule, mode Mode) bool {
	if !rule.IsActive {
		return false
	}
	switch mode {
	case ModeSimulation:
		switch rule.ApprovalStatus {
		case StatusDraft, StatusPendingApproval, StatusApproved:
			return true
		}
		return false
	default:
		return rule.ApprovalStatus == StatusApproved
	}
}
