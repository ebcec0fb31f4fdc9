package pricing

import (
	"sort"
	"time"
)

// Resolve runs the waterfall over every slot in [RangeStart, RangeEnd) and
// returns the per-slot breakdown plus totals. It is deterministic and
// side-effect free: the same rule set and query always produce the same
// slots, which is what makes results safe to cache or retry at the service
// boundary.
//
// Per-layer and per-window problems are contained to the layer they occur
// in; only an invalid range is a hard failure. An hour no layer prices is a
// valid outcome, reported with a nil winning price.
func Resolve(rs RuleSet, q Query) (*Result, error) {
	if !q.RangeEnd.After(q.RangeStart) {
		return nil, ErrInvalidRange
	}

	gran := q.Granularity
	if gran <= 0 {
		gran = time.Hour
	}

	layers := Normalize(rs, q)

	var enabled map[string]bool
	if q.EnabledLayerIDs != nil {
		enabled = make(map[string]bool, len(q.EnabledLayerIDs))
		for _, id := range q.EnabledLayerIDs {
			enabled[id] = true
		}
	}

	// Slots step from RangeStart itself, so a non-aligned start never
	// produces a slot outside the queried range.
	result := &Result{}
	for hour := q.RangeStart; hour.Before(q.RangeEnd); hour = hour.Add(gran) {
		slot := resolveSlot(layers, rs, q, enabled, hour)
		if slot.WinningPrice != nil {
			result.TotalCost += *slot.WinningPrice
		} else {
			result.UnpricedHours++
		}
		result.Slots = append(result.Slots, slot)
	}

	return result, nil
}

// resolveSlot evaluates every layer for one hour and picks the winner.
func resolveSlot(layers []Layer, rs RuleSet, q Query, enabled map[string]bool, hour time.Time) TimeSlot {
	slot := TimeSlot{Hour: hour}

	results := make([]LayerResult, len(layers))
	for i := range layers {
		results[i] = evaluateLayer(&layers[i], q, hour)
		results[i].Enabled = enabled == nil || enabled[results[i].LayerID]
	}

	// The surge base is the highest-priority active, enabled, non-surge
	// price; a previously fetched baseline is the fallback. If neither
	// exists the surge layer simply cannot price the hour.
	base := nonSurgeBase(results)
	if base == nil {
		base = rs.BaselinePrice
	}
	slot.BasePrice = base

	for i := range results {
		r := &results[i]
		if r.Source != SourceSurge || !r.Active || r.Multiplier == nil {
			continue
		}
		if base == nil {
			continue
		}
		p := *base * *r.Multiplier
		r.Price = &p
		if slot.SurgeMultiplier == nil {
			slot.SurgeMultiplier = r.Multiplier
			slot.SurgePrice = r.Price
		}
	}

	winner := pickWinner(results)
	if winner != nil {
		slot.WinningLayerID = winner.LayerID
		slot.WinningPrice = winner.Price
	}

	slot.Layers = results
	return slot
}

// nonSurgeBase returns the price of the best active, enabled, non-surge
// candidate: highest priority first, highest price on a priority tie.
// Results follow layer order, which is already priority-sorted.
func nonSurgeBase(results []LayerResult) *float64 {
	var best *LayerResult
	for i := range results {
		r := &results[i]
		if r.Source == SourceSurge || !r.Active || !r.Enabled || r.Price == nil {
			continue
		}
		if best == nil {
			best = r
			continue
		}
		if r.Priority < best.Priority {
			break
		}
		if *r.Price > *best.Price {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	return best.Price
}

// pickWinner orders the active, enabled, priced candidates by priority
// descending with price descending as the tie-break (a higher surge
// multiplier beats a lower one at equal priority) and returns the head.
func pickWinner(results []LayerResult) *LayerResult {
	candidates := make([]*LayerResult, 0, len(results))
	for i := range results {
		r := &results[i]
		if r.Active && r.Enabled && r.Price != nil {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].Priority != candidates[b].Priority {
			return candidates[a].Priority > candidates[b].Priority
		}
		return *candidates[a].Price > *candidates[b].Price
	})

	return candidates[0]
}

// evaluateLayer computes one layer's activity, price and multiplier for one
// hour, independent of the enable filter.
func evaluateLayer(l *Layer, q Query, hour time.Time) LayerResult {
	r := LayerResult{
		LayerID:  l.ID,
		Source:   l.Source,
		Priority: l.Priority,
	}

	switch l.Source {
	case SourceLevelDefault:
		// Defaults have no window; they always price the hour.
		r.Active = true
		price := l.Default.HourlyRate
		r.Price = &price

	case SourceRatesheet:
		if !l.Rule.EffectiveAt(hour) {
			return r
		}
		price, ok := MatchRule(l.Rule, hour, q.Location, q.IsEventBooking)
		if !ok {
			return r
		}
		r.Active = true
		r.Price = &price

	case SourceSurge:
		if l.Rule != nil {
			// Materialized surge: a regular timed rule carrying a frozen
			// multiplier; the price is derived from the base at resolution.
			if !l.Rule.EffectiveAt(hour) {
				return r
			}
			if _, ok := MatchRule(l.Rule, hour, q.Location, q.IsEventBooking); !ok {
				return r
			}
			mult := 1.0
			if l.Rule.SurgeMultiplierSnapshot != nil {
				mult = *l.Rule.SurgeMultiplierSnapshot
			}
			r.Active = true
			r.Multiplier = &mult
			return r
		}

		// Virtual surge: the multiplier is computed live. An undefined
		// computation (zero supply, bad baseline) deactivates the layer
		// for the hour instead of aborting the resolution.
		mult, err := SurgeMultiplier(l.Surge)
		if err != nil {
			return r
		}
		r.Active = true
		r.Multiplier = &mult
	}

	return r
}
