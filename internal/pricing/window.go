package pricing

import (
	"strconv"
	"strings"
	"time"
)

// minutesPerDay is the wrap bound for absolute time-of-day windows.
const minutesPerDay = 24 * 60

// MatchRule scans a rule's windows in declaration order and returns the price
// of the first matching window for the given hour. The caller is expected to
// have checked the rule's effective range already.
//
// Windows within a rule must not overlap; if they do the first declared match
// wins and the rest are never consulted. Malformed windows (missing bounds
// for their type) are treated as never-matching and skipped, so one bad
// window does not disable the rest of the rule.
func MatchRule(rule *PricingRule, hour time.Time, loc *time.Location, isEventBooking bool) (float64, bool) {
	if loc == nil {
		loc = time.UTC
	}

	for i := range rule.Windows {
		w := &rule.Windows[i]

		var matched bool
		switch w.Type {
		case WindowAbsoluteTime:
			matched = matchAbsolute(w, hour, loc)
		case WindowDurationBased:
			matched = matchDuration(w, hour, rule.EffectiveFrom)
		default:
			continue
		}
		if !matched {
			continue
		}

		// Grace-period exception: a zero-priced event-level window is a free
		// allowance for event-context bookings only. For any other booking
		// the window is skipped so a lower-priority paid layer can apply.
		if w.PricePerHour == 0 && rule.Level == LevelEvent && !isEventBooking {
			continue
		}

		return w.PricePerHour, true
	}

	return 0, false
}

// matchAbsolute checks a local time-of-day window, honoring the optional
// day-of-week filter and overnight wraparound (end before start).
func matchAbsolute(w *TimeWindow, hour time.Time, loc *time.Location) bool {
	start, ok := parseClock(w.StartTime)
	if !ok {
		return false
	}
	end, ok := parseClock(w.EndTime)
	if !ok {
		return false
	}

	local := hour.In(loc)

	if len(w.DaysOfWeek) > 0 {
		day := int(local.Weekday())
		found := false
		for _, d := range w.DaysOfWeek {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	t := local.Hour()*60 + local.Minute()

	if end < start {
		// Overnight window, e.g. 22:00-02:00.
		return t >= start || t < end
	}
	return t >= start && t < end
}

// matchDuration checks a minutes-since-anchor window.
func matchDuration(w *TimeWindow, hour time.Time, anchor time.Time) bool {
	if w.StartMinute == nil || w.EndMinute == nil {
		return false
	}

	elapsed := int(hour.Sub(anchor) / time.Minute)
	if elapsed < 0 {
		return false
	}
	return elapsed >= *w.StartMinute && elapsed < *w.EndMinute
}

// parseClock parses a local "HH:MM" string into minutes past midnight.
// Single-digit hours are accepted ("9:00").
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	v := h*60 + m
	if v >= minutesPerDay {
		return 0, false
	}
	return v, true
}
