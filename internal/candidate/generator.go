// Package candidate enumerates and ranks meeting-time proposals for a
// scheduling window once availability has been resolved.
package candidate

import (
	"sort"
	"time"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/interval"
)

// DefaultStep is the slot grid used when no step is configured. The grid is
// anchored at the window start so identical inputs always yield identical
// slots.
const DefaultStep = 30 * time.Minute

// DefaultMaxCandidates caps the ranked list when the caller does not specify
// a limit.
const DefaultMaxCandidates = 10

// Score levels. Working hours are the only soft signal; all scores are
// non-negative so callers can sort without special cases.
const (
	scoreWithinWorkingHours  = 100.0
	scoreNoPreference        = 50.0
	scoreOutsideWorkingHours = 10.0
)

const (
	explanationWithin  = "within working hours for every required subject"
	explanationNeutral = "free for every required subject; no working-hours preference declared"
	explanationOutside = "free for every required subject but outside working hours"
)

// Slot is one proposed meeting time with its rank score. Slots are immutable
// once generated.
type Slot struct {
	Start       time.Time
	End         time.Time
	Score       float64
	Explanation string
}

// Generator enumerates duration-sized slots on a deterministic grid.
type Generator struct {
	Step time.Duration
}

// Generate walks the window on the grid, drops every slot overlapping any
// subject's hard blocks, scores the survivors against the working-hours
// masks, and returns them sorted by score descending with earliest-start
// tie-break, truncated to max. An empty result is a valid outcome, not an
// error.
func (g Generator) Generate(window interval.Span, duration time.Duration, subjects map[string]availability.SubjectAvailability, max int) []Slot {
	step := g.Step
	if step <= 0 {
		step = DefaultStep
	}
	if max <= 0 {
		max = DefaultMaxCandidates
	}
	if duration <= 0 || !window.IsValid() {
		return nil
	}

	var slots []Slot
	for start := window.Start; !start.Add(duration).After(window.End); start = start.Add(step) {
		span := interval.Span{Start: start, End: start.Add(duration)}

		blocked := false
		for _, avail := range subjects {
			if interval.OverlapsAny(span, avail.HardBlocks) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		score, explanation := scoreSlot(span, subjects)
		slots = append(slots, Slot{
			Start:       span.Start,
			End:         span.End,
			Score:       score,
			Explanation: explanation,
		})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score == slots[j].Score {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].Score > slots[j].Score
	})

	if len(slots) > max {
		slots = slots[:max]
	}
	return slots
}

// scoreSlot ranks a free slot. A slot scores high only when every subject
// that declared working hours contains it; subjects without a preference
// never penalize.
func scoreSlot(span interval.Span, subjects map[string]availability.SubjectAvailability) (float64, string) {
	anyPreference := false
	for _, avail := range subjects {
		if !avail.HasPreference() {
			continue
		}
		anyPreference = true
		if !withinAny(span, avail.Preferred) {
			return scoreOutsideWorkingHours, explanationOutside
		}
	}
	if !anyPreference {
		return scoreNoPreference, explanationNeutral
	}
	return scoreWithinWorkingHours, explanationWithin
}

func withinAny(span interval.Span, masks []availability.WorkingHours) bool {
	for _, mask := range masks {
		if mask.ContainsSlot(span) {
			return true
		}
	}
	return false
}
