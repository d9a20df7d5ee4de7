package availability

import (
	"time"

	"github.com/example/calendar-federation/internal/interval"
)

// ConstraintKind identifies the scheduling rule a constraint expresses.
type ConstraintKind string

const (
	// ConstraintWorkingHours marks a soft preference window. It never blocks
	// candidates; it only influences scoring.
	ConstraintWorkingHours ConstraintKind = "working_hours"
	// ConstraintTrip marks a hard block for the whole active window.
	ConstraintTrip ConstraintKind = "trip"
)

// WorkingHours describes one recurring preference window, e.g. 09:00-17:00
// Monday through Friday in a named timezone. Minutes count from local
// midnight; EndMinute may be 1440 for end of day.
type WorkingHours struct {
	Weekdays    []time.Weekday
	StartMinute int
	EndMinute   int
	Timezone    string
}

// Constraint is one scheduling rule owned by a subject's store. working_hours
// is perpetual unless scoped via ActiveFrom/ActiveTo; trip requires both
// bounds.
type Constraint struct {
	ID           string
	Kind         ConstraintKind
	WorkingHours *WorkingHours
	ActiveFrom   *time.Time
	ActiveTo     *time.Time
}

// appliesWithin reports whether the constraint's active window intersects the
// requested window. Unscoped constraints always apply.
func (c Constraint) appliesWithin(window interval.Span) bool {
	if c.ActiveFrom != nil && !c.ActiveFrom.Before(window.End) {
		return false
	}
	if c.ActiveTo != nil && !c.ActiveTo.After(window.Start) {
		return false
	}
	return true
}

// location resolves the working-hours timezone, falling back to UTC when the
// name is empty or unknown.
func (w WorkingHours) location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ContainsSlot reports whether the slot lies entirely inside this preference
// window: the start day is a listed weekday and the slot does not leave the
// [StartMinute, EndMinute] range of that day.
func (w WorkingHours) ContainsSlot(slot interval.Span) bool {
	loc := w.location()
	start := slot.Start.In(loc)
	end := slot.End.In(loc)

	listed := false
	for _, day := range w.Weekdays {
		if start.Weekday() == day {
			listed = true
			break
		}
	}
	if !listed {
		return false
	}

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	startMin := int(start.Sub(dayStart) / time.Minute)
	endMin := int(end.Sub(dayStart) / time.Minute)

	return startMin >= w.StartMinute && endMin <= w.EndMinute
}
