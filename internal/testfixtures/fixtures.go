// Package testfixtures provides deterministic clocks, identifier generators
// and store harnesses shared by tests across the module.
package testfixtures

import (
	"time"

	"github.com/example/calendar-federation/internal/interval"
)

// ReferenceTime is the instant tests treat as "now": a Monday morning before
// the reference scheduling window opens.
func ReferenceTime() time.Time {
	return time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
}

// ReferenceWindow is the standard business-day scheduling window used by
// fixtures, 09:00 to 17:00 UTC on the reference day.
func ReferenceWindow() interval.Span {
	return interval.Span{
		Start: time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 2, 17, 0, 0, 0, time.UTC),
	}
}
