package availability

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/calendar-federation/internal/interval"
)

// MilestoneKind classifies a relationship milestone.
type MilestoneKind string

const (
	MilestoneBirthday    MilestoneKind = "birthday"
	MilestoneAnniversary MilestoneKind = "anniversary"
	MilestoneCustom      MilestoneKind = "custom"
)

// Milestone is a relationship milestone whose date is treated as an all-day
// hard block, identical in effect to a trip day.
type Milestone struct {
	ID             string
	RelationshipID string
	Kind           MilestoneKind
	Date           time.Time
	RecursAnnually bool
	Note           string
}

// Cap on yearly expansions so a malformed window cannot run away.
const maxMilestoneOccurrences = 400

// blockedDays expands the milestone into all-day spans intersecting the
// window. Annual milestones recur via an RFC 5545 yearly rule anchored at the
// original date.
func (m Milestone) blockedDays(window interval.Span) ([]interval.Span, error) {
	anchor := startOfDay(m.Date)

	if !m.RecursAnnually {
		day := interval.Span{Start: anchor, End: anchor.Add(24 * time.Hour)}
		if day.Overlaps(window) {
			return []interval.Span{day}, nil
		}
		return nil, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.YEARLY,
		Dtstart: anchor,
		Count:   maxMilestoneOccurrences,
	})
	if err != nil {
		return nil, fmt.Errorf("milestone %s: build yearly rule: %w", m.ID, err)
	}

	// Widen the query by a day on each side so timezone-shifted day
	// boundaries are not missed, then overlap-filter precisely.
	occurrences := rule.Between(window.Start.Add(-24*time.Hour), window.End.Add(24*time.Hour), true)

	var days []interval.Span
	for _, occ := range occurrences {
		day := interval.Span{Start: startOfDay(occ), End: startOfDay(occ).Add(24 * time.Hour)}
		if day.Overlaps(window) {
			days = append(days, day)
		}
	}
	return days, nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
