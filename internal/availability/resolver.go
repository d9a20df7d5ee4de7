package availability

import (
	"context"
	"fmt"

	"github.com/example/calendar-federation/internal/interval"
)

// BusySource reads confirmed/tentative busy intervals for a subject from the
// canonical event store. Implementations must return bare intervals only;
// event titles and descriptions never cross this boundary.
type BusySource interface {
	BusyIntervals(ctx context.Context, subjectID string, window interval.Span) ([]interval.Span, error)
}

// ConstraintSource lists the active scheduling constraints for a subject.
type ConstraintSource interface {
	ListConstraints(ctx context.Context, subjectID string) ([]Constraint, error)
}

// MilestoneSource lists relationship milestones visible to a subject.
type MilestoneSource interface {
	ListMilestones(ctx context.Context, subjectID string) ([]Milestone, error)
}

// SubjectAvailability is the resolved view of one subject over a window:
// a merged hard-block set, and separately the working-hours preference mask
// used only for scoring. Keeping the two sets apart is deliberate; trips,
// milestones and busy events categorically exclude candidates while working
// hours never do.
type SubjectAvailability struct {
	HardBlocks []interval.Span
	Preferred  []WorkingHours
}

// HasPreference reports whether the subject declared any working-hours mask.
func (a SubjectAvailability) HasPreference() bool {
	return len(a.Preferred) > 0
}

// Resolver merges busy intervals and constraints into per-subject blocked
// interval sets. A missing or failing source fails the whole resolution;
// partial availability must never be interpreted as free time.
type Resolver struct {
	busy        BusySource
	constraints ConstraintSource
	milestones  MilestoneSource
}

// NewResolver wires the three read-only sources for one store.
func NewResolver(busy BusySource, constraints ConstraintSource, milestones MilestoneSource) *Resolver {
	return &Resolver{busy: busy, constraints: constraints, milestones: milestones}
}

// Resolve computes availability for every subject over the window. The result
// maps subject ID to its resolved availability; any source error aborts the
// whole call.
func (r *Resolver) Resolve(ctx context.Context, subjectIDs []string, window interval.Span) (map[string]SubjectAvailability, error) {
	if r == nil {
		return nil, fmt.Errorf("availability: resolver is nil")
	}
	if !window.IsValid() {
		return nil, fmt.Errorf("availability: window start must be before end")
	}

	resolved := make(map[string]SubjectAvailability, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		avail, err := r.ResolveSubject(ctx, subjectID, window)
		if err != nil {
			return nil, err
		}
		resolved[subjectID] = avail
	}
	return resolved, nil
}

// ResolveSubject computes availability for a single subject.
func (r *Resolver) ResolveSubject(ctx context.Context, subjectID string, window interval.Span) (SubjectAvailability, error) {
	if r == nil || r.busy == nil || r.constraints == nil {
		return SubjectAvailability{}, fmt.Errorf("availability: resolver sources not configured")
	}

	busy, err := r.busy.BusyIntervals(ctx, subjectID, window)
	if err != nil {
		return SubjectAvailability{}, fmt.Errorf("availability: busy intervals for %s: %w", subjectID, err)
	}

	constraints, err := r.constraints.ListConstraints(ctx, subjectID)
	if err != nil {
		return SubjectAvailability{}, fmt.Errorf("availability: constraints for %s: %w", subjectID, err)
	}

	blocks := make([]interval.Span, 0, len(busy))
	blocks = append(blocks, busy...)

	var preferred []WorkingHours
	for _, constraint := range constraints {
		if !constraint.appliesWithin(window) {
			continue
		}
		switch constraint.Kind {
		case ConstraintWorkingHours:
			if constraint.WorkingHours == nil {
				return SubjectAvailability{}, fmt.Errorf("availability: constraint %s: working_hours config missing", constraint.ID)
			}
			preferred = append(preferred, *constraint.WorkingHours)
		case ConstraintTrip:
			if constraint.ActiveFrom == nil || constraint.ActiveTo == nil {
				return SubjectAvailability{}, fmt.Errorf("availability: constraint %s: trip requires both bounds", constraint.ID)
			}
			trip := interval.Span{Start: *constraint.ActiveFrom, End: *constraint.ActiveTo}
			if clipped, ok := trip.Clip(window); ok {
				blocks = append(blocks, clipped)
			}
		default:
			// Unknown kinds are treated as inert rather than blocking; the
			// constraint store owns their semantics.
		}
	}

	if r.milestones != nil {
		milestones, err := r.milestones.ListMilestones(ctx, subjectID)
		if err != nil {
			return SubjectAvailability{}, fmt.Errorf("availability: milestones for %s: %w", subjectID, err)
		}
		for _, milestone := range milestones {
			days, err := milestone.blockedDays(window)
			if err != nil {
				return SubjectAvailability{}, err
			}
			blocks = append(blocks, days...)
		}
	}

	return SubjectAvailability{
		HardBlocks: interval.Merge(blocks),
		Preferred:  preferred,
	}, nil
}
