package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/calendar-federation/internal/interval"
)

type busySourceStub struct {
	intervals map[string][]interval.Span
	err       error
}

func (s *busySourceStub) BusyIntervals(ctx context.Context, subjectID string, window interval.Span) ([]interval.Span, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.intervals[subjectID], nil
}

type constraintSourceStub struct {
	constraints map[string][]Constraint
	err         error
}

func (s *constraintSourceStub) ListConstraints(ctx context.Context, subjectID string) ([]Constraint, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.constraints[subjectID], nil
}

type milestoneSourceStub struct {
	milestones map[string][]Milestone
	err        error
}

func (s *milestoneSourceStub) ListMilestones(ctx context.Context, subjectID string) ([]Milestone, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.milestones[subjectID], nil
}

func utc(t *testing.T, day, hour int) time.Time {
	t.Helper()
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func weekWindow(t *testing.T) interval.Span {
	t.Helper()
	// Monday 2026-03-09 through Saturday 2026-03-14.
	return interval.Span{Start: utc(t, 9, 0), End: utc(t, 14, 0)}
}

func TestResolver_BusyIntervalsBecomeHardBlocks(t *testing.T) {
	t.Parallel()

	busy := &busySourceStub{intervals: map[string][]interval.Span{
		"acc-1": {{Start: utc(t, 9, 10), End: utc(t, 9, 11)}},
	}}
	resolver := NewResolver(busy, &constraintSourceStub{}, &milestoneSourceStub{})

	resolved, err := resolver.Resolve(context.Background(), []string{"acc-1"}, weekWindow(t))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	avail := resolved["acc-1"]
	if len(avail.HardBlocks) != 1 {
		t.Fatalf("expected one hard block, got %v", avail.HardBlocks)
	}
	if !avail.HardBlocks[0].Start.Equal(utc(t, 9, 10)) {
		t.Fatalf("unexpected block start: %v", avail.HardBlocks[0])
	}
}

func TestResolver_TripBlocksAndWorkingHoursDoNot(t *testing.T) {
	t.Parallel()

	tripFrom := utc(t, 9, 0)
	tripTo := utc(t, 12, 0)
	constraints := &constraintSourceStub{constraints: map[string][]Constraint{
		"acc-1": {
			{
				ID:   "cst_wh",
				Kind: ConstraintWorkingHours,
				WorkingHours: &WorkingHours{
					Weekdays:    []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
					StartMinute: 9 * 60,
					EndMinute:   17 * 60,
					Timezone:    "UTC",
				},
			},
			{ID: "cst_trip", Kind: ConstraintTrip, ActiveFrom: &tripFrom, ActiveTo: &tripTo},
		},
	}}
	resolver := NewResolver(&busySourceStub{}, constraints, &milestoneSourceStub{})

	resolved, err := resolver.Resolve(context.Background(), []string{"acc-1"}, weekWindow(t))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	avail := resolved["acc-1"]
	if len(avail.HardBlocks) != 1 {
		t.Fatalf("expected trip to be the only hard block, got %v", avail.HardBlocks)
	}
	if !avail.HardBlocks[0].End.Equal(tripTo) {
		t.Fatalf("unexpected trip block: %v", avail.HardBlocks[0])
	}
	if !avail.HasPreference() {
		t.Fatal("expected working hours to be retained as a preference mask")
	}
}

func TestResolver_TripMissingBoundsFails(t *testing.T) {
	t.Parallel()

	from := utc(t, 9, 0)
	constraints := &constraintSourceStub{constraints: map[string][]Constraint{
		"acc-1": {{ID: "cst_trip", Kind: ConstraintTrip, ActiveFrom: &from}},
	}}
	resolver := NewResolver(&busySourceStub{}, constraints, &milestoneSourceStub{})

	_, err := resolver.Resolve(context.Background(), []string{"acc-1"}, weekWindow(t))
	if err == nil {
		t.Fatal("expected error for trip without both bounds")
	}
}

func TestResolver_AnnualMilestoneBlocksItsDay(t *testing.T) {
	t.Parallel()

	milestones := &milestoneSourceStub{milestones: map[string][]Milestone{
		"acc-1": {{
			ID:             "mls_1",
			Kind:           MilestoneBirthday,
			Date:           time.Date(1990, 3, 11, 0, 0, 0, 0, time.UTC),
			RecursAnnually: true,
		}},
	}}
	resolver := NewResolver(&busySourceStub{}, &constraintSourceStub{}, milestones)

	resolved, err := resolver.Resolve(context.Background(), []string{"acc-1"}, weekWindow(t))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	avail := resolved["acc-1"]
	if len(avail.HardBlocks) != 1 {
		t.Fatalf("expected the birthday to block exactly one day, got %v", avail.HardBlocks)
	}
	wantStart := utc(t, 11, 0)
	if !avail.HardBlocks[0].Start.Equal(wantStart) || avail.HardBlocks[0].Duration() != 24*time.Hour {
		t.Fatalf("expected all-day block on 2026-03-11, got %v", avail.HardBlocks[0])
	}
}

func TestResolver_NonRecurringMilestoneOutsideWindowIgnored(t *testing.T) {
	t.Parallel()

	milestones := &milestoneSourceStub{milestones: map[string][]Milestone{
		"acc-1": {{
			ID:   "mls_1",
			Kind: MilestoneCustom,
			Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		}},
	}}
	resolver := NewResolver(&busySourceStub{}, &constraintSourceStub{}, milestones)

	resolved, err := resolver.Resolve(context.Background(), []string{"acc-1"}, weekWindow(t))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(resolved["acc-1"].HardBlocks) != 0 {
		t.Fatalf("expected no blocks, got %v", resolved["acc-1"].HardBlocks)
	}
}

func TestResolver_SourceFailureAbortsResolution(t *testing.T) {
	t.Parallel()

	upstream := errors.New("store unreachable")
	resolver := NewResolver(&busySourceStub{err: upstream}, &constraintSourceStub{}, &milestoneSourceStub{})

	_, err := resolver.Resolve(context.Background(), []string{"acc-1"}, weekWindow(t))
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error to propagate, got %v", err)
	}
}

func TestWorkingHours_ContainsSlot(t *testing.T) {
	t.Parallel()

	wh := WorkingHours{
		Weekdays:    []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		Timezone:    "UTC",
	}

	inside := interval.Span{Start: utc(t, 9, 10), End: utc(t, 9, 11)}
	if !wh.ContainsSlot(inside) {
		t.Fatal("expected 10:00-11:00 Monday to fit 09:00-17:00 Mon-Fri")
	}

	early := interval.Span{Start: utc(t, 9, 8), End: utc(t, 9, 9)}
	if wh.ContainsSlot(early) {
		t.Fatal("expected 08:00-09:00 to fall outside working hours")
	}

	weekend := interval.Span{Start: utc(t, 14, 10), End: utc(t, 14, 11)}
	if wh.ContainsSlot(weekend) {
		t.Fatal("expected Saturday slot to fall outside Mon-Fri working hours")
	}
}
