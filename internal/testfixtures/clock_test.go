package testfixtures

import (
	"testing"
	"time"
)

func TestClock_DefaultsToReferenceTime(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected reference time, got %v", clock.Now())
	}
}

func TestClock_AdvanceMovesForward(t *testing.T) {
	t.Parallel()

	clock := NewClock(ReferenceTime())
	updated := clock.Advance(90 * time.Minute)

	want := ReferenceTime().Add(90 * time.Minute)
	if !updated.Equal(want) {
		t.Fatalf("expected %v, got %v", want, updated)
	}
	if !clock.Now().Equal(want) {
		t.Fatalf("expected clock to keep advanced time, got %v", clock.Now())
	}
}

func TestClock_SetOverrides(t *testing.T) {
	t.Parallel()

	clock := NewClock(ReferenceTime())
	target := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(target)
	if !clock.Now().Equal(target) {
		t.Fatalf("expected %v, got %v", target, clock.Now())
	}
}
