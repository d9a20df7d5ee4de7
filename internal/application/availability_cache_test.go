package application

import (
	"context"
	"testing"
	"time"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/interval"
)

type countingResolver struct {
	calls  int
	result map[string]availability.SubjectAvailability
}

func (c *countingResolver) Resolve(ctx context.Context, subjectIDs []string, window interval.Span) (map[string]availability.SubjectAvailability, error) {
	c.calls++
	return cloneAvailability(c.result), nil
}

func TestCachingResolver_ReusesIdenticalQueries(t *testing.T) {
	t.Parallel()

	start, end := morningWindow()
	window := interval.Span{Start: start, End: end}
	inner := &countingResolver{result: map[string]availability.SubjectAvailability{
		"acct_a": {HardBlocks: []interval.Span{{Start: start, End: start.Add(time.Hour)}}},
	}}
	resolver := NewCachingResolver(inner, 16, time.Minute)

	first, err := resolver.Resolve(context.Background(), []string{"acct_a"}, window)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), []string{"acct_a"}, window); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single inner resolution, got %d", inner.calls)
	}

	// Subject order must not affect the cache key.
	if _, err := resolver.Resolve(context.Background(), []string{"acct_a"}, window); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected cache hit, got %d inner calls", inner.calls)
	}

	// Mutating a returned value must not poison later reads.
	first["acct_a"].HardBlocks[0] = interval.Span{}
	again, err := resolver.Resolve(context.Background(), []string{"acct_a"}, window)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !again["acct_a"].HardBlocks[0].Start.Equal(start) {
		t.Fatal("cached availability was mutated through a returned value")
	}
}

func TestCachingResolver_InvalidateForcesReResolution(t *testing.T) {
	t.Parallel()

	start, end := morningWindow()
	window := interval.Span{Start: start, End: end}
	inner := &countingResolver{result: map[string]availability.SubjectAvailability{}}
	resolver := NewCachingResolver(inner, 16, time.Minute)

	if _, err := resolver.Resolve(context.Background(), []string{"acct_a"}, window); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	resolver.Invalidate()
	if _, err := resolver.Resolve(context.Background(), []string{"acct_a"}, window); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected re-resolution after invalidate, got %d calls", inner.calls)
	}
}

func TestCachingResolver_DistinctWindowsDoNotCollide(t *testing.T) {
	t.Parallel()

	start, end := morningWindow()
	inner := &countingResolver{result: map[string]availability.SubjectAvailability{}}
	resolver := NewCachingResolver(inner, 16, time.Minute)

	if _, err := resolver.Resolve(context.Background(), []string{"acct_a"}, interval.Span{Start: start, End: end}); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), []string{"acct_a"}, interval.Span{Start: start, End: end.Add(time.Hour)}); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected two inner resolutions, got %d", inner.calls)
	}
}
