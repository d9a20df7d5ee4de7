package interval

import (
	"testing"
	"time"
)

func spanAt(t *testing.T, startHour, endHour int) Span {
	t.Helper()
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	return Span{Start: day.Add(time.Duration(startHour) * time.Hour), End: day.Add(time.Duration(endHour) * time.Hour)}
}

func TestSpan_Overlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Span
		want bool
	}{
		{"disjoint", spanAt(t, 9, 10), spanAt(t, 11, 12), false},
		{"adjacent", spanAt(t, 9, 10), spanAt(t, 10, 11), false},
		{"partial", spanAt(t, 9, 11), spanAt(t, 10, 12), true},
		{"contained", spanAt(t, 9, 17), spanAt(t, 10, 11), true},
		{"identical", spanAt(t, 9, 10), spanAt(t, 9, 10), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %v, %v", tc.a, tc.b)
			}
		})
	}
}

func TestMerge_CoalescesOverlappingAndAdjacent(t *testing.T) {
	t.Parallel()

	merged := Merge([]Span{
		spanAt(t, 13, 14),
		spanAt(t, 9, 10),
		spanAt(t, 10, 11),
		spanAt(t, 9, 12),
	})

	if len(merged) != 2 {
		t.Fatalf("expected 2 merged spans, got %d: %v", len(merged), merged)
	}
	if !merged[0].Start.Equal(spanAt(t, 9, 12).Start) || !merged[0].End.Equal(spanAt(t, 9, 12).End) {
		t.Fatalf("unexpected first span: %v", merged[0])
	}
	if !merged[1].Start.Equal(spanAt(t, 13, 14).Start) {
		t.Fatalf("unexpected second span: %v", merged[1])
	}
}

func TestMerge_DropsInvalidSpans(t *testing.T) {
	t.Parallel()

	inverted := Span{Start: spanAt(t, 10, 11).End, End: spanAt(t, 10, 11).Start}
	merged := Merge([]Span{inverted, spanAt(t, 9, 10)})

	if len(merged) != 1 {
		t.Fatalf("expected 1 span, got %v", merged)
	}
}

func TestSpan_Clip(t *testing.T) {
	t.Parallel()

	clipped, ok := spanAt(t, 8, 18).Clip(spanAt(t, 9, 17))
	if !ok {
		t.Fatal("expected clipped span to remain")
	}
	if !clipped.Start.Equal(spanAt(t, 9, 17).Start) || !clipped.End.Equal(spanAt(t, 9, 17).End) {
		t.Fatalf("unexpected clip result: %v", clipped)
	}

	if _, ok := spanAt(t, 1, 2).Clip(spanAt(t, 9, 17)); ok {
		t.Fatal("expected span outside bounds to clip away")
	}
}
