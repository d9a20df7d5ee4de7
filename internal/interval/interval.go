package interval

import (
	"sort"
	"time"
)

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// New returns a span covering [start, end).
func New(start, end time.Time) Span {
	return Span{Start: start, End: end}
}

// IsValid reports whether the span has positive duration.
func (s Span) IsValid() bool {
	return s.Start.Before(s.End)
}

// Duration returns the length of the span.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether the span shares any instant with other.
// Adjacent spans (s.End == other.Start) do not overlap.
func (s Span) Overlaps(other Span) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Contains reports whether other lies entirely within the span.
func (s Span) Contains(other Span) bool {
	return !other.Start.Before(s.Start) && !other.End.After(s.End)
}

// Clip returns the portion of the span inside bounds, and whether any
// portion remains.
func (s Span) Clip(bounds Span) (Span, bool) {
	clipped := s
	if clipped.Start.Before(bounds.Start) {
		clipped.Start = bounds.Start
	}
	if clipped.End.After(bounds.End) {
		clipped.End = bounds.End
	}
	if !clipped.IsValid() {
		return Span{}, false
	}
	return clipped, true
}

// Merge coalesces overlapping and adjacent spans into a sorted, minimal set.
// Invalid spans are dropped. The input slice is not modified.
func Merge(spans []Span) []Span {
	valid := make([]Span, 0, len(spans))
	for _, span := range spans {
		if span.IsValid() {
			valid = append(valid, span)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start.Equal(valid[j].Start) {
			return valid[i].End.Before(valid[j].End)
		}
		return valid[i].Start.Before(valid[j].Start)
	})

	merged := make([]Span, 0, len(valid))
	current := valid[0]
	for _, span := range valid[1:] {
		if !span.Start.After(current.End) {
			if span.End.After(current.End) {
				current.End = span.End
			}
			continue
		}
		merged = append(merged, current)
		current = span
	}
	merged = append(merged, current)
	return merged
}

// OverlapsAny reports whether the span overlaps any member of spans.
func OverlapsAny(s Span, spans []Span) bool {
	for _, other := range spans {
		if s.Overlaps(other) {
			return true
		}
	}
	return false
}
