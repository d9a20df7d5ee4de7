package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/interval"
)

// CachingResolver memoizes availability resolution for identical subject sets
// and windows. Commits purge the whole cache because a freshly written event
// changes busy intervals for its calendar.
type CachingResolver struct {
	inner AvailabilityResolver
	cache *expirable.LRU[string, map[string]availability.SubjectAvailability]
}

// NewCachingResolver wraps a resolver with an expiring LRU of the given size
// and entry TTL.
func NewCachingResolver(inner AvailabilityResolver, size int, ttl time.Duration) *CachingResolver {
	if size <= 0 {
		size = 128
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachingResolver{
		inner: inner,
		cache: expirable.NewLRU[string, map[string]availability.SubjectAvailability](size, nil, ttl),
	}
}

// Resolve returns the cached result when present, otherwise delegates and
// stores a copy. Cached values are cloned on the way out so callers can never
// mutate shared state.
func (r *CachingResolver) Resolve(ctx context.Context, subjectIDs []string, window interval.Span) (map[string]availability.SubjectAvailability, error) {
	if r == nil || r.inner == nil {
		return nil, ErrNotFound
	}

	key := availabilityCacheKey(subjectIDs, window)
	if cached, ok := r.cache.Get(key); ok {
		return cloneAvailability(cached), nil
	}

	resolved, err := r.inner.Resolve(ctx, subjectIDs, window)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, cloneAvailability(resolved))
	return resolved, nil
}

// Invalidate drops every cached entry.
func (r *CachingResolver) Invalidate() {
	if r == nil {
		return
	}
	r.cache.Purge()
}

func availabilityCacheKey(subjectIDs []string, window interval.Span) string {
	subjects := make([]string, len(subjectIDs))
	copy(subjects, subjectIDs)
	sort.Strings(subjects)

	builder := strings.Builder{}
	builder.WriteString(strings.Join(subjects, ","))
	builder.WriteString("|")
	builder.WriteString(window.Start.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(window.End.UTC().Format(time.RFC3339Nano))
	return builder.String()
}

func cloneAvailability(in map[string]availability.SubjectAvailability) map[string]availability.SubjectAvailability {
	out := make(map[string]availability.SubjectAvailability, len(in))
	for subjectID, subject := range in {
		out[subjectID] = availability.SubjectAvailability{
			HardBlocks: append([]interval.Span(nil), subject.HardBlocks...),
			Preferred:  append([]availability.WorkingHours(nil), subject.Preferred...),
		}
	}
	return out
}
