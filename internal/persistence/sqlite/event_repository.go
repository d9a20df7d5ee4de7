package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/calendar-federation/internal/interval"
	"github.com/example/calendar-federation/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateEvent inserts a calendar event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO events (id, calendar_id, title, start_time, end_time, source, status, transparency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		event.ID,
		event.CalendarID,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		event.Source,
		event.Status,
		event.Transparency,
		formatTime(event.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, calendar_id, title, start_time, end_time, source, status, transparency, created_at
		FROM events
		WHERE id = ?
	`

	var event persistence.Event
	var startStr, endStr, createdStr string
	err := r.helper.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.CalendarID,
		&event.Title,
		&startStr,
		&endStr,
		&event.Source,
		&event.Status,
		&event.Transparency,
		&createdStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(err)
	}

	if event.Start, err = parseTime(startStr); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime(endStr); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

// ListBusyIntervals projects blocking events inside the window down to bare
// start/end pairs. Titles are intentionally not part of the select list;
// callers on the availability path can never see them.
func (r *EventRepository) ListBusyIntervals(ctx context.Context, calendarID string, window interval.Span) ([]interval.Span, error) {
	query := `
		SELECT start_time, end_time
		FROM events
		WHERE calendar_id = ?
		  AND transparency = 'opaque'
		  AND status IN ('confirmed', 'tentative')
		  AND start_time < ?
		  AND end_time > ?
		ORDER BY start_time
	`
	return r.queryBusyIntervals(ctx, query, calendarID, formatTime(window.End), formatTime(window.Start))
}

// ListAllBusyIntervals is the per-store variant used for group availability:
// every calendar in the store contributes to the owner's busy time.
func (r *EventRepository) ListAllBusyIntervals(ctx context.Context, window interval.Span) ([]interval.Span, error) {
	query := `
		SELECT start_time, end_time
		FROM events
		WHERE transparency = 'opaque'
		  AND status IN ('confirmed', 'tentative')
		  AND start_time < ?
		  AND end_time > ?
		ORDER BY start_time
	`
	return r.queryBusyIntervals(ctx, query, formatTime(window.End), formatTime(window.Start))
}

func (r *EventRepository) queryBusyIntervals(ctx context.Context, query string, args ...any) ([]interval.Span, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var spans []interval.Span
	for rows.Next() {
		var startStr, endStr string
		if err := rows.Scan(&startStr, &endStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		span := interval.Span{}
		if span.Start, err = parseTime(startStr); err != nil {
			return nil, err
		}
		if span.End, err = parseTime(endStr); err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}
