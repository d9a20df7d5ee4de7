// Package federation routes every user's data to that user's own SQLite
// database and exposes the per-store surfaces the application services work
// against. One store means one writer; cross-user coordination happens above
// this package, never by sharing a database file.
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/calendar-federation/internal/application"
	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/identifier"
	"github.com/example/calendar-federation/internal/interval"
	"github.com/example/calendar-federation/internal/persistence"
	"github.com/example/calendar-federation/internal/persistence/sqlite"
)

// UserStore bundles the repositories of one user's database behind the
// application-layer store interfaces. A single UserStore instance exists per
// open database; the router caches them.
type UserStore struct {
	userID      string
	pool        *sqlite.ConnectionPool
	events      *sqlite.EventRepository
	constraints *sqlite.ConstraintRepository
	milestones  *sqlite.MilestoneRepository
	sessions    *sqlite.SessionRepository
	holds       *sqlite.HoldRepository
	groups      *sqlite.GroupSessionRepository
	resolver    *application.CachingResolver
	owner       *availability.Resolver
	idGenerator func(prefix string) string
	now         func() time.Time
}

func newUserStore(userID string, pool *sqlite.ConnectionPool, idGenerator func(prefix string) string, now func() time.Time) *UserStore {
	store := &UserStore{
		userID:      userID,
		pool:        pool,
		events:      sqlite.NewEventRepository(pool),
		constraints: sqlite.NewConstraintRepository(pool),
		milestones:  sqlite.NewMilestoneRepository(pool),
		sessions:    sqlite.NewSessionRepository(pool),
		holds:       sqlite.NewHoldRepository(pool),
		groups:      sqlite.NewGroupSessionRepository(pool),
		idGenerator: idGenerator,
		now:         now,
	}

	calendarScoped := availability.NewResolver(
		calendarBusySource{events: store.events},
		constraintSource{constraints: store.constraints},
		milestoneSource{milestones: store.milestones},
	)
	store.resolver = application.NewCachingResolver(calendarScoped, 0, 0)

	// Group availability treats the whole store as one subject: every calendar
	// contributes busy time, constraints are the ones filed under the user ID.
	store.owner = availability.NewResolver(
		storeBusySource{events: store.events},
		constraintSource{constraints: store.constraints},
		milestoneSource{milestones: store.milestones},
	)
	return store
}

// UserID returns the owner of this store.
func (s *UserStore) UserID() string {
	return s.userID
}

// Close closes the underlying database.
func (s *UserStore) Close() error {
	return s.pool.Close()
}

// Resolve implements application.AvailabilityResolver over this store's
// calendars, with caching.
func (s *UserStore) Resolve(ctx context.Context, subjectIDs []string, window interval.Span) (map[string]availability.SubjectAvailability, error) {
	return s.resolver.Resolve(ctx, subjectIDs, window)
}

// Invalidate drops cached availability; called after anything that changes
// busy time.
func (s *UserStore) Invalidate() {
	s.resolver.Invalidate()
}

// ResolveAvailability implements the participant read used by group
// scheduling. It is deliberately uncached so hold and commit decisions see
// fresh busy time.
func (s *UserStore) ResolveAvailability(ctx context.Context, userID string, window interval.Span) (availability.SubjectAvailability, error) {
	return s.owner.ResolveSubject(ctx, userID, window)
}

// CreateSession implements application.SessionStore.
func (s *UserStore) CreateSession(ctx context.Context, session application.SchedulingSession, holds []application.Hold) (application.SchedulingSession, error) {
	persisted := persistence.Session{
		ID:                   session.ID,
		UserID:               session.UserID,
		Title:                session.Title,
		DurationMinutes:      session.DurationMinutes,
		WindowStart:          session.WindowStart,
		WindowEnd:            session.WindowEnd,
		RequiredAccountIDs:   session.RequiredAccountIDs,
		MaxCandidates:        session.MaxCandidates,
		HoldTimeoutMs:        session.HoldTimeoutMs,
		TargetCalendarID:     session.TargetCalendarID,
		Status:               string(session.Status),
		CommittedCandidateID: session.CommittedCandidateID,
		CommittedEventID:     session.CommittedEventID,
		CreatedAt:            session.CreatedAt,
	}
	if err := s.sessions.CreateSession(ctx, persisted, toStoredCandidates(session.Candidates), toStoredHolds(holds)); err != nil {
		return application.SchedulingSession{}, err
	}
	return session, nil
}

// GetSession implements application.SessionStore.
func (s *UserStore) GetSession(ctx context.Context, id string) (application.SchedulingSession, error) {
	stored, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return application.SchedulingSession{}, err
	}
	candidates, err := s.sessions.ListCandidates(ctx, id)
	if err != nil {
		return application.SchedulingSession{}, err
	}

	return application.SchedulingSession{
		ID:                   stored.ID,
		UserID:               stored.UserID,
		Title:                stored.Title,
		DurationMinutes:      stored.DurationMinutes,
		WindowStart:          stored.WindowStart,
		WindowEnd:            stored.WindowEnd,
		RequiredAccountIDs:   stored.RequiredAccountIDs,
		MaxCandidates:        stored.MaxCandidates,
		HoldTimeoutMs:        stored.HoldTimeoutMs,
		TargetCalendarID:     stored.TargetCalendarID,
		Status:               application.SessionStatus(stored.Status),
		Candidates:           fromStoredCandidates(candidates),
		CommittedCandidateID: stored.CommittedCandidateID,
		CommittedEventID:     stored.CommittedEventID,
		CreatedAt:            stored.CreatedAt,
	}, nil
}

// UpdateSessionStatus implements application.SessionStore.
func (s *UserStore) UpdateSessionStatus(ctx context.Context, id string, status application.SessionStatus, committedCandidateID, committedEventID *string) error {
	return s.sessions.UpdateSessionStatus(ctx, id, string(status), committedCandidateID, committedEventID)
}

// RecordCommittedEvent implements application.SessionStore.
func (s *UserStore) RecordCommittedEvent(ctx context.Context, id, eventID string) error {
	return s.sessions.RecordCommittedEvent(ctx, id, eventID)
}

// ListHoldsBySession implements application.HoldStore.
func (s *UserStore) ListHoldsBySession(ctx context.Context, sessionID string) ([]application.Hold, error) {
	stored, err := s.holds.ListHoldsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	holds := make([]application.Hold, 0, len(stored))
	for _, hold := range stored {
		holds = append(holds, application.Hold{
			ID:        hold.ID,
			SessionID: hold.SessionID,
			SubjectID: hold.SubjectID,
			Start:     hold.Start,
			End:       hold.End,
			Status:    application.HoldStatus(hold.Status),
			ExpiresAt: hold.ExpiresAt,
		})
	}
	return holds, nil
}

// ReleaseHoldsForSession implements application.HoldStore and the matching
// participant-store method.
func (s *UserStore) ReleaseHoldsForSession(ctx context.Context, sessionID string, at time.Time) error {
	return s.holds.ReleaseHoldsForSession(ctx, sessionID, at)
}

// CreateHolds implements the participant-store hold placement.
func (s *UserStore) CreateHolds(ctx context.Context, holds []application.Hold) error {
	return s.holds.CreateHolds(ctx, toStoredHolds(holds))
}

// CreateEvent implements application.CalendarWriter; commits land here.
func (s *UserStore) CreateEvent(ctx context.Context, calendarID string, input application.EventInput) (string, error) {
	event := persistence.Event{
		ID:           s.idGenerator(identifier.PrefixEvent),
		CalendarID:   calendarID,
		Title:        input.Title,
		Start:        input.Start,
		End:          input.End,
		Source:       input.Source,
		Status:       input.Status,
		Transparency: input.Transparency,
		CreatedAt:    s.now(),
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return "", err
	}
	s.Invalidate()
	return event.ID, nil
}

// CreateGroupSession implements the participant-store group write, used for
// the creator's store only.
func (s *UserStore) CreateGroupSession(ctx context.Context, session application.GroupSession) (application.GroupSession, error) {
	stored := persistence.GroupSession{
		ID:                   session.ID,
		CreatorUserID:        session.CreatorUserID,
		ParticipantUserIDs:   session.ParticipantUserIDs,
		Title:                session.Title,
		DurationMinutes:      session.DurationMinutes,
		WindowStart:          session.WindowStart,
		WindowEnd:            session.WindowEnd,
		Status:               string(session.Status),
		CommittedCandidateID: session.CommittedCandidateID,
		CreatedAt:            session.CreatedAt,
	}
	if err := s.groups.CreateGroupSession(ctx, stored, toStoredCandidates(session.Candidates)); err != nil {
		return application.GroupSession{}, err
	}
	return session, nil
}

// GetGroupSession implements the participant-store group read.
func (s *UserStore) GetGroupSession(ctx context.Context, id string) (application.GroupSession, error) {
	stored, err := s.groups.GetGroupSession(ctx, id)
	if err != nil {
		return application.GroupSession{}, err
	}
	candidates, err := s.groups.ListGroupCandidates(ctx, id)
	if err != nil {
		return application.GroupSession{}, err
	}

	return application.GroupSession{
		ID:                   stored.ID,
		CreatorUserID:        stored.CreatorUserID,
		ParticipantUserIDs:   stored.ParticipantUserIDs,
		Title:                stored.Title,
		DurationMinutes:      stored.DurationMinutes,
		WindowStart:          stored.WindowStart,
		WindowEnd:            stored.WindowEnd,
		Status:               application.SessionStatus(stored.Status),
		Candidates:           fromStoredCandidates(candidates),
		CommittedCandidateID: stored.CommittedCandidateID,
		CreatedAt:            stored.CreatedAt,
	}, nil
}

// UpdateGroupSessionStatus implements the guarded participant-store transition.
func (s *UserStore) UpdateGroupSessionStatus(ctx context.Context, id string, status application.SessionStatus, committedCandidateID *string) error {
	return s.groups.UpdateGroupSessionStatus(ctx, id, string(status), committedCandidateID)
}

// ImportEvent implements application.CalendarStore.
func (s *UserStore) ImportEvent(ctx context.Context, event application.CalendarEvent) error {
	stored := persistence.Event{
		ID:           event.ID,
		CalendarID:   event.CalendarID,
		Title:        event.Title,
		Start:        event.Start,
		End:          event.End,
		Source:       event.Source,
		Status:       event.Status,
		Transparency: event.Transparency,
		CreatedAt:    event.CreatedAt,
	}
	if err := s.events.CreateEvent(ctx, stored); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// GetEvent implements application.CalendarStore.
func (s *UserStore) GetEvent(ctx context.Context, id string) (application.CalendarEvent, error) {
	stored, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return application.CalendarEvent{}, err
	}
	return application.CalendarEvent{
		ID:           stored.ID,
		CalendarID:   stored.CalendarID,
		Title:        stored.Title,
		Start:        stored.Start,
		End:          stored.End,
		Source:       stored.Source,
		Status:       stored.Status,
		Transparency: stored.Transparency,
		CreatedAt:    stored.CreatedAt,
	}, nil
}

// AddConstraint implements application.CalendarStore. Working-hours payloads
// are stored as the constraint's JSON config.
func (s *UserStore) AddConstraint(ctx context.Context, constraint application.SchedulingConstraint) error {
	config := "{}"
	if constraint.WorkingHours != nil {
		encoded, err := json.Marshal(workingHoursConfig{
			Weekdays:    constraint.WorkingHours.Weekdays,
			StartMinute: constraint.WorkingHours.StartMinute,
			EndMinute:   constraint.WorkingHours.EndMinute,
			Timezone:    constraint.WorkingHours.Timezone,
		})
		if err != nil {
			return fmt.Errorf("encode working hours config: %w", err)
		}
		config = string(encoded)
	}

	stored := persistence.Constraint{
		ID:         constraint.ID,
		SubjectID:  constraint.SubjectID,
		Kind:       constraint.Kind,
		Config:     config,
		ActiveFrom: constraint.ActiveFrom,
		ActiveTo:   constraint.ActiveTo,
		CreatedAt:  constraint.CreatedAt,
	}
	if err := s.constraints.CreateConstraint(ctx, stored); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// ListConstraints implements application.CalendarStore.
func (s *UserStore) ListConstraints(ctx context.Context, subjectID string) ([]application.SchedulingConstraint, error) {
	stored, err := s.constraints.ListConstraints(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	constraints := make([]application.SchedulingConstraint, 0, len(stored))
	for _, row := range stored {
		constraint := application.SchedulingConstraint{
			ID:         row.ID,
			SubjectID:  row.SubjectID,
			Kind:       row.Kind,
			ActiveFrom: row.ActiveFrom,
			ActiveTo:   row.ActiveTo,
			CreatedAt:  row.CreatedAt,
		}
		if row.Kind == string(availability.ConstraintWorkingHours) {
			config, err := parseWorkingHoursConfig(row.Config)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", row.ID, err)
			}
			constraint.WorkingHours = &application.WorkingHoursConfig{
				Weekdays:    config.Weekdays,
				StartMinute: config.StartMinute,
				EndMinute:   config.EndMinute,
				Timezone:    config.Timezone,
			}
		}
		constraints = append(constraints, constraint)
	}
	return constraints, nil
}

// RemoveConstraint implements application.CalendarStore.
func (s *UserStore) RemoveConstraint(ctx context.Context, id string) error {
	if err := s.constraints.DeleteConstraint(ctx, id); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// AddMilestone implements application.CalendarStore.
func (s *UserStore) AddMilestone(ctx context.Context, milestone application.RelationshipMilestone) error {
	stored := persistence.Milestone{
		ID:             milestone.ID,
		RelationshipID: milestone.RelationshipID,
		Kind:           milestone.Kind,
		Date:           milestone.Date,
		RecursAnnually: milestone.RecursAnnually,
		CreatedAt:      milestone.CreatedAt,
	}
	if milestone.Note != "" {
		note := milestone.Note
		stored.Note = &note
	}
	if err := s.milestones.CreateMilestone(ctx, stored); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// ListMilestones implements application.CalendarStore.
func (s *UserStore) ListMilestones(ctx context.Context) ([]application.RelationshipMilestone, error) {
	stored, err := s.milestones.ListMilestones(ctx)
	if err != nil {
		return nil, err
	}
	milestones := make([]application.RelationshipMilestone, 0, len(stored))
	for _, row := range stored {
		milestone := application.RelationshipMilestone{
			ID:             row.ID,
			RelationshipID: row.RelationshipID,
			Kind:           row.Kind,
			Date:           row.Date,
			RecursAnnually: row.RecursAnnually,
			CreatedAt:      row.CreatedAt,
		}
		if row.Note != nil {
			milestone.Note = *row.Note
		}
		milestones = append(milestones, milestone)
	}
	return milestones, nil
}

// RemoveMilestone implements application.CalendarStore.
func (s *UserStore) RemoveMilestone(ctx context.Context, id string) error {
	if err := s.milestones.DeleteMilestone(ctx, id); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// SweepExpiredHolds releases holds whose expiry has passed.
func (s *UserStore) SweepExpiredHolds(ctx context.Context) (int64, error) {
	return s.holds.ReleaseExpiredHolds(ctx, s.now())
}

func toStoredCandidates(candidates []application.Candidate) []persistence.Candidate {
	stored := make([]persistence.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		stored = append(stored, persistence.Candidate{
			ID:          cand.ID,
			SessionID:   cand.SessionID,
			Start:       cand.Start,
			End:         cand.End,
			Score:       cand.Score,
			Explanation: cand.Explanation,
		})
	}
	return stored
}

func fromStoredCandidates(stored []persistence.Candidate) []application.Candidate {
	candidates := make([]application.Candidate, 0, len(stored))
	for _, cand := range stored {
		candidates = append(candidates, application.Candidate{
			ID:          cand.ID,
			SessionID:   cand.SessionID,
			Start:       cand.Start,
			End:         cand.End,
			Score:       cand.Score,
			Explanation: cand.Explanation,
		})
	}
	return candidates
}

func toStoredHolds(holds []application.Hold) []persistence.Hold {
	stored := make([]persistence.Hold, 0, len(holds))
	for _, hold := range holds {
		stored = append(stored, persistence.Hold{
			ID:        hold.ID,
			SessionID: hold.SessionID,
			SubjectID: hold.SubjectID,
			Start:     hold.Start,
			End:       hold.End,
			Status:    string(hold.Status),
			ExpiresAt: hold.ExpiresAt,
		})
	}
	return stored
}
