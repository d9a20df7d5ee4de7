package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/candidate"
	"github.com/example/calendar-federation/internal/identifier"
	"github.com/example/calendar-federation/internal/interval"
	"github.com/example/calendar-federation/internal/persistence"
)

// SessionStore captures the persistence interactions needed by the session service.
type SessionStore interface {
	// CreateSession persists the session together with its candidates and holds.
	CreateSession(ctx context.Context, session SchedulingSession, holds []Hold) (SchedulingSession, error)
	GetSession(ctx context.Context, id string) (SchedulingSession, error)
	// UpdateSessionStatus performs a guarded transition; it fails with a
	// constraint violation when the session already reached a terminal state.
	UpdateSessionStatus(ctx context.Context, id string, status SessionStatus, committedCandidateID, committedEventID *string) error
	// RecordCommittedEvent stores the calendar event written for a session
	// that has already flipped to committed.
	RecordCommittedEvent(ctx context.Context, id, eventID string) error
}

// HoldStore captures the hold interactions needed by the session service.
type HoldStore interface {
	ListHoldsBySession(ctx context.Context, sessionID string) ([]Hold, error)
	ReleaseHoldsForSession(ctx context.Context, sessionID string, at time.Time) error
}

// CalendarWriter writes committed events into the target calendar and returns
// the new event's identifier.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, calendarID string, input EventInput) (string, error)
}

// AvailabilityResolver computes resolved availability for a set of subjects
// over a window.
type AvailabilityResolver interface {
	Resolve(ctx context.Context, subjectIDs []string, window interval.Span) (map[string]availability.SubjectAvailability, error)
}

// SessionService orchestrates the scheduling session lifecycle: validation,
// availability resolution, candidate generation, holds and terminal
// transitions.
type SessionService struct {
	sessions    SessionStore
	holds       HoldStore
	resolver    AvailabilityResolver
	calendar    CalendarWriter
	generator   candidate.Generator
	holdManager HoldManager
	idGenerator func(prefix string) string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(sessions SessionStore, holds HoldStore, resolver AvailabilityResolver, calendar CalendarWriter, generator candidate.Generator, idGenerator func(prefix string) string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(sessions, holds, resolver, calendar, generator, idGenerator, now, nil)
}

// NewSessionServiceWithLogger constructs a SessionService with a specified logger.
func NewSessionServiceWithLogger(sessions SessionStore, holds HoldStore, resolver AvailabilityResolver, calendar CalendarWriter, generator candidate.Generator, idGenerator func(prefix string) string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = identifier.New
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		sessions:    sessions,
		holds:       holds,
		resolver:    resolver,
		calendar:    calendar,
		generator:   generator,
		holdManager: NewHoldManager(idGenerator),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// CreateSession validates the request, resolves availability for every
// required account, generates the ranked candidate list and persists the
// session with its holds in one step.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (result SchedulingSession, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	if s.resolver == nil {
		err = fmt.Errorf("availability resolver not configured")
		return
	}

	input := params.Input
	principal := params.Principal

	logger := s.loggerWith(ctx, "CreateSession", "user_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", result.ID,
			"candidate_count", len(result.Candidates),
		).InfoContext(ctx, "session created")
	}()

	vErr := &ValidationError{}
	validateSessionCore(input.Title, input.DurationMinutes, input.WindowStart, input.WindowEnd, vErr)

	accounts := uniqueStrings(input.RequiredAccountIDs)
	if len(accounts) == 0 {
		vErr.add("required_account_ids", "requiredAccountIds is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	sort.Strings(accounts)

	window := interval.Span{Start: input.WindowStart, End: input.WindowEnd}
	resolved, rerr := s.resolver.Resolve(ctx, accounts, window)
	if rerr != nil {
		err = fmt.Errorf("resolve availability: %w", rerr)
		return
	}

	maxCandidates := input.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = candidate.DefaultMaxCandidates
	}
	duration := time.Duration(input.DurationMinutes) * time.Minute
	slots := s.generator.Generate(window, duration, resolved, maxCandidates)

	targetCalendarID := strings.TrimSpace(input.TargetCalendarID)
	if targetCalendarID == "" {
		targetCalendarID = accounts[0]
	}

	// No viable slot leaves the session open rather than failing the call.
	status := SessionStatusCandidatesReady
	if len(slots) == 0 {
		status = SessionStatusOpen
	}

	createdAt := s.now()
	session := SchedulingSession{
		ID:                 s.idGenerator(identifier.PrefixSession),
		UserID:             principal.UserID,
		Title:              strings.TrimSpace(input.Title),
		DurationMinutes:    input.DurationMinutes,
		WindowStart:        input.WindowStart,
		WindowEnd:          input.WindowEnd,
		RequiredAccountIDs: accounts,
		MaxCandidates:      maxCandidates,
		HoldTimeoutMs:      input.HoldTimeoutMs,
		TargetCalendarID:   targetCalendarID,
		Status:             status,
		CreatedAt:          createdAt,
	}

	session.Candidates = make([]Candidate, 0, len(slots))
	for _, slot := range slots {
		session.Candidates = append(session.Candidates, Candidate{
			ID:          s.idGenerator(identifier.PrefixCandidate),
			SessionID:   session.ID,
			Start:       slot.Start,
			End:         slot.End,
			Score:       slot.Score,
			Explanation: slot.Explanation,
		})
	}

	var holds []Hold
	if input.HoldTimeoutMs > 0 {
		timeout := time.Duration(input.HoldTimeoutMs) * time.Millisecond
		holds = s.holdManager.BuildHolds(session.ID, session.Candidates, accounts, timeout, createdAt)
	}

	if s.sessions == nil {
		result = session
		return
	}

	persisted, perr := s.sessions.CreateSession(ctx, session, holds)
	if perr != nil {
		err = mapStoreError(perr)
		return
	}

	result = persisted
	return
}

// GetSession returns the session with its candidate list for the owning user.
func (s *SessionService) GetSession(ctx context.Context, params SessionRequestParams) (SchedulingSession, error) {
	if s == nil {
		return SchedulingSession{}, fmt.Errorf("SessionService is nil")
	}
	return s.authorizedSession(ctx, params.Principal, params.SessionID)
}

// GetHolds returns the holds recorded for the session, including released and
// expired ones.
func (s *SessionService) GetHolds(ctx context.Context, params SessionRequestParams) ([]Hold, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	if s.holds == nil {
		return nil, fmt.Errorf("hold store not configured")
	}

	if _, err := s.authorizedSession(ctx, params.Principal, params.SessionID); err != nil {
		return nil, err
	}

	holds, err := s.holds.ListHoldsBySession(ctx, params.SessionID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return holds, nil
}

// CommitCandidate turns the chosen candidate into a calendar event, marks the
// session committed and releases its holds. Commit is a one-way transition;
// a second commit fails regardless of candidate.
func (s *SessionService) CommitCandidate(ctx context.Context, params CommitCandidateParams) (result CommitResult, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session store not configured")
		return
	}
	if s.calendar == nil {
		err = fmt.Errorf("calendar writer not configured")
		return
	}

	logger := s.loggerWith(ctx, "CommitCandidate",
		"session_id", params.SessionID,
		"candidate_id", params.CandidateID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "commit failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", result.EventID).InfoContext(ctx, "candidate committed")
	}()

	session, aerr := s.authorizedSession(ctx, params.Principal, params.SessionID)
	if aerr != nil {
		err = aerr
		return
	}

	switch session.Status {
	case SessionStatusCommitted:
		err = ErrAlreadyCommitted
		return
	case SessionStatusCancelled:
		err = ErrSessionCancelled
		return
	}

	chosen, ok := findCandidate(session.Candidates, params.CandidateID)
	if !ok {
		err = fmt.Errorf("candidate %s: %w", params.CandidateID, ErrNotFound)
		return
	}

	// The guarded flip is the single decision point; the loser of a
	// concurrent commit stops here, before any calendar write can
	// double-book the slot.
	if uerr := s.sessions.UpdateSessionStatus(ctx, session.ID, SessionStatusCommitted, &chosen.ID, nil); uerr != nil {
		err = s.terminalConflict(ctx, session.ID, uerr)
		return
	}

	eventID, werr := s.calendar.CreateEvent(ctx, session.TargetCalendarID, EventInput{
		Title:        session.Title,
		Start:        chosen.Start,
		End:          chosen.End,
		Source:       EventSourceSystem,
		Status:       EventStatusConfirmed,
		Transparency: EventTransparencyOpaque,
	})
	if werr != nil {
		err = fmt.Errorf("write committed event: %w", werr)
		return
	}

	if uerr := s.sessions.RecordCommittedEvent(ctx, session.ID, eventID); uerr != nil {
		err = mapStoreError(uerr)
		return
	}

	s.releaseHolds(ctx, logger, session.ID)
	s.invalidateAvailability()

	session.Status = SessionStatusCommitted
	session.CommittedCandidateID = &chosen.ID
	session.CommittedEventID = &eventID

	result = CommitResult{Session: session, EventID: eventID}
	return
}

// CancelSession abandons an uncommitted session and releases its holds.
// Cancelling an already cancelled session is a no-op.
func (s *SessionService) CancelSession(ctx context.Context, params SessionRequestParams) (result SchedulingSession, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CancelSession", "session_id", params.SessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cancel failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session cancelled")
	}()

	session, aerr := s.authorizedSession(ctx, params.Principal, params.SessionID)
	if aerr != nil {
		err = aerr
		return
	}

	switch session.Status {
	case SessionStatusCommitted:
		err = ErrAlreadyCommitted
		return
	case SessionStatusCancelled:
		result = session
		return
	}

	if uerr := s.sessions.UpdateSessionStatus(ctx, session.ID, SessionStatusCancelled, nil, nil); uerr != nil {
		cerr := s.terminalConflict(ctx, session.ID, uerr)
		if errors.Is(cerr, ErrSessionCancelled) {
			// Lost to a concurrent cancel; the outcome is the one requested.
			session.Status = SessionStatusCancelled
			result = session
			return
		}
		err = cerr
		return
	}

	s.releaseHolds(ctx, logger, session.ID)

	session.Status = SessionStatusCancelled
	result = session
	return
}

// terminalConflict translates a lost guarded transition into the terminal
// state error callers branch on. The session is re-read because the guard
// reports only that some terminal state won, not which one.
func (s *SessionService) terminalConflict(ctx context.Context, sessionID string, uerr error) error {
	if !errors.Is(uerr, persistence.ErrConstraintViolation) {
		return mapStoreError(uerr)
	}
	current, gerr := s.sessions.GetSession(ctx, sessionID)
	if gerr == nil && current.Status == SessionStatusCancelled {
		return ErrSessionCancelled
	}
	return ErrAlreadyCommitted
}

// authorizedSession loads the session and verifies the principal owns it.
func (s *SessionService) authorizedSession(ctx context.Context, principal Principal, sessionID string) (SchedulingSession, error) {
	if s.sessions == nil {
		return SchedulingSession{}, fmt.Errorf("session store not configured")
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SchedulingSession{}, mapStoreError(err)
	}
	if session.UserID != principal.UserID && !principal.IsAdmin {
		return SchedulingSession{}, ErrUnauthorized
	}
	return session, nil
}

// releaseHolds is best-effort after a terminal transition; failures are logged
// and left to the expiry sweeper.
func (s *SessionService) releaseHolds(ctx context.Context, logger *slog.Logger, sessionID string) {
	if s.holds == nil {
		return
	}
	if err := s.holds.ReleaseHoldsForSession(ctx, sessionID, s.now()); err != nil {
		logger.ErrorContext(ctx, "failed to release holds", "error", err)
	}
}

func (s *SessionService) invalidateAvailability() {
	if inv, ok := s.resolver.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

func validateSessionCore(title string, durationMinutes int, windowStart, windowEnd time.Time, vErr *ValidationError) {
	if strings.TrimSpace(title) == "" {
		vErr.add("title", "title is required")
	}
	if durationMinutes < 15 || durationMinutes > 480 {
		vErr.add("duration_minutes", "durationMinutes must be between 15 and 480")
	}
	if windowStart.IsZero() || windowEnd.IsZero() || !windowStart.Before(windowEnd) {
		vErr.add("window", "windowStart must be before windowEnd")
	}
}

func findCandidate(candidates []Candidate, id string) (Candidate, bool) {
	for _, cand := range candidates {
		if cand.ID == id {
			return cand, true
		}
	}
	return Candidate{}, false
}

func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}
