package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/candidate"
	"github.com/example/calendar-federation/internal/identifier"
	"github.com/example/calendar-federation/internal/interval"
	"github.com/example/calendar-federation/internal/persistence"
)

// ParticipantStore is the per-user store surface the group service works
// against. Availability reads return bare intervals and preference masks only;
// participant event titles never appear here.
type ParticipantStore interface {
	ResolveAvailability(ctx context.Context, userID string, window interval.Span) (availability.SubjectAvailability, error)
	CreateHolds(ctx context.Context, holds []Hold) error
	ReleaseHoldsForSession(ctx context.Context, sessionID string, at time.Time) error
	CreateEvent(ctx context.Context, calendarID string, input EventInput) (string, error)
	CreateGroupSession(ctx context.Context, session GroupSession) (GroupSession, error)
	GetGroupSession(ctx context.Context, id string) (GroupSession, error)
	// UpdateGroupSessionStatus performs a guarded transition; it fails when the
	// session is already in a terminal state.
	UpdateGroupSessionStatus(ctx context.Context, id string, status SessionStatus, committedCandidateID *string) error
}

// StoreRouter resolves the per-user store that owns a participant's data.
type StoreRouter interface {
	StoreFor(ctx context.Context, userID string) (ParticipantStore, error)
}

// GroupDirectory is the durable cross-user registry that lets any participant
// discover a group session regardless of which store authored it.
type GroupDirectory interface {
	SaveEntry(ctx context.Context, entry GroupRegistryEntry) error
	GetEntry(ctx context.Context, sessionID string) (GroupRegistryEntry, error)
	UpdateEntryStatus(ctx context.Context, sessionID string, status SessionStatus, at time.Time) error
}

// PartialCommitError reports a group commit that wrote events for some
// participants before one write failed. Already written events are not rolled
// back; callers see exactly which calendars received the event.
type PartialCommitError struct {
	SessionID    string
	Written      map[string]string
	FailedUserID string
	Err          error
}

// Error implements the error interface.
func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("group session %s committed partially: event write failed for participant %s after %d participants succeeded: %v",
		e.SessionID, e.FailedUserID, len(e.Written), e.Err)
}

// Unwrap exposes the underlying write failure.
func (e *PartialCommitError) Unwrap() error {
	return e.Err
}

// GroupService coordinates scheduling across multiple participants' stores.
// Availability is gathered in parallel with read-only calls; all writes stay
// within each participant's own single-writer store.
type GroupService struct {
	stores      StoreRouter
	registry    GroupDirectory
	generator   candidate.Generator
	holdManager HoldManager
	holdExpiry  time.Duration
	idGenerator func(prefix string) string
	now         func() time.Time
	logger      *slog.Logger
}

// NewGroupService wires dependencies for group session operations.
func NewGroupService(stores StoreRouter, registry GroupDirectory, generator candidate.Generator, holdExpiry time.Duration, idGenerator func(prefix string) string, now func() time.Time) *GroupService {
	return NewGroupServiceWithLogger(stores, registry, generator, holdExpiry, idGenerator, now, nil)
}

// NewGroupServiceWithLogger constructs a GroupService with a specified logger.
func NewGroupServiceWithLogger(stores StoreRouter, registry GroupDirectory, generator candidate.Generator, holdExpiry time.Duration, idGenerator func(prefix string) string, now func() time.Time, logger *slog.Logger) *GroupService {
	if idGenerator == nil {
		idGenerator = identifier.New
	}
	if now == nil {
		now = time.Now
	}
	return &GroupService{
		stores:      stores,
		registry:    registry,
		generator:   generator,
		holdManager: NewHoldManager(idGenerator),
		holdExpiry:  holdExpiry,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *GroupService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "GroupService", operation, attrs...)
}

// CreateGroupSession gathers availability from every participant's store in
// parallel, generates mutually free candidates and records the session in the
// creator's store plus the shared registry. Any participant read failing
// aborts the whole creation.
func (s *GroupService) CreateGroupSession(ctx context.Context, params CreateGroupSessionParams) (result GroupSession, err error) {
	if s == nil {
		err = fmt.Errorf("GroupService is nil")
		return
	}
	if s.stores == nil {
		err = fmt.Errorf("store router not configured")
		return
	}
	if s.registry == nil {
		err = fmt.Errorf("group registry not configured")
		return
	}

	input := params.Input
	principal := params.Principal

	logger := s.loggerWith(ctx, "CreateGroupSession", "creator_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "group session creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", result.ID,
			"participant_count", len(result.ParticipantUserIDs),
			"candidate_count", len(result.Candidates),
		).InfoContext(ctx, "group session created")
	}()

	vErr := &ValidationError{}
	validateSessionCore(input.Title, input.DurationMinutes, input.WindowStart, input.WindowEnd, vErr)

	participants := uniqueStrings(input.ParticipantUserIDs)
	if len(participants) < 2 {
		vErr.add("participants", "At least two participants are required")
	}
	if len(participants) > 0 && !slices.Contains(participants, principal.UserID) {
		vErr.add("creator", "Creator must be included in participants")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	window := interval.Span{Start: input.WindowStart, End: input.WindowEnd}

	resolved := make(map[string]availability.SubjectAvailability, len(participants))
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	for _, userID := range participants {
		group.Go(func() error {
			store, serr := s.stores.StoreFor(groupCtx, userID)
			if serr != nil {
				return fmt.Errorf("store for participant %s: %w", userID, serr)
			}
			subject, rerr := store.ResolveAvailability(groupCtx, userID, window)
			if rerr != nil {
				return fmt.Errorf("resolve availability for participant %s: %w", userID, rerr)
			}
			mu.Lock()
			resolved[userID] = subject
			mu.Unlock()
			return nil
		})
	}
	if gerr := group.Wait(); gerr != nil {
		err = gerr
		return
	}

	maxCandidates := input.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = candidate.DefaultMaxCandidates
	}

	duration := time.Duration(input.DurationMinutes) * time.Minute
	slots := s.generator.Generate(window, duration, resolved, maxCandidates)

	status := SessionStatusCandidatesReady
	if len(slots) == 0 {
		status = SessionStatusGathering
	}

	createdAt := s.now()
	session := GroupSession{
		ID:                 s.idGenerator(identifier.PrefixGroupSession),
		CreatorUserID:      principal.UserID,
		ParticipantUserIDs: participants,
		Title:              strings.TrimSpace(input.Title),
		DurationMinutes:    input.DurationMinutes,
		WindowStart:        input.WindowStart,
		WindowEnd:          input.WindowEnd,
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

	creatorStore, serr := s.stores.StoreFor(ctx, principal.UserID)
	if serr != nil {
		err = fmt.Errorf("store for creator %s: %w", principal.UserID, serr)
		return
	}

	persisted, perr := creatorStore.CreateGroupSession(ctx, session)
	if perr != nil {
		err = mapStoreError(perr)
		return
	}

	if rerr := s.registry.SaveEntry(ctx, GroupRegistryEntry{
		SessionID:          persisted.ID,
		CreatorUserID:      persisted.CreatorUserID,
		ParticipantUserIDs: persisted.ParticipantUserIDs,
		Title:              persisted.Title,
		Status:             persisted.Status,
		UpdatedAt:          createdAt,
	}); rerr != nil {
		err = fmt.Errorf("register group session: %w", rerr)
		return
	}

	s.placeGroupHolds(ctx, logger, persisted, createdAt)

	result = persisted
	return
}

// GetGroupSession returns the session for any of its participants. Discovery
// goes through the registry so the call works no matter whose store authored
// the session.
func (s *GroupService) GetGroupSession(ctx context.Context, params GroupSessionRequestParams) (GroupSession, error) {
	if s == nil {
		return GroupSession{}, fmt.Errorf("GroupService is nil")
	}

	entry, err := s.registryEntry(ctx, params.Principal, params.SessionID)
	if err != nil {
		return GroupSession{}, err
	}

	creatorStore, err := s.stores.StoreFor(ctx, entry.CreatorUserID)
	if err != nil {
		return GroupSession{}, fmt.Errorf("store for creator %s: %w", entry.CreatorUserID, err)
	}

	session, err := creatorStore.GetGroupSession(ctx, params.SessionID)
	if err != nil {
		return GroupSession{}, mapStoreError(err)
	}
	return session, nil
}

// CommitGroupCandidate flips the session to committed and then writes the
// chosen slot into every participant's calendar sequentially. Event writes
// after the flip are best-effort: a failure surfaces as PartialCommitError
// and already written events stay in place.
func (s *GroupService) CommitGroupCandidate(ctx context.Context, params CommitGroupCandidateParams) (result GroupCommitResult, err error) {
	if s == nil {
		err = fmt.Errorf("GroupService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CommitGroupCandidate",
		"session_id", params.SessionID,
		"candidate_id", params.CandidateID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "group commit failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_count", len(result.EventIDs)).InfoContext(ctx, "group candidate committed")
	}()

	entry, rerr := s.registryEntry(ctx, params.Principal, params.SessionID)
	if rerr != nil {
		err = rerr
		return
	}

	creatorStore, serr := s.stores.StoreFor(ctx, entry.CreatorUserID)
	if serr != nil {
		err = fmt.Errorf("store for creator %s: %w", entry.CreatorUserID, serr)
		return
	}

	session, gerr := creatorStore.GetGroupSession(ctx, params.SessionID)
	if gerr != nil {
		err = mapStoreError(gerr)
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

	// The guarded flip in the creator's store is the single decision point;
	// concurrent committers lose here before any calendar is touched.
	if uerr := creatorStore.UpdateGroupSessionStatus(ctx, session.ID, SessionStatusCommitted, &chosen.ID); uerr != nil {
		if errors.Is(uerr, persistence.ErrConstraintViolation) {
			err = ErrAlreadyCommitted
			return
		}
		err = mapStoreError(uerr)
		return
	}

	if rerr := s.registry.UpdateEntryStatus(ctx, session.ID, SessionStatusCommitted, s.now()); rerr != nil {
		logger.ErrorContext(ctx, "failed to update registry status", "error", rerr)
	}

	eventInput := EventInput{
		Title:        session.Title,
		Start:        chosen.Start,
		End:          chosen.End,
		Source:       EventSourceSystem,
		Status:       EventStatusConfirmed,
		Transparency: EventTransparencyOpaque,
	}

	eventIDs := make(map[string]string, len(entry.ParticipantUserIDs))
	for _, userID := range entry.ParticipantUserIDs {
		store, serr := s.stores.StoreFor(ctx, userID)
		if serr == nil {
			var eventID string
			eventID, serr = store.CreateEvent(ctx, userID, eventInput)
			if serr == nil {
				eventIDs[userID] = eventID
				continue
			}
		}
		s.releaseGroupHolds(ctx, logger, entry)
		err = &PartialCommitError{
			SessionID:    session.ID,
			Written:      eventIDs,
			FailedUserID: userID,
			Err:          serr,
		}
		return
	}

	s.releaseGroupHolds(ctx, logger, entry)

	session.Status = SessionStatusCommitted
	session.CommittedCandidateID = &chosen.ID

	result = GroupCommitResult{Session: session, EventIDs: eventIDs}
	return
}

// registryEntry loads the discovery row and verifies the requester belongs to
// the session.
func (s *GroupService) registryEntry(ctx context.Context, principal Principal, sessionID string) (GroupRegistryEntry, error) {
	if s.registry == nil {
		return GroupRegistryEntry{}, fmt.Errorf("group registry not configured")
	}
	if s.stores == nil {
		return GroupRegistryEntry{}, fmt.Errorf("store router not configured")
	}

	entry, err := s.registry.GetEntry(ctx, sessionID)
	if err != nil {
		return GroupRegistryEntry{}, mapStoreError(err)
	}
	if !slices.Contains(entry.ParticipantUserIDs, principal.UserID) && !principal.IsAdmin {
		return GroupRegistryEntry{}, ErrNotParticipant
	}
	return entry, nil
}

// placeGroupHolds writes expiring holds into every participant's store. Holds
// are advisory; a failing store is logged and skipped.
func (s *GroupService) placeGroupHolds(ctx context.Context, logger *slog.Logger, session GroupSession, createdAt time.Time) {
	if s.holdExpiry <= 0 || len(session.Candidates) == 0 {
		return
	}
	for _, userID := range session.ParticipantUserIDs {
		store, err := s.stores.StoreFor(ctx, userID)
		if err == nil {
			holds := s.holdManager.BuildHolds(session.ID, session.Candidates, []string{userID}, s.holdExpiry, createdAt)
			err = store.CreateHolds(ctx, holds)
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to place holds", "participant_id", userID, "error", err)
		}
	}
}

// releaseGroupHolds is best-effort cleanup after a terminal transition.
func (s *GroupService) releaseGroupHolds(ctx context.Context, logger *slog.Logger, entry GroupRegistryEntry) {
	at := s.now()
	for _, userID := range entry.ParticipantUserIDs {
		store, err := s.stores.StoreFor(ctx, userID)
		if err == nil {
			err = store.ReleaseHoldsForSession(ctx, entry.SessionID, at)
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to release holds", "participant_id", userID, "error", err)
		}
	}
}
