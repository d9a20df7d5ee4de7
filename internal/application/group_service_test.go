package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/candidate"
	"github.com/example/calendar-federation/internal/interval"
	"github.com/example/calendar-federation/internal/persistence"
)

type participantStoreStub struct {
	availability    availability.SubjectAvailability
	availabilityErr error

	holdsCreated []Hold
	released     []string

	eventErr  error
	events    []EventInput
	calendars []string

	session   GroupSession
	saved     bool
	statusErr error
	statuses  []SessionStatus

	reads atomic.Int32
}

func (p *participantStoreStub) ResolveAvailability(ctx context.Context, userID string, window interval.Span) (availability.SubjectAvailability, error) {
	p.reads.Add(1)
	if p.availabilityErr != nil {
		return availability.SubjectAvailability{}, p.availabilityErr
	}
	return p.availability, nil
}

func (p *participantStoreStub) CreateHolds(ctx context.Context, holds []Hold) error {
	p.holdsCreated = append(p.holdsCreated, holds...)
	return nil
}

func (p *participantStoreStub) ReleaseHoldsForSession(ctx context.Context, sessionID string, at time.Time) error {
	p.released = append(p.released, sessionID)
	return nil
}

func (p *participantStoreStub) CreateEvent(ctx context.Context, calendarID string, input EventInput) (string, error) {
	if p.eventErr != nil {
		return "", p.eventErr
	}
	p.events = append(p.events, input)
	p.calendars = append(p.calendars, calendarID)
	return fmt.Sprintf("evt-%s-%d", calendarID, len(p.events)), nil
}

func (p *participantStoreStub) CreateGroupSession(ctx context.Context, session GroupSession) (GroupSession, error) {
	p.session = session
	p.saved = true
	return session, nil
}

func (p *participantStoreStub) GetGroupSession(ctx context.Context, id string) (GroupSession, error) {
	if !p.saved || p.session.ID != id {
		return GroupSession{}, persistence.ErrNotFound
	}
	return p.session, nil
}

func (p *participantStoreStub) UpdateGroupSessionStatus(ctx context.Context, id string, status SessionStatus, committedCandidateID *string) error {
	if p.statusErr != nil {
		return p.statusErr
	}
	p.statuses = append(p.statuses, status)
	p.session.Status = status
	p.session.CommittedCandidateID = committedCandidateID
	return nil
}

type routerStub struct {
	stores map[string]*participantStoreStub
	errFor map[string]error
}

func (r *routerStub) StoreFor(ctx context.Context, userID string) (ParticipantStore, error) {
	if err, ok := r.errFor[userID]; ok {
		return nil, err
	}
	store, ok := r.stores[userID]
	if !ok {
		return nil, fmt.Errorf("no store for %s", userID)
	}
	return store, nil
}

type registryStub struct {
	entries  map[string]GroupRegistryEntry
	saveErr  error
	statuses []SessionStatus
}

func newRegistryStub() *registryStub {
	return &registryStub{entries: make(map[string]GroupRegistryEntry)}
}

func (r *registryStub) SaveEntry(ctx context.Context, entry GroupRegistryEntry) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.entries[entry.SessionID] = entry
	return nil
}

func (r *registryStub) GetEntry(ctx context.Context, sessionID string) (GroupRegistryEntry, error) {
	entry, ok := r.entries[sessionID]
	if !ok {
		return GroupRegistryEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

func (r *registryStub) UpdateEntryStatus(ctx context.Context, sessionID string, status SessionStatus, at time.Time) error {
	entry, ok := r.entries[sessionID]
	if !ok {
		return persistence.ErrNotFound
	}
	entry.Status = status
	entry.UpdatedAt = at
	r.entries[sessionID] = entry
	r.statuses = append(r.statuses, status)
	return nil
}

func freeParticipants(userIDs ...string) *routerStub {
	stores := make(map[string]*participantStoreStub, len(userIDs))
	for _, id := range userIDs {
		stores[id] = &participantStoreStub{}
	}
	return &routerStub{stores: stores}
}

func newTestGroupService(router *routerStub, registry *registryStub, holdExpiry time.Duration, t *testing.T) *GroupService {
	t.Helper()
	return NewGroupService(router, registry, candidate.Generator{}, holdExpiry, sequentialIDs("grp"), fixedNow(t))
}

func groupInput(participants ...string) GroupSessionInput {
	start, end := morningWindow()
	return GroupSessionInput{
		Title:              "Team offsite planning",
		DurationMinutes:    60,
		WindowStart:        start,
		WindowEnd:          end,
		ParticipantUserIDs: participants,
	}
}

func TestGroupService_CreateGroupSession_ValidatesParticipants(t *testing.T) {
	t.Parallel()

	svc := newTestGroupService(freeParticipants("usr_a"), newRegistryStub(), 0, t)

	_, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionParams{
		Principal: Principal{UserID: "usr_a"},
		Input:     groupInput("usr_a"),
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "At least two participants are required") {
		t.Fatalf("expected participant count message, got %q", err.Error())
	}
}

func TestGroupService_CreateGroupSession_RequiresCreatorMembership(t *testing.T) {
	t.Parallel()

	svc := newTestGroupService(freeParticipants("usr_b", "usr_c"), newRegistryStub(), 0, t)

	_, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionParams{
		Principal: Principal{UserID: "usr_a"},
		Input:     groupInput("usr_b", "usr_c"),
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Creator must be included") {
		t.Fatalf("expected creator membership message, got %q", err.Error())
	}
}

func TestGroupService_CreateGroupSession_FansOutAndRegisters(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b", "usr_c")
	start, _ := morningWindow()
	// usr_b is busy for the first hour; mutual candidates start at 10:00.
	router.stores["usr_b"].availability = availability.SubjectAvailability{
		HardBlocks: []interval.Span{{Start: start, End: start.Add(time.Hour)}},
	}
	registry := newRegistryStub()
	svc := newTestGroupService(router, registry, 30*time.Minute, t)

	session, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionParams{
		Principal: Principal{UserID: "usr_a"},
		Input:     groupInput("usr_a", "usr_b", "usr_c"),
	})
	if err != nil {
		t.Fatalf("CreateGroupSession returned error: %v", err)
	}

	if session.Status != SessionStatusCandidatesReady {
		t.Fatalf("expected candidates_ready, got %s", session.Status)
	}
	for _, store := range router.stores {
		if store.reads.Load() != 1 {
			t.Fatalf("expected one availability read per participant, got %d", store.reads.Load())
		}
	}
	for _, cand := range session.Candidates {
		if cand.Start.Before(start.Add(time.Hour)) {
			t.Fatalf("candidate %v overlaps a participant's busy hour", cand.Start)
		}
	}
	if !router.stores["usr_a"].saved {
		t.Fatal("expected session persisted in creator's store")
	}

	entry, ok := registry.entries[session.ID]
	if !ok {
		t.Fatal("expected registry entry")
	}
	if entry.CreatorUserID != "usr_a" || len(entry.ParticipantUserIDs) != 3 {
		t.Fatalf("unexpected registry entry %+v", entry)
	}

	for userID, store := range router.stores {
		if len(store.holdsCreated) != len(session.Candidates) {
			t.Fatalf("expected %d holds for %s, got %d", len(session.Candidates), userID, len(store.holdsCreated))
		}
	}
}

func TestGroupService_CreateGroupSession_HonorsMaxCandidates(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	svc := newTestGroupService(router, newRegistryStub(), 0, t)

	input := groupInput("usr_a", "usr_b")
	input.MaxCandidates = 1

	session, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionParams{
		Principal: Principal{UserID: "usr_a"},
		Input:     input,
	})
	if err != nil {
		t.Fatalf("CreateGroupSession returned error: %v", err)
	}
	if len(session.Candidates) != 1 {
		t.Fatalf("expected the list capped at 1, got %d", len(session.Candidates))
	}
}

func TestGroupService_CreateGroupSession_NoMutualSlotStaysGathering(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	start, end := morningWindow()
	router.stores["usr_b"].availability = availability.SubjectAvailability{
		HardBlocks: []interval.Span{{Start: start, End: end}},
	}
	registry := newRegistryStub()
	svc := newTestGroupService(router, registry, 30*time.Minute, t)

	session, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionParams{
		Principal: Principal{UserID: "usr_a"},
		Input:     groupInput("usr_a", "usr_b"),
	})
	if err != nil {
		t.Fatalf("CreateGroupSession returned error: %v", err)
	}
	if session.Status != SessionStatusGathering {
		t.Fatalf("expected gathering, got %s", session.Status)
	}
	if len(session.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(session.Candidates))
	}
	if registry.entries[session.ID].Status != SessionStatusGathering {
		t.Fatalf("expected registry entry gathering, got %s", registry.entries[session.ID].Status)
	}
	for userID, store := range router.stores {
		if len(store.holdsCreated) != 0 {
			t.Fatalf("expected no holds in %s's store, got %d", userID, len(store.holdsCreated))
		}
	}
}

func TestGroupService_CreateGroupSession_ParticipantReadFailureAborts(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	upstream := errors.New("store offline")
	router.stores["usr_b"].availabilityErr = upstream
	registry := newRegistryStub()
	svc := newTestGroupService(router, registry, 0, t)

	_, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionParams{
		Principal: Principal{UserID: "usr_a"},
		Input:     groupInput("usr_a", "usr_b"),
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if router.stores["usr_a"].saved {
		t.Fatal("expected no session persisted after fan-out failure")
	}
	if len(registry.entries) != 0 {
		t.Fatal("expected no registry entry after fan-out failure")
	}
}

func createdGroupSession(t *testing.T, router *routerStub, registry *registryStub) GroupSession {
	t.Helper()
	svc := newTestGroupService(router, registry, 30*time.Minute, t)
	session, err := svc.CreateGroupSession(context.Background(), CreateGroupSessionParams{
		Principal: Principal{UserID: "usr_a"},
		Input:     groupInput("usr_a", "usr_b"),
	})
	if err != nil {
		t.Fatalf("CreateGroupSession returned error: %v", err)
	}
	if len(session.Candidates) == 0 {
		t.Fatal("expected candidates")
	}
	return session
}

func TestGroupService_GetGroupSession_AnyParticipantCanRead(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	registry := newRegistryStub()
	session := createdGroupSession(t, router, registry)
	svc := newTestGroupService(router, registry, 0, t)

	got, err := svc.GetGroupSession(context.Background(), GroupSessionRequestParams{
		Principal: Principal{UserID: "usr_b"},
		SessionID: session.ID,
	})
	if err != nil {
		t.Fatalf("GetGroupSession returned error: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("expected %s, got %s", session.ID, got.ID)
	}

	_, err = svc.GetGroupSession(context.Background(), GroupSessionRequestParams{
		Principal: Principal{UserID: "usr_outsider"},
		SessionID: session.ID,
	})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	_, err = svc.GetGroupSession(context.Background(), GroupSessionRequestParams{
		Principal: Principal{UserID: "usr_a"},
		SessionID: "grp_missing",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupService_CommitGroupCandidate_WritesEveryCalendar(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	registry := newRegistryStub()
	session := createdGroupSession(t, router, registry)
	svc := newTestGroupService(router, registry, 30*time.Minute, t)

	result, err := svc.CommitGroupCandidate(context.Background(), CommitGroupCandidateParams{
		Principal:   Principal{UserID: "usr_b"},
		SessionID:   session.ID,
		CandidateID: session.Candidates[0].ID,
	})
	if err != nil {
		t.Fatalf("CommitGroupCandidate returned error: %v", err)
	}

	if len(result.EventIDs) != 2 {
		t.Fatalf("expected an event per participant, got %v", result.EventIDs)
	}
	for userID, store := range router.stores {
		if len(store.events) != 1 {
			t.Fatalf("expected one event in %s's store, got %d", userID, len(store.events))
		}
		if store.events[0].Title != "Team offsite planning" {
			t.Fatalf("unexpected event title %q", store.events[0].Title)
		}
		if len(store.released) == 0 {
			t.Fatalf("expected holds released in %s's store", userID)
		}
	}
	if registry.entries[session.ID].Status != SessionStatusCommitted {
		t.Fatal("expected registry marked committed")
	}
}

func TestGroupService_CommitGroupCandidate_SecondCommitFails(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	registry := newRegistryStub()
	session := createdGroupSession(t, router, registry)
	svc := newTestGroupService(router, registry, 0, t)

	params := CommitGroupCandidateParams{
		Principal:   Principal{UserID: "usr_a"},
		SessionID:   session.ID,
		CandidateID: session.Candidates[0].ID,
	}
	if _, err := svc.CommitGroupCandidate(context.Background(), params); err != nil {
		t.Fatalf("first commit returned error: %v", err)
	}

	_, err := svc.CommitGroupCandidate(context.Background(), params)
	if !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}
}

func TestGroupService_CommitGroupCandidate_GuardLossMapsToAlreadyCommitted(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	registry := newRegistryStub()
	session := createdGroupSession(t, router, registry)
	router.stores["usr_a"].statusErr = persistence.ErrConstraintViolation
	svc := newTestGroupService(router, registry, 0, t)

	_, err := svc.CommitGroupCandidate(context.Background(), CommitGroupCandidateParams{
		Principal:   Principal{UserID: "usr_a"},
		SessionID:   session.ID,
		CandidateID: session.Candidates[0].ID,
	})
	if !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}
	if len(router.stores["usr_b"].events) != 0 {
		t.Fatal("expected no event writes after losing the commit guard")
	}
}

func TestGroupService_CommitGroupCandidate_PartialFailure(t *testing.T) {
	t.Parallel()

	router := freeParticipants("usr_a", "usr_b")
	registry := newRegistryStub()
	session := createdGroupSession(t, router, registry)
	router.stores["usr_b"].eventErr = errors.New("store write failed")
	svc := newTestGroupService(router, registry, 30*time.Minute, t)

	_, err := svc.CommitGroupCandidate(context.Background(), CommitGroupCandidateParams{
		Principal:   Principal{UserID: "usr_a"},
		SessionID:   session.ID,
		CandidateID: session.Candidates[0].ID,
	})

	var pErr *PartialCommitError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PartialCommitError, got %v", err)
	}
	if pErr.FailedUserID != "usr_b" {
		t.Fatalf("expected failure on usr_b, got %s", pErr.FailedUserID)
	}
	if _, ok := pErr.Written["usr_a"]; !ok {
		t.Fatalf("expected usr_a listed as written, got %v", pErr.Written)
	}
	// The decision stands even when fan-out writes fail; events are not rolled back.
	if len(router.stores["usr_a"].events) != 1 {
		t.Fatal("expected usr_a's event to remain")
	}
	if router.stores["usr_a"].session.Status != SessionStatusCommitted {
		t.Fatal("expected session to remain committed")
	}
	for userID, store := range router.stores {
		if len(store.released) == 0 {
			t.Fatalf("expected holds released in %s's store after partial failure", userID)
		}
	}
}
