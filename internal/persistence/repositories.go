package persistence

import (
	"context"
	"time"

	"github.com/example/calendar-federation/internal/interval"
)

// EventRepository stores canonical calendar events for one user's store.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	// ListBusyIntervals projects opaque confirmed/tentative events inside the
	// window down to bare intervals. Titles are deliberately unreachable
	// through this path.
	ListBusyIntervals(ctx context.Context, calendarID string, window interval.Span) ([]interval.Span, error)
}

// ConstraintRepository stores scheduling constraints for one user's store.
type ConstraintRepository interface {
	CreateConstraint(ctx context.Context, constraint Constraint) error
	ListConstraints(ctx context.Context, subjectID string) ([]Constraint, error)
	DeleteConstraint(ctx context.Context, id string) error
}

// MilestoneRepository stores relationship milestones for one user's store.
type MilestoneRepository interface {
	CreateMilestone(ctx context.Context, milestone Milestone) error
	ListMilestones(ctx context.Context) ([]Milestone, error)
	DeleteMilestone(ctx context.Context, id string) error
}

// SessionRepository stores scheduling sessions together with their
// candidates and holds.
type SessionRepository interface {
	// CreateSession persists the session, its candidates and its holds in a
	// single transaction.
	CreateSession(ctx context.Context, session Session, candidates []Candidate, holds []Hold) error
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSessionStatus(ctx context.Context, id, status string, committedCandidateID, committedEventID *string) error
	// RecordCommittedEvent stores the calendar event id on an already
	// committed session.
	RecordCommittedEvent(ctx context.Context, id, eventID string) error
	ListCandidates(ctx context.Context, sessionID string) ([]Candidate, error)
	GetCandidate(ctx context.Context, sessionID, candidateID string) (Candidate, error)
}

// HoldRepository stores tentative reservations. Holds for group sessions are
// created in each participant's own store.
type HoldRepository interface {
	CreateHolds(ctx context.Context, holds []Hold) error
	ListHoldsBySession(ctx context.Context, sessionID string) ([]Hold, error)
	// ReleaseHoldsForSession transitions every non-released hold of the
	// session to released. Idempotent.
	ReleaseHoldsForSession(ctx context.Context, sessionID string, at time.Time) error
	// ReleaseExpiredHolds releases held holds whose expiry has passed and
	// reports how many were transitioned.
	ReleaseExpiredHolds(ctx context.Context, before time.Time) (int64, error)
}

// GroupSessionRepository stores group sessions in the creator's store.
type GroupSessionRepository interface {
	CreateGroupSession(ctx context.Context, session GroupSession, candidates []Candidate) error
	GetGroupSession(ctx context.Context, id string) (GroupSession, error)
	UpdateGroupSessionStatus(ctx context.Context, id, status string, committedCandidateID *string) error
	ListGroupCandidates(ctx context.Context, sessionID string) ([]Candidate, error)
	GetGroupCandidate(ctx context.Context, sessionID, candidateID string) (Candidate, error)
}

// GroupRegistry is the durable cross-user index that lets any participant
// discover a group session regardless of data locality.
type GroupRegistry interface {
	SaveEntry(ctx context.Context, entry GroupRegistryEntry) error
	GetEntry(ctx context.Context, sessionID string) (GroupRegistryEntry, error)
	UpdateEntryStatus(ctx context.Context, sessionID, status string, at time.Time) error
}

// UserRepository stores API principals in the shared store.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// AuthSessionRepository stores bearer-token API sessions in the shared store.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetAuthSessionByToken(ctx context.Context, token string) (AuthSession, error)
	RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}
