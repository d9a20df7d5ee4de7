package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// SessionStatus is the lifecycle state of a scheduling session.
type SessionStatus string

const (
	// SessionStatusOpen marks a session that has been created but not yet populated with candidates.
	SessionStatusOpen SessionStatus = "open"
	// SessionStatusGathering marks a group session whose candidate search has
	// not yet produced a mutually free slot. The single-user lifecycle uses
	// open for the same stage.
	SessionStatusGathering SessionStatus = "gathering"
	// SessionStatusCandidatesReady marks a session whose candidate list has been generated.
	SessionStatusCandidatesReady SessionStatus = "candidates_ready"
	// SessionStatusCommitted marks a session whose chosen candidate has become a calendar event.
	SessionStatusCommitted SessionStatus = "committed"
	// SessionStatusCancelled marks a session abandoned before commit.
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCommitted || s == SessionStatusCancelled
}

// HoldStatus is the lifecycle state of a tentative reservation.
type HoldStatus string

const (
	// HoldStatusHeld marks an active reservation.
	HoldStatusHeld HoldStatus = "held"
	// HoldStatusReleased marks a reservation released by a commit, a cancel
	// or the expiry sweep.
	HoldStatusReleased HoldStatus = "released"
)

// SessionInput captures caller provided scheduling session fields.
type SessionInput struct {
	Title              string
	DurationMinutes    int
	WindowStart        time.Time
	WindowEnd          time.Time
	RequiredAccountIDs []string
	MaxCandidates      int
	HoldTimeoutMs      int64
	TargetCalendarID   string
}

// SchedulingSession represents a persisted single-user scheduling session.
type SchedulingSession struct {
	ID                   string
	UserID               string
	Title                string
	DurationMinutes      int
	WindowStart          time.Time
	WindowEnd            time.Time
	RequiredAccountIDs   []string
	MaxCandidates        int
	HoldTimeoutMs        int64
	TargetCalendarID     string
	Status               SessionStatus
	Candidates           []Candidate
	CommittedCandidateID *string
	CommittedEventID     *string
	CreatedAt            time.Time
}

// Candidate is an immutable ranked meeting-time proposal belonging to a session.
type Candidate struct {
	ID          string
	SessionID   string
	Start       time.Time
	End         time.Time
	Score       float64
	Explanation string
}

// Hold is a tentative reservation of a candidate interval for one subject.
type Hold struct {
	ID        string
	SessionID string
	SubjectID string
	Start     time.Time
	End       time.Time
	Status    HoldStatus
	ExpiresAt time.Time
}

// EventInput captures the fields written to a calendar when a candidate is committed.
type EventInput struct {
	Title        string
	Start        time.Time
	End          time.Time
	Source       string
	Status       string
	Transparency string
}

const (
	// EventSourceSystem marks events written by the scheduler itself.
	EventSourceSystem = "system"
	// EventSourceNative marks events imported from a user's own calendar.
	EventSourceNative = "native"
	// EventStatusConfirmed marks a firm event.
	EventStatusConfirmed = "confirmed"
	// EventStatusTentative marks an unconfirmed event that still blocks time.
	EventStatusTentative = "tentative"
	// EventStatusCancelled marks an event that no longer blocks time.
	EventStatusCancelled = "cancelled"
	// EventTransparencyOpaque marks an event that blocks availability.
	EventTransparencyOpaque = "opaque"
	// EventTransparencyTransparent marks an event that never blocks availability.
	EventTransparencyTransparent = "transparent"
)

// CalendarEvent is a canonical event in a user's store.
type CalendarEvent struct {
	ID           string
	CalendarID   string
	Title        string
	Start        time.Time
	End          time.Time
	Source       string
	Status       string
	Transparency string
	CreatedAt    time.Time
}

// EventImportInput captures caller provided event fields. Status and
// transparency default to confirmed/opaque when empty.
type EventImportInput struct {
	CalendarID   string
	Title        string
	Start        time.Time
	End          time.Time
	Status       string
	Transparency string
}

// ImportEventParams wraps the data required to import an event.
type ImportEventParams struct {
	Principal Principal
	Input     EventImportInput
}

// EventRequestParams identifies an event for read operations.
type EventRequestParams struct {
	Principal Principal
	EventID   string
}

// WorkingHoursConfig is the caller-facing working_hours constraint payload.
// Weekdays use 0 for Sunday through 6 for Saturday; minutes count from local
// midnight.
type WorkingHoursConfig struct {
	Weekdays    []int
	StartMinute int
	EndMinute   int
	Timezone    string
}

// SchedulingConstraint is a stored scheduling rule in a user's store.
type SchedulingConstraint struct {
	ID           string
	SubjectID    string
	Kind         string
	WorkingHours *WorkingHoursConfig
	ActiveFrom   *time.Time
	ActiveTo     *time.Time
	CreatedAt    time.Time
}

// ConstraintInput captures caller provided constraint fields.
type ConstraintInput struct {
	SubjectID    string
	Kind         string
	WorkingHours *WorkingHoursConfig
	ActiveFrom   *time.Time
	ActiveTo     *time.Time
}

// CreateConstraintParams wraps the data required to create a constraint.
type CreateConstraintParams struct {
	Principal Principal
	Input     ConstraintInput
}

// ConstraintRequestParams identifies constraints for read or delete operations.
type ConstraintRequestParams struct {
	Principal    Principal
	SubjectID    string
	ConstraintID string
}

// RelationshipMilestone is a stored milestone whose date blocks scheduling.
type RelationshipMilestone struct {
	ID             string
	RelationshipID string
	Kind           string
	Date           time.Time
	RecursAnnually bool
	Note           string
	CreatedAt      time.Time
}

// MilestoneInput captures caller provided milestone fields.
type MilestoneInput struct {
	RelationshipID string
	Kind           string
	Date           time.Time
	RecursAnnually bool
	Note           string
}

// CreateMilestoneParams wraps the data required to create a milestone.
type CreateMilestoneParams struct {
	Principal Principal
	Input     MilestoneInput
}

// MilestoneRequestParams identifies a milestone for delete operations.
type MilestoneRequestParams struct {
	Principal   Principal
	MilestoneID string
}

// CreateSessionParams wraps the data required to create a scheduling session.
type CreateSessionParams struct {
	Principal Principal
	Input     SessionInput
}

// SessionRequestParams identifies a session for read or lifecycle operations.
type SessionRequestParams struct {
	Principal Principal
	SessionID string
}

// CommitCandidateParams wraps the data required to commit a candidate.
type CommitCandidateParams struct {
	Principal   Principal
	SessionID   string
	CandidateID string
}

// CommitResult captures the outcome of a successful commit.
type CommitResult struct {
	Session SchedulingSession
	EventID string
}

// GroupSessionInput captures caller provided group session fields.
// MaxCandidates caps the generated list; zero means the default cap.
type GroupSessionInput struct {
	Title              string
	DurationMinutes    int
	WindowStart        time.Time
	WindowEnd          time.Time
	ParticipantUserIDs []string
	MaxCandidates      int
}

// GroupSession represents a persisted multi-participant scheduling session.
// The record lives in its creator's store; discovery goes through the registry.
type GroupSession struct {
	ID                   string
	CreatorUserID        string
	ParticipantUserIDs   []string
	Title                string
	DurationMinutes      int
	WindowStart          time.Time
	WindowEnd            time.Time
	Status               SessionStatus
	Candidates           []Candidate
	CommittedCandidateID *string
	CreatedAt            time.Time
}

// GroupRegistryEntry is the cross-user discovery row for a group session.
type GroupRegistryEntry struct {
	SessionID          string
	CreatorUserID      string
	ParticipantUserIDs []string
	Title              string
	Status             SessionStatus
	UpdatedAt          time.Time
}

// CreateGroupSessionParams wraps the data required to create a group session.
type CreateGroupSessionParams struct {
	Principal Principal
	Input     GroupSessionInput
}

// GroupSessionRequestParams identifies a group session for read operations.
type GroupSessionRequestParams struct {
	Principal Principal
	SessionID string
}

// CommitGroupCandidateParams wraps the data required to commit a group candidate.
type CommitGroupCandidateParams struct {
	Principal   Principal
	SessionID   string
	CandidateID string
}

// GroupCommitResult captures the outcome of a group commit. EventIDs maps each
// participant to the event written into their calendar.
type GroupCommitResult struct {
	Session  GroupSession
	EventIDs map[string]string
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// User represents an API principal exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// AuthSession represents a bearer-token API session issued to a user.
type AuthSession struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session AuthSession
}
