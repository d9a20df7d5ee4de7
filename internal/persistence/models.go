package persistence

import "time"

// Event is a canonical calendar event persisted in a user's store. Busy
// interval reads project only Start/End; Title stays behind the repository
// boundary.
type Event struct {
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

// Constraint is a stored scheduling rule. Config carries the kind-specific
// JSON document (working-hours windows, etc).
type Constraint struct {
	ID         string
	SubjectID  string
	Kind       string
	Config     string
	ActiveFrom *time.Time
	ActiveTo   *time.Time
	CreatedAt  time.Time
}

// Milestone is a stored relationship milestone.
type Milestone struct {
	ID             string
	RelationshipID string
	Kind           string
	Date           time.Time
	RecursAnnually bool
	Note           *string
	CreatedAt      time.Time
}

// Session is a stored single-user scheduling session.
type Session struct {
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
	Status               string
	CommittedCandidateID *string
	CommittedEventID     *string
	CreatedAt            time.Time
}

// Candidate is a stored, immutable meeting-time proposal.
type Candidate struct {
	ID          string
	SessionID   string
	Start       time.Time
	End         time.Time
	Score       float64
	Explanation string
}

// Hold is a stored tentative reservation of a candidate interval for one
// subject.
type Hold struct {
	ID         string
	SessionID  string
	SubjectID  string
	Start      time.Time
	End        time.Time
	Status     string
	ExpiresAt  time.Time
	ReleasedAt *time.Time
}

// GroupSession is a stored multi-participant session, persisted in its
// creator's store.
type GroupSession struct {
	ID                   string
	CreatorUserID        string
	ParticipantUserIDs   []string
	Title                string
	DurationMinutes      int
	WindowStart          time.Time
	WindowEnd            time.Time
	Status               string
	CommittedCandidateID *string
	CreatedAt            time.Time
}

// GroupRegistryEntry is the cross-user discovery row kept in the shared
// store, independent of which per-user store authored the session.
type GroupRegistryEntry struct {
	SessionID          string
	CreatorUserID      string
	ParticipantUserIDs []string
	Title              string
	Status             string
	UpdatedAt          time.Time
}

// User is an API principal stored in the shared store.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthSession is a bearer-token API session stored in the shared store.
type AuthSession struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
