package application

import (
	"time"

	"github.com/example/calendar-federation/internal/identifier"
)

// HoldManager derives tentative reservations from a generated candidate list.
// Hold rows are created alongside the session; releasing them is the hold
// store's concern.
type HoldManager struct {
	idGenerator func(prefix string) string
}

// NewHoldManager wires the identifier source for hold rows.
func NewHoldManager(idGenerator func(prefix string) string) HoldManager {
	if idGenerator == nil {
		idGenerator = identifier.New
	}
	return HoldManager{idGenerator: idGenerator}
}

// BuildHolds creates one hold per candidate and subject, all expiring at
// createdAt plus the timeout. A zero or negative timeout disables holds
// entirely and yields nil.
func (m HoldManager) BuildHolds(sessionID string, candidates []Candidate, subjectIDs []string, timeout time.Duration, createdAt time.Time) []Hold {
	if timeout <= 0 || len(candidates) == 0 || len(subjectIDs) == 0 {
		return nil
	}

	expiresAt := createdAt.Add(timeout)
	holds := make([]Hold, 0, len(candidates)*len(subjectIDs))
	for _, cand := range candidates {
		for _, subjectID := range subjectIDs {
			holds = append(holds, Hold{
				ID:        m.idGenerator(identifier.PrefixHold),
				SessionID: sessionID,
				SubjectID: subjectID,
				Start:     cand.Start,
				End:       cand.End,
				Status:    HoldStatusHeld,
				ExpiresAt: expiresAt,
			})
		}
	}
	return holds
}
