package application

import (
	"testing"
	"time"
)

func TestHoldManager_BuildHolds(t *testing.T) {
	t.Parallel()

	manager := NewHoldManager(sequentialIDs("hold"))
	createdAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	candidates := []Candidate{
		{ID: "cnd_1", SessionID: "ses_1", Start: createdAt.Add(time.Hour), End: createdAt.Add(2 * time.Hour)},
		{ID: "cnd_2", SessionID: "ses_1", Start: createdAt.Add(3 * time.Hour), End: createdAt.Add(4 * time.Hour)},
	}

	holds := manager.BuildHolds("ses_1", candidates, []string{"acct_a", "acct_b"}, 5*time.Minute, createdAt)

	if len(holds) != 4 {
		t.Fatalf("expected 4 holds, got %d", len(holds))
	}
	seen := make(map[string]bool, len(holds))
	for _, hold := range holds {
		if hold.SessionID != "ses_1" {
			t.Fatalf("unexpected session id %s", hold.SessionID)
		}
		if hold.Status != HoldStatusHeld {
			t.Fatalf("unexpected status %s", hold.Status)
		}
		if !hold.ExpiresAt.Equal(createdAt.Add(5 * time.Minute)) {
			t.Fatalf("unexpected expiry %v", hold.ExpiresAt)
		}
		if seen[hold.ID] {
			t.Fatalf("duplicate hold id %s", hold.ID)
		}
		seen[hold.ID] = true
	}
}

func TestHoldManager_BuildHolds_ZeroTimeoutYieldsNone(t *testing.T) {
	t.Parallel()

	manager := NewHoldManager(nil)
	candidates := []Candidate{{ID: "cnd_1", SessionID: "ses_1"}}

	if holds := manager.BuildHolds("ses_1", candidates, []string{"acct_a"}, 0, time.Now()); holds != nil {
		t.Fatalf("expected nil holds for zero timeout, got %v", holds)
	}
	if holds := manager.BuildHolds("ses_1", candidates, []string{"acct_a"}, -time.Minute, time.Now()); holds != nil {
		t.Fatalf("expected nil holds for negative timeout, got %v", holds)
	}
}
