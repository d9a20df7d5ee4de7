package testfixtures

import "testing"

func TestIDGenerator_CountsPerPrefix(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator()
	if got := gen.Next("ses"); got != "ses_1" {
		t.Fatalf("expected ses_1, got %q", got)
	}
	if got := gen.Next("evt"); got != "evt_1" {
		t.Fatalf("expected evt_1, got %q", got)
	}
	if got := gen.Next("ses"); got != "ses_2" {
		t.Fatalf("expected ses_2, got %q", got)
	}
}

func TestIDGenerator_SequenceFuncStaysBound(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator()
	tokens := gen.SequenceFunc("tok")
	if got := tokens(); got != "tok_1" {
		t.Fatalf("expected tok_1, got %q", got)
	}
	if got := tokens(); got != "tok_2" {
		t.Fatalf("expected tok_2, got %q", got)
	}
}

func TestIDGenerator_ResetClearsCounters(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator()
	gen.Next("ses")
	gen.Reset()
	if got := gen.Next("ses"); got != "ses_1" {
		t.Fatalf("expected ses_1 after reset, got %q", got)
	}
}
