package intake

import "testing"

func TestShadow_DedupeAndRoleFilter(t *testing.T) {
	s := NewShadow(ShadowLogSummary)

	if !s.OnUtterance("user", "I was in a car accident") {
		t.Fatalf("expected first utterance fresh")
	}
	if s.OnUtterance("user", "I was in a car accident") {
		t.Fatalf("expected duplicate dropped")
	}
	if s.OnUtterance("assistant", "what is your name?") {
		t.Fatalf("expected non-user utterance dropped")
	}
	if s.OnUtterance("user", "   ") {
		t.Fatalf("expected blank utterance dropped")
	}

	if got := s.Transcripts(); len(got) != 1 {
		t.Fatalf("expected 1 transcript line, got %d", len(got))
	}
}

func TestShadow_RingEviction(t *testing.T) {
	s := NewShadow(ShadowLogOff)
	first := "line zero"
	s.OnUtterance("user", first)
	for i := 0; i < recentRingSize; i++ {
		s.OnUtterance("user", string(rune('a'+i%26))+" filler line")
	}
	// The first line has been evicted from the ring, so it reads as fresh.
	if !s.OnUtterance("user", first) {
		t.Fatalf("expected evicted line to be fresh again")
	}
}

func TestShadow_Extraction(t *testing.T) {
	s := NewShadow(ShadowLogFields)
	s.OnUtterance("user", "I was in a car accident")
	s.OnUtterance("user", "my name is John Smith")
	s.OnUtterance("user", "555-123-4567")
	s.OnUtterance("user", "john at gmail dot com")
	s.OnUtterance("user", "it was yesterday")
	s.OnUtterance("user", "in downtown Phoenix")

	r := s.Record()
	if r.ClientType != "new" {
		t.Fatalf("expected client_type new, got %q", r.ClientType)
	}
	if r.FullName != "John Smith" {
		t.Fatalf("expected name, got %q", r.FullName)
	}
	if r.Phone != "+15551234567" {
		t.Fatalf("expected canonical phone, got %q", r.Phone)
	}
	if r.Email != "john@gmail.com" {
		t.Fatalf("expected email, got %q", r.Email)
	}
	if r.Date != "yesterday" {
		t.Fatalf("expected date, got %q", r.Date)
	}
	if r.Location != "Downtown Phoenix" {
		t.Fatalf("expected location, got %q", r.Location)
	}

	// First capture wins; later candidates must not overwrite.
	s.OnUtterance("user", "actually 555-999-0000")
	if got := s.Record().Phone; got != "+15551234567" {
		t.Fatalf("expected phone unchanged, got %q", got)
	}
}

func TestShadow_OffModeSkipsExtraction(t *testing.T) {
	s := NewShadow(ShadowLogOff)
	if !s.OnUtterance("user", "my name is John Smith") {
		t.Fatalf("expected fresh utterance in off mode")
	}
	if got := s.Record().FullName; got != "" {
		t.Fatalf("expected no extraction in off mode, got %q", got)
	}
	if got := s.Transcripts(); len(got) != 1 {
		t.Fatalf("expected transcript retained in off mode")
	}
}
