package finalize

import (
	"context"
	"testing"
	"time"

	"github.com/ErikRobinson94/caseconnect/internal/intake"
)

func TestFinalize_SeedOnlyWithoutAPIKey(t *testing.T) {
	n := NewNormalizer("", "")
	rec := intake.Record{
		ClientType: "new",
		FullName:   "John Smith",
		Phone:      "+15551234567",
		Incident:   "rear-ended by a truck",
	}
	meta := CallMeta{CallSID: "CA1", StartedAt: time.Unix(1700000000, 0), EndedAt: time.Unix(1700000100, 0)}

	out, err := n.Finalize(context.Background(), rec, []string{"I was rear-ended by a truck"}, meta)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if out.Fields[KeyPhone] != "+15551234567" {
		t.Fatalf("expected seeded phone, got %q", out.Fields[KeyPhone])
	}
	if out.Confidence[KeyPhone] != 0.85 {
		t.Fatalf("expected phone base confidence, got %v", out.Confidence[KeyPhone])
	}
	if out.Confidence[KeyIncident] != 0.55 {
		t.Fatalf("expected incident base confidence, got %v", out.Confidence[KeyIncident])
	}
	if out.Meta.CallSID != "CA1" || out.Meta.TranscriptHash == "" {
		t.Fatalf("expected call meta stamped: %+v", out.Meta)
	}
	if _, ok := out.Fields[KeyEmail]; ok {
		t.Fatalf("expected absent fields omitted")
	}
}

func TestMerge_PrefersHigherConfidenceWithLLMTieBias(t *testing.T) {
	seedFields := map[string]string{
		KeyFullName: "Jon Smith",
		KeyPhone:    "+15551234567",
		KeyDate:     "yesterday",
	}
	seedConf := map[string]float64{KeyFullName: 0.6, KeyPhone: 0.85, KeyDate: 0.7}
	llm := &llmOutput{
		FullName:     "John Smith",
		Phone:        "+15550000000",
		IncidentDate: "06/05/2025",
		Email:        "john@gmail.com",
		Confidence: map[string]float64{
			KeyFullName: 0.6,  // tie: LLM wins
			KeyPhone:    0.3,  // clearly lower: seed wins
			KeyDate:     0.9,  // higher: LLM wins
			KeyEmail:    0.8,  // LLM only
		},
		SourceUtterances: map[string][]string{
			KeyFullName: {"my name is John Smith"},
		},
	}

	fields, conf, sources := merge(seedFields, seedConf, llm)

	if fields[KeyFullName] != "John Smith" {
		t.Fatalf("expected LLM name on tie, got %q", fields[KeyFullName])
	}
	if fields[KeyPhone] != "+15551234567" {
		t.Fatalf("expected seed phone kept, got %q", fields[KeyPhone])
	}
	if conf[KeyPhone] != 0.85 {
		t.Fatalf("expected seed phone confidence kept, got %v", conf[KeyPhone])
	}
	if fields[KeyDate] != "06/05/2025" {
		t.Fatalf("expected LLM date, got %q", fields[KeyDate])
	}
	if fields[KeyEmail] != "john@gmail.com" {
		t.Fatalf("expected LLM-only email adopted, got %q", fields[KeyEmail])
	}
	if len(sources[KeyFullName]) != 1 {
		t.Fatalf("expected source utterances carried, got %v", sources[KeyFullName])
	}
}

func TestValidate(t *testing.T) {
	good := Result{
		Fields: map[string]string{
			KeyClientType: "new",
			KeyFullName:   "John Smith",
			KeyPhone:      "+15551234567",
		},
		Confidence: map[string]float64{KeyPhone: 0.85},
		Meta:       Meta{TranscriptHash: "abc"},
	}
	if errs := Validate(good); len(errs) != 0 {
		t.Fatalf("expected valid result, got %v", errs)
	}

	bad := Result{
		Fields:     map[string]string{KeyClientType: "maybe"},
		Confidence: map[string]float64{KeyPhone: 1.5},
		Meta:       Meta{},
	}
	errs := Validate(bad)
	if len(errs) < 4 {
		t.Fatalf("expected client type, contact, name, confidence, and hash errors, got %v", errs)
	}
}

func TestCheckpoint_HashStableAcrossCalls(t *testing.T) {
	rec := intake.Record{FullName: "Jane Doe"}
	lines := []string{"a", "b"}
	first := Checkpoint(rec, lines)
	second := Checkpoint(rec, lines)
	if first.Meta.TranscriptHash != second.Meta.TranscriptHash {
		t.Fatalf("expected deterministic transcript hash")
	}
	if first.Meta.Source != "live-call" {
		t.Fatalf("expected live-call source, got %q", first.Meta.Source)
	}
	if Checkpoint(rec, []string{"a", "c"}).Meta.TranscriptHash == first.Meta.TranscriptHash {
		t.Fatalf("expected different transcripts to hash differently")
	}
}
