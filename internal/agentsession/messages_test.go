package agentsession

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEvent_UtteranceCarriers(t *testing.T) {
	cases := []struct {
		raw  string
		role string
		text string
	}{
		{`{"type":"ConversationText","role":"user","content":"hello"}`, "user", "hello"},
		{`{"type":"UserTranscript","speaker":"User","text":"hi there"}`, "user", "hi there"},
		{`{"type":"Transcript","role":"Assistant","transcript":"welcome"}`, "assistant", "welcome"},
	}
	for _, c := range cases {
		var evt Event
		if err := json.Unmarshal([]byte(c.raw), &evt); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !evt.IsTranscript() {
			t.Fatalf("expected transcript event for %s", c.raw)
		}
		if got := evt.SpeakerRole(); got != c.role {
			t.Fatalf("role = %q, want %q", got, c.role)
		}
		if got := evt.UtteranceText(); got != c.text {
			t.Fatalf("text = %q, want %q", got, c.text)
		}
	}
}

func TestEvent_ControlEventsAreNotTranscripts(t *testing.T) {
	for _, typ := range []string{EventWelcome, EventSettingsApplied, EventUserStartedSpeaking, EventAgentError} {
		evt := Event{Type: typ}
		if evt.IsTranscript() {
			t.Fatalf("%s must not be a transcript event", typ)
		}
	}
}

func TestSettings_WireShape(t *testing.T) {
	s := Settings{
		Type: "Settings",
		Audio: AudioSettings{
			Input:  AudioFormat{Encoding: "mulaw", SampleRate: 8000},
			Output: AudioFormat{Encoding: "mulaw", SampleRate: 8000, Container: "none"},
		},
		Agent: AgentSettings{
			Language: "en",
			Greeting: "hi",
			Listen:   ListenSettings{Provider: ListenProvider{Type: "deepgram", Model: "nova-2", SmartFormat: true}},
			Think:    ThinkSettings{Provider: ThinkProvider{Type: "open_ai", Model: "gpt-4o-mini"}, Prompt: "be brief"},
			Speak:    SpeakSettings{Provider: SpeakProvider{Type: "deepgram", Model: "aura-2-thalia-en"}},
		},
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, want := range []string{
		`"sample_rate":8000`, `"container":"none"`, `"smart_format":true`,
		`"greeting":"hi"`, `"prompt":"be brief"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("settings json missing %s: %s", want, data)
		}
	}
}

func TestSanitizePrompt(t *testing.T) {
	long := strings.Repeat("collect the caller details politely. ", 20)
	got := SanitizePrompt(long)
	if len(got) > maxPromptLen {
		t.Fatalf("expected prompt capped at %d, got %d", maxPromptLen, len(got))
	}

	messy := "ask  the\tcaller\nfor their full name and their callback number"
	got = SanitizePrompt(messy)
	if strings.ContainsAny(got, "\t\n") || strings.Contains(got, "  ") {
		t.Fatalf("expected whitespace collapsed, got %q", got)
	}

	if got := SanitizePrompt("hi"); got != fallbackPrompt {
		t.Fatalf("expected fallback for degenerate prompt, got %q", got)
	}
}
