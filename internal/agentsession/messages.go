// Package agentsession implements the hosted conversational-speech leg: a
// WebSocket client for the Deepgram Voice Agent converse endpoint, the
// one-time settings handshake, keep-alive, and event decoding.
package agentsession

import "strings"

// Inbound event types.
const (
	EventWelcome             = "Welcome"
	EventSettingsApplied     = "SettingsApplied"
	EventUserStartedSpeaking = "UserStartedSpeaking"
	EventConversationText    = "ConversationText"
	EventHistory             = "History"
	EventUserTranscript      = "UserTranscript"
	EventUserResponse        = "UserResponse"
	EventTranscript          = "Transcript"
	EventAgentWarning        = "AgentWarning"
	EventAgentError          = "AgentError"
	EventError               = "Error"
)

// Settings is the one-time session configuration. No audio may be sent
// before the peer acknowledges it with SettingsApplied.
type Settings struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio"`
	Agent AgentSettings `json:"agent"`
}

// AudioSettings declares codec and rate for both directions.
type AudioSettings struct {
	Input  AudioFormat `json:"input"`
	Output AudioFormat `json:"output"`
}

// AudioFormat is one direction's codec declaration.
type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container,omitempty"`
}

// AgentSettings selects the models and supplies the greeting and prompt.
type AgentSettings struct {
	Language string         `json:"language"`
	Greeting string         `json:"greeting"`
	Listen   ListenSettings `json:"listen"`
	Think    ThinkSettings  `json:"think"`
	Speak    SpeakSettings  `json:"speak"`
}

// ListenSettings selects the speech-recognition provider.
type ListenSettings struct {
	Provider ListenProvider `json:"provider"`
}

// ListenProvider names the STT model.
type ListenProvider struct {
	Type        string `json:"type"`
	Model       string `json:"model"`
	SmartFormat bool   `json:"smart_format"`
}

// ThinkSettings selects the language model and its system prompt.
type ThinkSettings struct {
	Provider ThinkProvider `json:"provider"`
	Prompt   string        `json:"prompt"`
}

// ThinkProvider names the LLM.
type ThinkProvider struct {
	Type        string  `json:"type"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// SpeakSettings selects the synthesis voice.
type SpeakSettings struct {
	Provider SpeakProvider `json:"provider"`
}

// SpeakProvider names the TTS voice model.
type SpeakProvider struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

// Event is the decoded form of any inbound JSON message. The transcript
// field set varies by event type, so all known carriers are present and
// UtteranceText picks the populated one.
type Event struct {
	Type        string `json:"type"`
	Role        string `json:"role,omitempty"`
	Speaker     string `json:"speaker,omitempty"`
	Content     string `json:"content,omitempty"`
	Text        string `json:"text,omitempty"`
	Transcript  string `json:"transcript,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	Code        string `json:"code,omitempty"`
}

// SpeakerRole returns the lowercased speaker attribution.
func (e *Event) SpeakerRole() string {
	if e.Role != "" {
		return strings.ToLower(e.Role)
	}
	return strings.ToLower(e.Speaker)
}

// UtteranceText returns the first populated transcript carrier.
func (e *Event) UtteranceText() string {
	switch {
	case e.Content != "":
		return e.Content
	case e.Text != "":
		return e.Text
	default:
		return e.Transcript
	}
}

// IsTranscript reports whether this event carries an utterance.
func (e *Event) IsTranscript() bool {
	switch e.Type {
	case EventConversationText, EventHistory, EventUserTranscript, EventUserResponse, EventTranscript:
		return true
	}
	return false
}
