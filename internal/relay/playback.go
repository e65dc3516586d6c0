// Package relay wires one call's telephony connection to one agent-session
// connection: audio pumping with pre-roll gating, barge-in playback
// control, keep-alive, intake wiring, and idempotent teardown.
package relay

import (
	"sync"
	"time"
)

// PlaybackConfig tunes the barge-in gate.
type PlaybackConfig struct {
	// BargeEnabled turns interruption handling on.
	BargeEnabled bool
	// MuteWindow drops synthesized audio for this long after the caller
	// starts speaking, so the tail of the prior utterance stops playing.
	MuteWindow time.Duration
	// ClearThrottle is the minimum spacing between clear requests.
	ClearThrottle time.Duration
	// PlaybackMask extends the "channel is busy" judgement past the last
	// synthesized chunk, covering Twilio's own playout buffer.
	PlaybackMask time.Duration
}

// PlaybackController decides whether synthesized audio may reach the caller
// right now, and whether an interruption warrants a clear request.
type PlaybackController struct {
	cfg PlaybackConfig

	mu                sync.Mutex
	bargeMuteUntil    time.Time
	lastClearAt       time.Time
	lastAgentAudioAt  time.Time
	playbackMaskUntil time.Time

	now func() time.Time
}

// NewPlaybackController constructs a controller with the given gate config.
func NewPlaybackController(cfg PlaybackConfig) *PlaybackController {
	if cfg.MuteWindow <= 0 {
		cfg.MuteWindow = 400 * time.Millisecond
	}
	if cfg.ClearThrottle <= 0 {
		cfg.ClearThrottle = 600 * time.Millisecond
	}
	if cfg.PlaybackMask <= 0 {
		cfg.PlaybackMask = 150 * time.Millisecond
	}
	return &PlaybackController{cfg: cfg, now: time.Now}
}

// OnAgentAudio records an arriving synthesized chunk and reports whether it
// may be forwarded. During the barge mute window chunks are dropped.
func (p *PlaybackController) OnAgentAudio() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	p.lastAgentAudioAt = now
	p.playbackMaskUntil = now.Add(p.cfg.PlaybackMask)
	return now.After(p.bargeMuteUntil)
}

// OnUserStartedSpeaking applies the barge-in policy. It returns true when a
// clear request should be issued; the mute window is armed regardless, but
// clears are throttled to protect the telephony control channel.
func (p *PlaybackController) OnUserStartedSpeaking() bool {
	if !p.cfg.BargeEnabled {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	p.bargeMuteUntil = now.Add(p.cfg.MuteWindow)
	if now.Sub(p.lastClearAt) < p.cfg.ClearThrottle {
		return false
	}
	p.lastClearAt = now
	return true
}

// QuietFor reports whether no synthesized audio has arrived within window
// and the playback mask has elapsed.
func (p *PlaybackController) QuietFor(window time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Before(p.playbackMaskUntil) {
		return false
	}
	return p.lastAgentAudioAt.IsZero() || now.Sub(p.lastAgentAudioAt) >= window
}

// WaitQuiet blocks until QuietFor(window) holds or max elapses. When the
// channel is already silent it returns near-immediately.
func (p *PlaybackController) WaitQuiet(window, max time.Duration) {
	deadline := time.Now().Add(max)
	for !p.QuietFor(window) {
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
