package relay

import (
	"encoding/base64"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ErikRobinson94/caseconnect/internal/agentsession"
	"github.com/ErikRobinson94/caseconnect/internal/audio"
	"github.com/ErikRobinson94/caseconnect/internal/intake"
	"github.com/ErikRobinson94/caseconnect/internal/telephony"
)

// AgentLeg is the conversational agent connection as seen by the session.
type AgentLeg interface {
	SendSettings(agentsession.Settings) error
	SendKeepAlive() error
	SendAudio(chunk []byte) error
	InjectMessage(text string) error
	ReadEvent() (*agentsession.Event, []byte, error)
	Close() error
}

// TelephonyLeg is the caller-side connection as seen by the session.
type TelephonyLeg interface {
	ReadMessage() (*telephony.Message, error)
	SetStreamSID(sid string)
	StreamSID() string
	SendAudio(chunk []byte) error
	SendClear() error
	Close() error
}

// FinalizeFunc receives the call's shadow record and transcript once the
// session has closed. It runs on its own goroutine; failures there must not
// affect the already-closed call.
type FinalizeFunc func(rec intake.Record, transcripts []string, callSID string, startedAt, endedAt time.Time)

// Config carries the per-session tunables.
type Config struct {
	// BurstFrames is how many 20ms telephony frames form one outbound burst.
	BurstFrames int
	// PrerollMaxFrames caps the pre-roll queue held before readiness.
	PrerollMaxFrames int
	// KeepAliveInterval paces the agent-session heartbeat.
	KeepAliveInterval time.Duration
	// AudioMeterInterval paces the aggregated agent-audio log line; zero
	// disables the meter.
	AudioMeterInterval time.Duration

	Playback    PlaybackConfig
	QuietWindow time.Duration
	QuietMax    time.Duration

	// Settings is the one-time agent session configuration.
	Settings agentsession.Settings

	Intake        intake.ControllerConfig
	ShadowLogMode string
}

// Session owns one call: both legs, the framing buffers, the playback gate,
// the shadow extractor, and the intake controller. All of it is destroyed
// together, exactly once.
type Session struct {
	cfg   Config
	tw    TelephonyLeg
	agent AgentLeg

	playback   *PlaybackController
	inBuf      *audio.FrameBuffer
	preroll    *audio.PrerollQueue
	shadow     *intake.Shadow
	dispatcher *intake.Dispatcher
	controller *intake.Controller

	mu              sync.Mutex
	callSID         string
	settingsApplied bool

	meterBytes  int64
	meterChunks int64

	startedAt  time.Time
	stopCh     chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	onFinalize FinalizeFunc
}

// Open wires both legs together and starts the session's pump loops. The
// session configuration message is sent immediately; inbound audio is held
// in the pre-roll queue until the peer acknowledges it.
func Open(tw TelephonyLeg, agent AgentLeg, calls intake.CallControl, cfg Config, onFinalize FinalizeFunc) (*Session, error) {
	if cfg.BurstFrames <= 0 {
		cfg.BurstFrames = 4
	}
	if cfg.PrerollMaxFrames <= 0 {
		cfg.PrerollMaxFrames = 6
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 25 * time.Second
	}

	s := &Session{
		cfg:       cfg,
		tw:        tw,
		agent:     agent,
		playback:  NewPlaybackController(cfg.Playback),
		inBuf:     audio.NewFrameBuffer(telephony.FrameBytes * cfg.BurstFrames),
		preroll:   audio.NewPrerollQueue(cfg.PrerollMaxFrames),
		shadow:    intake.NewShadow(cfg.ShadowLogMode),
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),

		onFinalize: onFinalize,
	}
	s.dispatcher = intake.NewDispatcher(s, cfg.QuietWindow, cfg.QuietMax)
	s.controller = intake.NewController(cfg.Intake, s.dispatcher, calls, s.CallSID)

	if err := agent.SendSettings(cfg.Settings); err != nil {
		s.Close()
		return nil, err
	}
	log.Printf("agent_settings_sent prompt_len=%d", len(cfg.Settings.Agent.Think.Prompt))

	s.wg.Add(2)
	go s.agentLoop()
	go s.telephonyLoop()
	go s.keepAliveLoop()
	if cfg.AudioMeterInterval > 0 {
		go s.meterLoop()
	}
	return s, nil
}

// CallSID returns the call identifier once the start event has arrived.
func (s *Session) CallSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

// Wait blocks until both pump loops have exited.
func (s *Session) Wait() { s.wg.Wait() }

// WaitQuiet implements intake.Speaker through the playback controller.
func (s *Session) WaitQuiet(window, max time.Duration) {
	s.playback.WaitQuiet(window, max)
}

// InjectMessage implements intake.Speaker through the agent leg.
func (s *Session) InjectMessage(text string) error {
	return s.agent.InjectMessage(text)
}

// Close tears the whole session down: both legs, all timers, the dispatcher
// worker. Idempotent; the first close also schedules the post-call
// normalization hand-off.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.controller.Close()
		s.dispatcher.Close()
		_ = s.agent.Close()
		_ = s.tw.Close()

		endedAt := time.Now()
		callSID := s.CallSID()
		log.Printf("session_close call=%s duration=%s", callSID, endedAt.Sub(s.startedAt).Round(time.Millisecond))
		rec := s.shadow.Record()
		log.Printf("intake_final call=%s fields=%v", callSID, rec.Snapshot())

		if s.onFinalize != nil {
			transcripts := s.shadow.Transcripts()
			startedAt := s.startedAt
			go s.onFinalize(rec, transcripts, callSID, startedAt, endedAt)
		}
	})
}

// agentLoop pumps agent-session events: synthesized audio toward the
// caller, transcripts toward the intake layer, and control events into the
// readiness and barge-in machinery.
func (s *Session) agentLoop() {
	defer s.wg.Done()
	defer s.Close()
	for {
		evt, chunk, err := s.agent.ReadEvent()
		if err != nil {
			log.Printf("agent_read_err call=%s err=%v", s.CallSID(), err)
			return
		}
		if chunk != nil {
			atomic.AddInt64(&s.meterBytes, int64(len(chunk)))
			atomic.AddInt64(&s.meterChunks, 1)
			if !s.playback.OnAgentAudio() {
				continue // barge mute window
			}
			if err := s.tw.SendAudio(chunk); err != nil {
				log.Printf("twilio_send_media_err call=%s err=%v", s.CallSID(), err)
				return
			}
			continue
		}
		if evt == nil {
			continue // malformed frame, already logged
		}
		s.handleAgentEvent(evt)
	}
}

func (s *Session) handleAgentEvent(evt *agentsession.Event) {
	switch evt.Type {
	case agentsession.EventWelcome:
		log.Printf("agent_welcome call=%s", s.CallSID())
	case agentsession.EventSettingsApplied:
		s.markReady()
	case agentsession.EventUserStartedSpeaking:
		if s.playback.OnUserStartedSpeaking() {
			if err := s.tw.SendClear(); err != nil {
				log.Printf("twilio_clear_err call=%s err=%v", s.CallSID(), err)
			} else {
				log.Printf("twilio_clear call=%s reason=agent_hint", s.CallSID())
			}
		}
	case agentsession.EventAgentWarning:
		log.Printf("agent_warning call=%s msg=%q", s.CallSID(), evt.Message)
	case agentsession.EventAgentError, agentsession.EventError:
		log.Printf("agent_error call=%s code=%s msg=%q desc=%q", s.CallSID(), evt.Code, evt.Message, evt.Description)
	default:
		if evt.IsTranscript() {
			if s.shadow.OnUtterance(evt.SpeakerRole(), evt.UtteranceText()) {
				s.controller.HandleUserText(evt.UtteranceText())
			}
		}
	}
}

// markReady flushes the pre-roll queue in original order and switches to
// direct forwarding. Holding s.mu across the flush keeps a concurrently
// arriving frame from overtaking queued ones.
func (s *Session) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingsApplied {
		return
	}
	s.settingsApplied = true
	frames := s.preroll.Drain()
	for _, f := range frames {
		if err := s.agent.SendAudio(f); err != nil {
			log.Printf("agent_preroll_flush_err err=%v", err)
			break
		}
	}
	log.Printf("agent_settings_applied call=%s preroll_flushed=%d dropped=%d",
		s.callSID, len(frames), s.preroll.Dropped())
}

// telephonyLoop pumps caller events: inbound audio through the burst
// framer toward the agent, and stream lifecycle control.
func (s *Session) telephonyLoop() {
	defer s.wg.Done()
	defer s.Close()
	for {
		msg, err := s.tw.ReadMessage()
		if err != nil {
			log.Printf("twilio_read_err call=%s err=%v", s.CallSID(), err)
			return
		}
		if msg == nil {
			continue // malformed frame, already logged
		}
		switch msg.Event {
		case telephony.EventConnected:
			// handshake preamble, nothing to do
		case telephony.EventStart:
			if msg.Start == nil {
				continue
			}
			s.tw.SetStreamSID(msg.Start.StreamSID)
			s.mu.Lock()
			s.callSID = msg.Start.CallSID
			s.mu.Unlock()
			log.Printf("twilio_start call=%s stream=%s tracks=%v",
				msg.Start.CallSID, msg.Start.StreamSID, msg.Start.Tracks)
		case telephony.EventMedia:
			if msg.Media == nil {
				continue
			}
			if msg.Media.Track != "" && msg.Media.Track != "inbound" {
				continue
			}
			b, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				log.Printf("twilio_media_decode_err err=%v", err)
				continue
			}
			for _, frame := range s.inBuf.Push(b) {
				s.forwardFrame(frame)
			}
		case telephony.EventMark:
			// playback completion echo
		case telephony.EventStop:
			log.Printf("twilio_stop call=%s", s.CallSID())
			return
		}
	}
}

// forwardFrame sends one burst to the agent, or parks it in the pre-roll
// queue while the settings handshake is still outstanding.
func (s *Session) forwardFrame(frame []byte) {
	s.mu.Lock()
	ready := s.settingsApplied
	if !ready {
		s.preroll.Push(frame)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if err := s.agent.SendAudio(frame); err != nil {
		log.Printf("agent_send_audio_err call=%s err=%v", s.CallSID(), err)
	}
}

func (s *Session) keepAliveLoop() {
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.agent.SendKeepAlive(); err != nil {
				log.Printf("agent_keepalive_err call=%s err=%v", s.CallSID(), err)
			}
		}
	}
}

// meterLoop aggregates agent audio volume into one periodic line instead of
// logging every binary chunk.
func (s *Session) meterLoop() {
	ticker := time.NewTicker(s.cfg.AudioMeterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			bytes := atomic.SwapInt64(&s.meterBytes, 0)
			chunks := atomic.SwapInt64(&s.meterChunks, 0)
			if bytes > 0 || chunks > 0 {
				log.Printf("agent_audio_meter call=%s bytes=%d chunks=%d interval=%s",
					s.CallSID(), bytes, chunks, s.cfg.AudioMeterInterval)
			}
		}
	}
}
