package intake

import (
	"strings"
	"sync"
	"time"
)

// State enumerates the dialog positions of the deterministic intake flow.
// Transitions run strictly forward except the correction loop reachable
// from Confirm.
type State int

const (
	StateAwaitClientType State = iota
	StateAwaitName
	StateAwaitPhone
	StateAwaitEmail
	StateAwaitIncident
	StateAwaitDate
	StateAwaitLocation
	StateConfirm
	StateAwaitCorrection
	StateConfirmAfterCorrection
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitClientType:
		return "AWAIT_CLIENT_TYPE"
	case StateAwaitName:
		return "AWAIT_NAME"
	case StateAwaitPhone:
		return "AWAIT_PHONE"
	case StateAwaitEmail:
		return "AWAIT_EMAIL"
	case StateAwaitIncident:
		return "AWAIT_INCIDENT"
	case StateAwaitDate:
		return "AWAIT_DATE"
	case StateAwaitLocation:
		return "AWAIT_LOCATION"
	case StateConfirm:
		return "CONFIRM"
	case StateAwaitCorrection:
		return "AWAIT_CORRECTION"
	case StateConfirmAfterCorrection:
		return "CONFIRM_AFTER_CORRECTION"
	case StateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// Events lets the host react to machine output. Callbacks run on the
// goroutine that triggered them (utterance delivery or a timer fire) and
// must not call back into the machine.
type Events struct {
	// OnSay requests a spoken prompt (entry prompts, confirmation readback).
	OnSay func(text string)
	// OnReprompt requests a spoken nudge after caller silence.
	OnReprompt func(text string)
	// OnFieldSet fires when an accepted value differs from the stored one.
	OnFieldSet func(field, value string)
	// OnState fires on every transition.
	OnState func(s State)
	// OnDone fires once with the final record and the spoken summary.
	OnDone func(fields Record, summary string)
	// OnExhausted fires when reprompts ran out with no usable answer. The
	// machine is already in StateDone; the host decides transfer vs hangup.
	OnExhausted func(fields Record)
}

// MachineConfig carries the timing and retry knobs for one machine.
type MachineConfig struct {
	// RepromptDelay schedules the soft reprompt after entering a state.
	RepromptDelay time.Duration
	// HardNudgeDelay optionally schedules a second, firmer nudge. Zero
	// disables it.
	HardNudgeDelay time.Duration
	// MaxReprompts caps reprompts per state.
	MaxReprompts int
	// ExhaustDelay is how long after the final reprompt the machine waits
	// before giving up on the state entirely.
	ExhaustDelay time.Duration
}

// Machine is the authoritative conversational controller for one call. It
// owns the canonical question order and accepts or ignores each caller
// utterance independently of whatever the upstream agent model says.
type Machine struct {
	mu     sync.Mutex
	cfg    MachineConfig
	ev     Events
	state  State
	fields Record

	// gen is the cancellation epoch: every transition or teardown bumps it
	// so in-flight timer callbacks become no-ops.
	gen           uint64
	timers        []*time.Timer
	repromptCount int
	confirmMisses int
	closed        bool
}

// NewMachine starts a machine in StateAwaitClientType. The greeting that
// asks the first question is spoken once by the session before the machine
// starts, so only reprompts are scheduled here.
func NewMachine(cfg MachineConfig, ev Events) *Machine {
	if cfg.RepromptDelay <= 0 {
		cfg.RepromptDelay = 6 * time.Second
	}
	if cfg.MaxReprompts <= 0 {
		cfg.MaxReprompts = 1
	}
	if cfg.ExhaustDelay <= 0 {
		cfg.ExhaustDelay = 12 * time.Second
	}
	m := &Machine{cfg: cfg, ev: ev, state: StateAwaitClientType}
	m.mu.Lock()
	m.scheduleReprompts()
	m.mu.Unlock()
	return m
}

// State returns the current dialog state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fields returns a copy of the authoritative record.
func (m *Machine) Fields() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields
}

// Close cancels all pending timers. Safe to call more than once; after
// Close no further say or reprompt events are observable.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.clearTimers()
}

// clearTimers must be called with m.mu held.
func (m *Machine) clearTimers() {
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = m.timers[:0]
	m.gen++
	m.repromptCount = 0
}

// schedule must be called with m.mu held. fn runs with m.mu held and only
// if the generation is still current.
func (m *Machine) schedule(d time.Duration, fn func()) {
	gen := m.gen
	t := time.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed || m.gen != gen || m.state == StateDone {
			return
		}
		fn()
	})
	m.timers = append(m.timers, t)
}

// scheduleReprompts must be called with m.mu held.
func (m *Machine) scheduleReprompts() {
	if m.state == StateDone {
		return
	}
	state := m.state
	last := m.cfg.RepromptDelay
	m.schedule(m.cfg.RepromptDelay, func() {
		if m.repromptCount >= m.cfg.MaxReprompts {
			return
		}
		m.repromptCount++
		m.emitReprompt(repromptText(state))
	})
	if m.cfg.HardNudgeDelay > 0 {
		if m.cfg.HardNudgeDelay > last {
			last = m.cfg.HardNudgeDelay
		}
		m.schedule(m.cfg.HardNudgeDelay, func() {
			if m.repromptCount >= m.cfg.MaxReprompts {
				return
			}
			m.repromptCount++
			m.emitReprompt(hardNudgeText(state))
		})
	}
	// The caller must never be left hanging after reprompts run out. The
	// deadline counts from state entry, not from the last utterance; an
	// unusable answer does not buy more time in the same state.
	m.schedule(last+m.cfg.ExhaustDelay, func() {
		fields := m.fields
		m.transition(StateDone)
		if m.ev.OnExhausted != nil {
			m.ev.OnExhausted(fields)
		}
	})
}

func (m *Machine) emitSay(text string) {
	if text != "" && m.ev.OnSay != nil {
		m.ev.OnSay(text)
	}
}

func (m *Machine) emitReprompt(text string) {
	if text != "" && m.ev.OnReprompt != nil {
		m.ev.OnReprompt(text)
	}
}

// setField must be called with m.mu held.
func (m *Machine) setField(field, value string) {
	if value == "" || m.fields.Get(field) == value {
		return
	}
	m.fields.Set(field, value)
	if m.ev.OnFieldSet != nil {
		m.ev.OnFieldSet(field, value)
	}
}

// transition must be called with m.mu held.
func (m *Machine) transition(next State) {
	if m.state == next {
		return
	}
	m.clearTimers()
	m.state = next
	m.confirmMisses = 0
	if m.ev.OnState != nil {
		m.ev.OnState(next)
	}
	m.emitSay(entryPrompt(next, &m.fields))
	if next != StateDone {
		m.scheduleReprompts()
	}
}

// finish must be called with m.mu held.
func (m *Machine) finish() {
	fields := m.fields
	summary := Summary(&m.fields)
	m.transition(StateDone)
	if m.ev.OnDone != nil {
		m.ev.OnDone(fields, summary)
	}
}

// HandleUserText feeds one caller utterance through the current state's
// acceptance test. Unaccepted utterances are ignored; the reprompt timer
// for the state stays armed.
func (m *Machine) HandleUserText(text string) {
	t := strings.TrimSpace(text)
	if t == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state == StateDone {
		return
	}

	switch m.state {
	case StateAwaitClientType:
		if v := ExtractClientType(t); v != "" {
			m.setField(FieldClientType, v)
			m.transition(StateAwaitName)
		}
	case StateAwaitName:
		if v := ExtractFullName(t); v != "" {
			m.setField(FieldFullName, v)
			m.transition(StateAwaitPhone)
		}
	case StateAwaitPhone:
		if v := ExtractPhone(t); v != "" {
			m.setField(FieldPhone, v)
			m.transition(StateAwaitEmail)
		}
	case StateAwaitEmail:
		if v := ExtractEmail(t); v != "" {
			m.setField(FieldEmail, v)
			m.transition(StateAwaitIncident)
		}
	case StateAwaitIncident:
		if v := ExtractIncident(t); v != "" {
			m.setField(FieldIncident, v)
			m.transition(StateAwaitDate)
		}
	case StateAwaitDate:
		if v := ExtractDate(t); v != "" {
			m.setField(FieldDate, v)
			m.transition(StateAwaitLocation)
		}
	case StateAwaitLocation:
		if v := ExtractLocation(t); v != "" {
			m.setField(FieldLocation, v)
			m.transition(StateConfirm)
		}
	case StateConfirm:
		m.handleConfirm(t)
	case StateAwaitCorrection:
		m.handleCorrection(t)
	case StateConfirmAfterCorrection:
		if IsAffirmative(t) {
			m.finish()
		} else {
			// Still disputed after one correction pass; hand off rather
			// than loop.
			m.emitSay("Alright, I'll connect you to our team for further assistance.")
			m.finish()
		}
	}
}

// handleConfirm must be called with m.mu held.
func (m *Machine) handleConfirm(t string) {
	switch {
	case IsAffirmative(t):
		m.finish()
	case IsNegative(t):
		m.transition(StateAwaitCorrection)
	default:
		m.confirmMisses++
		if m.confirmMisses <= 2 {
			m.emitReprompt("Please say yes if everything is correct, or no if something is wrong.")
		} else {
			// Fail open: assume confirmed rather than loop forever.
			m.finish()
		}
	}
}

// handleCorrection must be called with m.mu held. Every structured
// extractor is tried against the correction utterance; keyword heuristics
// guess the intended field when none match.
func (m *Machine) handleCorrection(t string) {
	field, value := "", ""
	switch {
	case ExtractPhone(t) != "":
		field, value = FieldPhone, ExtractPhone(t)
	case ExtractEmail(t) != "":
		field, value = FieldEmail, ExtractEmail(t)
	case ExtractDate(t) != "":
		field, value = FieldDate, ExtractDate(t)
	// Location before name: a place phrase like "in Santa Monica" also
	// looks like a name pair and would clobber the confirmed name.
	case ExtractLocation(t) != "":
		field, value = FieldLocation, ExtractLocation(t)
	case ExtractFullName(t) != "":
		field, value = FieldFullName, ExtractFullName(t)
	case injuryKeywordRe.MatchString(t):
		field, value = FieldInjuries, strings.TrimSpace(t)
	case treatmentKeywordRe.MatchString(t):
		field, value = FieldTreatment, strings.TrimSpace(t)
	default:
		field, value = FieldIncident, strings.TrimSpace(t)
	}
	m.setField(field, value)
	m.transition(StateConfirmAfterCorrection)
}

func entryPrompt(s State, f *Record) string {
	switch s {
	case StateAwaitName:
		return "Thanks. What is your full name?"
	case StateAwaitPhone:
		return "What is the best callback number? Say the digits clearly."
	case StateAwaitEmail:
		return "What is your email address?"
	case StateAwaitIncident:
		return "Briefly, what happened? One sentence is fine."
	case StateAwaitDate:
		return "What was the date? Month day and year is fine."
	case StateAwaitLocation:
		return "Where did it happen? City and place if you know it."
	case StateConfirm:
		return "Let me read that back. " + Summary(f) + " Is everything correct?"
	case StateAwaitCorrection:
		return "Alright, let's correct that. Please say the correct information that needs to be updated."
	case StateConfirmAfterCorrection:
		return "Thank you. I've updated that information. Is everything correct now?"
	}
	return ""
}

func repromptText(s State) string {
	switch s {
	case StateAwaitClientType:
		return "Please say new if you were in an accident, or existing if you're already a client."
	case StateAwaitName:
		return "Please say your first and last name clearly."
	case StateAwaitPhone:
		return "Please say ten digits for your phone number."
	case StateAwaitEmail:
		return "Please say your email address, like name at gmail dot com."
	case StateAwaitIncident:
		return "Briefly, what happened? One sentence is fine."
	case StateAwaitDate:
		return "Please say the date, like June 5th 2025, or 06/05/2025."
	case StateAwaitLocation:
		return "Where did it happen? City and place if you know it."
	case StateConfirm, StateConfirmAfterCorrection:
		return "Please say yes if that's correct, or say what needs to be fixed."
	case StateAwaitCorrection:
		return "I'm sorry, I didn't get that. Please say the information we should correct."
	}
	return ""
}

func hardNudgeText(s State) string {
	switch s {
	case StateAwaitClientType:
		return "Were you in an accident, or are you an existing client?"
	case StateAwaitName:
		return "What is your full name?"
	case StateAwaitPhone:
		return "What is the best callback number? Say the digits clearly."
	case StateAwaitEmail:
		return "What is your email address?"
	case StateAwaitIncident:
		return "Can you tell me briefly what happened?"
	case StateAwaitDate:
		return "What was the date? Month day and year is fine."
	case StateAwaitLocation:
		return "Where did it happen? City and place if you know it."
	case StateConfirm, StateConfirmAfterCorrection:
		return "Is everything correct?"
	case StateAwaitCorrection:
		return "Please say the information we should correct."
	}
	return ""
}

// Summary renders the collected fields as a spoken readback.
func Summary(f *Record) string {
	safe := func(v string) string {
		if v == "" {
			return "unspecified"
		}
		return strings.TrimRight(v, ".")
	}
	return "Client type " + safe(f.ClientType) + ". Name " + safe(f.FullName) +
		". Phone " + safe(f.Phone) + ". Email " + safe(f.Email) +
		". Incident: " + safe(f.Incident) + ". Date " + safe(f.Date) +
		". Location " + safe(f.Location) + "."
}
