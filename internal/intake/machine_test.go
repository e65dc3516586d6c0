package intake

import (
	"sync"
	"testing"
	"time"
)

// recorder collects machine events for assertions.
type recorder struct {
	mu        sync.Mutex
	says      []string
	reprompts []string
	fields    map[string][]string
	states    []State
	done      bool
	doneRec   Record
	exhausted bool
}

func newRecorder() *recorder {
	return &recorder{fields: map[string][]string{}}
}

func (r *recorder) events() Events {
	return Events{
		OnSay: func(text string) {
			r.mu.Lock()
			r.says = append(r.says, text)
			r.mu.Unlock()
		},
		OnReprompt: func(text string) {
			r.mu.Lock()
			r.reprompts = append(r.reprompts, text)
			r.mu.Unlock()
		},
		OnFieldSet: func(field, value string) {
			r.mu.Lock()
			r.fields[field] = append(r.fields[field], value)
			r.mu.Unlock()
		},
		OnState: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnDone: func(fields Record, summary string) {
			r.mu.Lock()
			r.done = true
			r.doneRec = fields
			r.mu.Unlock()
		},
		OnExhausted: func(fields Record) {
			r.mu.Lock()
			r.exhausted = true
			r.mu.Unlock()
		},
	}
}

func (r *recorder) repromptCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reprompts)
}

// inert disables all timers for deterministic walks.
var inert = MachineConfig{RepromptDelay: time.Hour, ExhaustDelay: time.Hour}

func TestMachine_HappyPathWalk(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(inert, rec.events())
	defer m.Close()

	steps := []struct {
		say  string
		next State
	}{
		{"I was in a car accident", StateAwaitName},
		{"My name is John Smith", StateAwaitPhone},
		{"it's 555-123-4567", StateAwaitEmail},
		{"john at gmail dot com", StateAwaitIncident},
		{"I was rear-ended by a truck", StateAwaitDate},
		{"June 5th 2025", StateAwaitLocation},
		{"Phoenix, AZ", StateConfirm},
		{"yes that's correct", StateDone},
	}
	for _, step := range steps {
		m.HandleUserText(step.say)
		if got := m.State(); got != step.next {
			t.Fatalf("after %q state = %s, want %s", step.say, got, step.next)
		}
	}

	if !rec.done {
		t.Fatalf("expected done callback")
	}
	f := rec.doneRec
	if f.ClientType != "new" || f.FullName != "John Smith" ||
		f.Phone != "+15551234567" || f.Email != "john@gmail.com" ||
		f.Date != "06/05/2025" || f.Location != "Phoenix, AZ" {
		t.Fatalf("unexpected final record: %+v", f)
	}
	if !f.Complete() {
		t.Fatalf("expected complete record")
	}
}

func TestMachine_IgnoresUnusableAnswers(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(inert, rec.events())
	defer m.Close()

	m.HandleUserText("a truck hit me")
	m.HandleUserText("My name is John Smith")
	if m.State() != StateAwaitPhone {
		t.Fatalf("setup failed, state = %s", m.State())
	}

	// Word digits and chatter must not advance the phone state.
	m.HandleUserText("five five five one two three four five six seven")
	m.HandleUserText("hold on let me check")
	if m.State() != StateAwaitPhone {
		t.Fatalf("expected to stay in AWAIT_PHONE, got %s", m.State())
	}
	if len(rec.fields[FieldPhone]) != 0 {
		t.Fatalf("expected no phone field event")
	}
}

func TestMachine_CorrectionFlow(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(inert, rec.events())
	defer m.Close()

	for _, s := range []string{
		"new client, car accident",
		"john smith",
		"555-123-4567",
		"john at gmail dot com",
		"a car crash on the freeway",
		"yesterday",
		"Mesa, AZ",
	} {
		m.HandleUserText(s)
	}
	if m.State() != StateConfirm {
		t.Fatalf("setup failed, state = %s", m.State())
	}

	m.HandleUserText("no, my name is wrong")
	if m.State() != StateAwaitCorrection {
		t.Fatalf("expected AWAIT_CORRECTION, got %s", m.State())
	}

	m.HandleUserText("my name is Jane Doe")
	if m.State() != StateConfirmAfterCorrection {
		t.Fatalf("expected CONFIRM_AFTER_CORRECTION, got %s", m.State())
	}
	if got := m.Fields().FullName; got != "Jane Doe" {
		t.Fatalf("expected corrected name, got %q", got)
	}

	m.HandleUserText("yes")
	if m.State() != StateDone || !rec.done {
		t.Fatalf("expected done after corrected confirm")
	}
}

func TestMachine_CorrectionWithPlacePhraseTargetsLocation(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(inert, rec.events())
	defer m.Close()

	for _, s := range []string{
		"new client, car accident",
		"john smith",
		"555-123-4567",
		"john at gmail dot com",
		"a car crash on the freeway",
		"yesterday",
		"Phoenix, AZ",
	} {
		m.HandleUserText(s)
	}
	if m.State() != StateConfirm {
		t.Fatalf("setup failed, state = %s", m.State())
	}

	// A place phrase also parses as a capitalized name pair; the location
	// extractor must win so the confirmed name is untouched.
	m.HandleUserText("no, the location is wrong")
	m.HandleUserText("it happened in Santa Monica")
	if m.State() != StateConfirmAfterCorrection {
		t.Fatalf("expected CONFIRM_AFTER_CORRECTION, got %s", m.State())
	}
	f := m.Fields()
	if f.FullName != "John Smith" {
		t.Fatalf("name clobbered by location correction: %q", f.FullName)
	}
	if f.Location != "Santa Monica" {
		t.Fatalf("expected corrected location, got %q", f.Location)
	}
}

func TestMachine_FieldSetOnlyOnChange(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(inert, rec.events())
	defer m.Close()

	for _, s := range []string{
		"accident", "john smith", "555-123-4567", "john at gmail dot com",
		"a dog bite", "today", "Tempe, AZ",
	} {
		m.HandleUserText(s)
	}
	m.HandleUserText("no")
	// Correcting to the value already on file must not re-emit the event.
	m.HandleUserText("my name is John Smith")
	if m.State() != StateConfirmAfterCorrection {
		t.Fatalf("expected CONFIRM_AFTER_CORRECTION, got %s", m.State())
	}
	if got := len(rec.fields[FieldFullName]); got != 1 {
		t.Fatalf("expected 1 full_name event, got %d", got)
	}
}

func TestMachine_ConfirmFailsOpen(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(inert, rec.events())
	defer m.Close()

	for _, s := range []string{
		"accident", "john smith", "555-123-4567", "john at gmail dot com",
		"a slip and fall", "today", "Tempe, AZ",
	} {
		m.HandleUserText(s)
	}
	// Three unusable confirmation answers: nudge twice, then assume yes.
	m.HandleUserText("hmm")
	m.HandleUserText("what was that")
	if m.State() != StateConfirm {
		t.Fatalf("expected to remain in CONFIRM, got %s", m.State())
	}
	m.HandleUserText("I guess")
	if m.State() != StateDone || !rec.done {
		t.Fatalf("expected fail-open finish, state = %s", m.State())
	}
}

func TestMachine_RepromptAndExhaust(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(MachineConfig{
		RepromptDelay: 20 * time.Millisecond,
		MaxReprompts:  1,
		ExhaustDelay:  40 * time.Millisecond,
	}, rec.events())
	defer m.Close()

	deadline := time.After(500 * time.Millisecond)
	for {
		rec.mu.Lock()
		ok := rec.exhausted
		rec.mu.Unlock()
		if ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected exhaustion, reprompts=%d", rec.repromptCount())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	if rec.repromptCount() < 1 {
		t.Fatalf("expected at least one reprompt before exhaustion")
	}
	if m.State() != StateDone {
		t.Fatalf("expected DONE after exhaustion, got %s", m.State())
	}
}

func TestMachine_EarlyHardNudgeDoesNotHastenExhaustion(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(MachineConfig{
		RepromptDelay:  100 * time.Millisecond,
		HardNudgeDelay: 20 * time.Millisecond,
		MaxReprompts:   2,
		ExhaustDelay:   40 * time.Millisecond,
	}, rec.events())
	defer m.Close()

	deadline := time.After(time.Second)
	for {
		rec.mu.Lock()
		ok := rec.exhausted
		rec.mu.Unlock()
		if ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected exhaustion, reprompts=%d", rec.repromptCount())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	// Exhaustion counts from the later of the two nudges, so the soft
	// reprompt must have had its chance to fire first.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var sawSoft bool
	for _, text := range rec.reprompts {
		if text == repromptText(StateAwaitClientType) {
			sawSoft = true
		}
	}
	if !sawSoft {
		t.Fatalf("exhausted before the soft reprompt fired, reprompts=%v", rec.reprompts)
	}
}

func TestMachine_CloseCancelsTimers(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(MachineConfig{
		RepromptDelay: 15 * time.Millisecond,
		ExhaustDelay:  15 * time.Millisecond,
	}, rec.events())
	m.Close()
	m.Close() // idempotent

	time.Sleep(80 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.reprompts) != 0 || rec.exhausted {
		t.Fatalf("expected no timer events after close")
	}
}

func TestMachine_AnswerCancelsPendingReprompt(t *testing.T) {
	rec := newRecorder()
	m := NewMachine(MachineConfig{
		RepromptDelay: 40 * time.Millisecond,
		ExhaustDelay:  time.Hour,
	}, rec.events())
	defer m.Close()

	m.HandleUserText("I was in a car accident")
	time.Sleep(70 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, text := range rec.reprompts {
		if text == repromptText(StateAwaitClientType) {
			t.Fatalf("stale client-type reprompt fired after transition")
		}
	}
}
