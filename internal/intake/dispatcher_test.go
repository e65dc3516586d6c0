package intake

import (
	"sync"
	"testing"
	"time"
)

// quietSpeaker records injected lines and is always silent.
type quietSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (q *quietSpeaker) WaitQuiet(window, max time.Duration) {}

func (q *quietSpeaker) InjectMessage(text string) error {
	q.mu.Lock()
	q.lines = append(q.lines, text)
	q.mu.Unlock()
	return nil
}

func (q *quietSpeaker) spoken() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.lines))
	copy(out, q.lines)
	return out
}

func TestDispatcher_DropsRecentDuplicate(t *testing.T) {
	sp := &quietSpeaker{}
	d := NewDispatcher(sp, 0, 0)
	defer d.Close()

	d.Say("what is your full name?")
	d.Say("what is your full name?")
	time.Sleep(100 * time.Millisecond)

	if got := sp.spoken(); len(got) != 1 {
		t.Fatalf("expected 1 injected line, got %d: %v", len(got), got)
	}
}

func TestDispatcher_SerializesInOrder(t *testing.T) {
	sp := &quietSpeaker{}
	d := NewDispatcher(sp, 0, 0)
	defer d.Close()

	d.Say("first question")
	d.Say("second question")
	d.Say("third question")
	time.Sleep(150 * time.Millisecond)

	got := sp.spoken()
	want := []string{"first question", "second question", "third question"}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatcher_IgnoresEmptyText(t *testing.T) {
	sp := &quietSpeaker{}
	d := NewDispatcher(sp, 0, 0)
	defer d.Close()

	d.Say("   ")
	d.Say("")
	time.Sleep(50 * time.Millisecond)

	if got := sp.spoken(); len(got) != 0 {
		t.Fatalf("expected nothing spoken, got %v", got)
	}
}
