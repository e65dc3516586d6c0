package intake

import (
	"log"
	"strings"
	"sync"
	"time"
)

// sayDedupeWindow drops an identical prompt requested again within the
// window; upstream event sources fire duplicate triggers for the same
// logical prompt.
const sayDedupeWindow = 1200 * time.Millisecond

// Speaker is the outbound side of the prompt dispatcher: a bounded wait for
// acoustic quiet followed by an injected agent line.
type Speaker interface {
	// WaitQuiet blocks until the channel has been quiet for window, or max
	// has elapsed. It must return near-immediately when already silent.
	WaitQuiet(window, max time.Duration)
	// InjectMessage asks the agent session to speak the given line.
	InjectMessage(text string) error
}

// Dispatcher serializes outbound spoken prompts so no two are emitted
// concurrently or redundantly.
type Dispatcher struct {
	speaker     Speaker
	quietWindow time.Duration
	quietMax    time.Duration

	mu       sync.Mutex
	lastText string
	lastAt   time.Time

	queue     chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewDispatcher starts the single worker that drains the prompt queue.
func NewDispatcher(speaker Speaker, quietWindow, quietMax time.Duration) *Dispatcher {
	if quietWindow <= 0 {
		quietWindow = 700 * time.Millisecond
	}
	if quietMax <= 0 {
		quietMax = 3 * time.Second
	}
	d := &Dispatcher{
		speaker:     speaker,
		quietWindow: quietWindow,
		quietMax:    quietMax,
		queue:       make(chan string, 16),
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

// Say enqueues one prompt. Empty text and recent duplicates are dropped.
// Never blocks: if the queue is full the prompt is discarded with a log
// line rather than stalling the caller's event loop.
func (d *Dispatcher) Say(text string) {
	s := strings.TrimSpace(text)
	if s == "" {
		return
	}
	d.mu.Lock()
	now := time.Now()
	if s == d.lastText && now.Sub(d.lastAt) < sayDedupeWindow {
		d.mu.Unlock()
		return
	}
	d.lastText = s
	d.lastAt = now
	d.mu.Unlock()

	select {
	case <-d.done:
	case d.queue <- s:
	default:
		log.Printf("say_queue_full dropped=%q", s)
	}
}

// Close stops the worker. Prompts still queued are discarded.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case text := <-d.queue:
			d.speaker.WaitQuiet(d.quietWindow, d.quietMax)
			select {
			case <-d.done:
				return
			default:
			}
			if err := d.speaker.InjectMessage(text); err != nil {
				log.Printf("inject_msg_err err=%v", err)
				continue
			}
			log.Printf("inject_msg text=%q", text)
		}
	}
}
