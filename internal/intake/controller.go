package intake

import (
	"context"
	"log"
	"sync"
	"time"
)

// Exhaustion policies applied when reprompts run out with no usable answer.
const (
	ExhaustTransfer = "transfer"
	ExhaustHangup   = "hangup"
)

// CallControl redirects or terminates the live call. Used at most once per
// call, at the done transition or on no-input exhaustion.
type CallControl interface {
	Transfer(ctx context.Context, callSID, callerID string) error
	Complete(ctx context.Context, callSID string) error
}

// ControllerConfig carries the per-call dialog policy knobs.
type ControllerConfig struct {
	Machine       MachineConfig
	ExhaustPolicy string // ExhaustTransfer or ExhaustHangup
}

// Controller wires the state machine to the prompt dispatcher and the call
// control collaborator for one call.
type Controller struct {
	disp    *Dispatcher
	calls   CallControl
	callSID func() string
	policy  string

	machine *Machine

	mu       sync.Mutex
	finished bool
}

// NewController builds the machine, routes its events through the
// dispatcher, and arms the call-control hand-off.
func NewController(cfg ControllerConfig, disp *Dispatcher, calls CallControl, callSID func() string) *Controller {
	c := &Controller{
		disp:    disp,
		calls:   calls,
		callSID: callSID,
		policy:  cfg.ExhaustPolicy,
	}
	if c.policy == "" {
		c.policy = ExhaustTransfer
	}
	c.machine = NewMachine(cfg.Machine, Events{
		OnSay:      disp.Say,
		OnReprompt: disp.Say,
		OnFieldSet: func(field, value string) {
			log.Printf("field_set call=%s field=%s value=%q", callSID(), field, value)
		},
		OnState: func(s State) {
			log.Printf("fsm_state call=%s state=%s", callSID(), s)
		},
		OnDone:      c.onDone,
		OnExhausted: c.onExhausted,
	})
	return c
}

// HandleUserText forwards one caller utterance to the machine.
func (c *Controller) HandleUserText(text string) {
	c.machine.HandleUserText(text)
}

// Machine exposes the underlying state machine for observation.
func (c *Controller) Machine() *Machine { return c.machine }

// Close tears the machine down; no further prompts are emitted afterwards.
func (c *Controller) Close() {
	c.machine.Close()
}

func (c *Controller) onDone(fields Record, summary string) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.mu.Unlock()

	log.Printf("fsm_done call=%s fields=%v", c.callSID(), fields.Snapshot())
	c.disp.Say("Thanks. " + summary + " I'll connect you now.")
	go c.transfer(fields.Phone)
}

func (c *Controller) onExhausted(fields Record) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.mu.Unlock()

	log.Printf("fsm_exhausted call=%s policy=%s fields=%v", c.callSID(), c.policy, fields.Snapshot())
	if c.policy == ExhaustHangup {
		c.disp.Say("I'm sorry, I haven't heard from you. Please call us again later. Goodbye.")
		go c.hangup()
		return
	}
	c.disp.Say("Thank you. We will have someone follow up with you shortly. I'll connect you now.")
	go c.transfer(fields.Phone)
}

func (c *Controller) transfer(callerID string) {
	if c.calls == nil {
		return
	}
	// Let the closing line start playing before the call is redirected.
	time.Sleep(2 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.calls.Transfer(ctx, c.callSID(), callerID); err != nil {
		log.Printf("transfer_failed call=%s err=%v", c.callSID(), err)
		c.disp.Say("I couldn't connect you just now, but I've noted your details for a quick call back.")
		return
	}
	log.Printf("transfer_requested call=%s", c.callSID())
}

func (c *Controller) hangup() {
	if c.calls == nil {
		return
	}
	time.Sleep(2 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.calls.Complete(ctx, c.callSID()); err != nil {
		log.Printf("hangup_failed call=%s err=%v", c.callSID(), err)
	}
}
