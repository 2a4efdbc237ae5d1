// Package idle decides whether the kiosk shows the attract screen or the
// ordering UI.
package idle

import (
	"sync"
	"time"

	"github.com/ariefcatur/go-kiosk/internal/clock"
)

type State string

const (
	StateIdle   State = "IDLE"
	StateActive State = "ACTIVE"
)

type Event string

const (
	PointerDown Event = "pointerdown"
	KeyPress    Event = "keypress"
	TouchStart  Event = "touchstart"
	PointerMove Event = "pointermove"
	Scroll      Event = "scroll"
)

// Qualifies reports whether the event extends an active session. Only
// deliberate input counts; movement and scrolling in front of a public screen
// must not keep the kiosk awake.
func (e Event) Qualifies() bool {
	switch e {
	case PointerDown, KeyPress, TouchStart:
		return true
	}
	return false
}

type Detector struct {
	mu       sync.Mutex
	clock    clock.Clock
	timeout  time.Duration
	state    State
	timer    clock.Timer
	gen      uint64
	closed   bool
	busy     func() bool
	onChange func(State)
}

type Option func(*Detector)

func WithClock(c clock.Clock) Option { return func(d *Detector) { d.clock = c } }

// WithBusy installs a guard consulted when the countdown expires. While it
// returns true the countdown is rearmed instead of going idle.
func WithBusy(f func() bool) Option { return func(d *Detector) { d.busy = f } }

// WithOnChange registers a callback for every state change. It runs without
// the detector lock held.
func WithOnChange(f func(State)) Option { return func(d *Detector) { d.onChange = f } }

func New(timeout time.Duration, opts ...Option) *Detector {
	d := &Detector{
		clock:   clock.Real(),
		timeout: timeout,
		state:   StateIdle,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start is the tap on the attract screen: IDLE -> ACTIVE with a fresh countdown.
func (d *Detector) Start() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	changed := d.state != StateActive
	d.state = StateActive
	d.arm()
	d.mu.Unlock()

	if changed {
		d.notify(StateActive)
	}
}

// Activity records a user input event. It returns true when the event
// restarted the countdown.
func (d *Detector) Activity(e Event) bool {
	if !e.Qualifies() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.state != StateActive {
		return false
	}
	d.arm()
	return true
}

// ForceIdle drops straight back to the attract screen.
func (d *Detector) ForceIdle() {
	d.mu.Lock()
	changed := d.state != StateIdle
	d.state = StateIdle
	d.disarm()
	d.mu.Unlock()

	if changed {
		d.notify(StateIdle)
	}
}

// Close stops the countdown for good.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.disarm()
}

// arm must be called with d.mu held. The old timer is always stopped first.
func (d *Detector) arm() {
	d.disarm()
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.timeout, func() { d.expire(gen) })
}

func (d *Detector) disarm() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Detector) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed || d.state != StateActive {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	busy := d.busy != nil && d.busy()

	d.mu.Lock()
	if gen != d.gen || d.closed || d.state != StateActive {
		d.mu.Unlock()
		return
	}
	if busy {
		d.arm()
		d.mu.Unlock()
		return
	}
	d.state = StateIdle
	d.timer = nil
	d.gen++
	d.mu.Unlock()

	d.notify(StateIdle)
}

func (d *Detector) notify(s State) {
	if d.onChange != nil {
		d.onChange(s)
	}
}
