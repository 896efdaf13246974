// Package playback drives play, pause, and seek of an underlying media
// transport, constrained to loop within the active trim range. The
// controller is reactive: it responds to time-update events from the
// transport rather than polling.
package playback

import (
	"sync"

	"github.com/arpitdayma123/trimcore/internal/trim"
)

// State is the playback state machine:
// stopped -> playing -> (paused | stopped), paused -> playing.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

// String returns a wire-friendly name for the state.
func (s State) String() string {
	switch s {
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	default:
		return "STOPPED"
	}
}

// Transport abstracts the underlying media element. Implementations must
// not call back into the Controller synchronously from these methods; the
// controller feeds events in via HandleTimeUpdate and HandleEnded instead.
type Transport interface {
	Play()
	Pause()
	Seek(positionMs int64)
}

// NopTransport is a Transport that does nothing. It serves sessions where
// the real element lives on the client and the controller is only the
// authority for state and loop-corrected positions.
type NopTransport struct{}

func (NopTransport) Play()      {}
func (NopTransport) Pause()     {}
func (NopTransport) Seek(int64) {}

// RangeSource provides the current trim range for loop bounds.
type RangeSource interface {
	Range() trim.Range
}

// Observers is the one set of callbacks a session registers for its
// lifetime; Deregister removes them on teardown.
type Observers struct {
	// OnTimeUpdate fires with the corrected position after every tick
	// or seek.
	OnTimeUpdate func(positionMs int64)
	// OnStateChange fires on every state machine transition.
	OnStateChange func(s State)
}

// Controller enforces the loop-within-trim-region behavior on top of a
// Transport. Safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	transport  Transport
	ranges     RangeSource
	durationMs int64
	state      State
	positionMs int64
	observers  Observers
}

// New creates a Controller over a timeline of durationMs milliseconds.
// A nil transport falls back to NopTransport.
func New(transport Transport, ranges RangeSource, durationMs int64) *Controller {
	if transport == nil {
		transport = NopTransport{}
	}
	return &Controller{
		transport:  transport,
		ranges:     ranges,
		durationMs: durationMs,
		state:      StateStopped,
	}
}

// Register installs the observer set. Passing the zero value deregisters.
func (c *Controller) Register(obs Observers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = obs
}

// Deregister removes the observer set.
func (c *Controller) Deregister() {
	c.Register(Observers{})
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the current (loop-corrected) position in milliseconds.
func (c *Controller) Position() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionMs
}

// Play starts playback. A position outside the trim range snaps to the
// range start first, so playback always begins inside the selection.
func (c *Controller) Play() {
	c.mu.Lock()
	r := c.ranges.Range()
	seeked := false
	if c.positionMs < r.StartMs || c.positionMs > r.EndMs {
		c.positionMs = r.StartMs
		seeked = true
	}
	changed := c.state != StatePlaying
	c.state = StatePlaying
	pos := c.positionMs
	obs := c.observers
	c.mu.Unlock()

	if seeked {
		c.transport.Seek(pos)
	}
	c.transport.Play()
	if changed && obs.OnStateChange != nil {
		obs.OnStateChange(StatePlaying)
	}
	if seeked && obs.OnTimeUpdate != nil {
		obs.OnTimeUpdate(pos)
	}
}

// Pause suspends playback, keeping the position.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.state = StatePaused
	obs := c.observers
	c.mu.Unlock()

	c.transport.Pause()
	if obs.OnStateChange != nil {
		obs.OnStateChange(StatePaused)
	}
}

// Stop halts playback and rewinds to the range start.
func (c *Controller) Stop() {
	c.mu.Lock()
	r := c.ranges.Range()
	c.state = StateStopped
	c.positionMs = r.StartMs
	pos := c.positionMs
	obs := c.observers
	c.mu.Unlock()

	c.transport.Pause()
	c.transport.Seek(pos)
	if obs.OnStateChange != nil {
		obs.OnStateChange(StateStopped)
	}
	if obs.OnTimeUpdate != nil {
		obs.OnTimeUpdate(pos)
	}
}

// Seek moves to an absolute position, clamped to the timeline.
func (c *Controller) Seek(positionMs int64) {
	c.mu.Lock()
	c.positionMs = clamp(positionMs, 0, c.durationMs)
	pos := c.positionMs
	obs := c.observers
	c.mu.Unlock()

	c.transport.Seek(pos)
	if obs.OnTimeUpdate != nil {
		obs.OnTimeUpdate(pos)
	}
}

// SkipBy jumps by deltaSec seconds. Skip is a transport control, not a
// range control: the result clamps to [0, duration] independent of the
// trim range.
func (c *Controller) SkipBy(deltaSec float64) {
	c.mu.Lock()
	c.positionMs = clamp(c.positionMs+int64(deltaSec*1000), 0, c.durationMs)
	pos := c.positionMs
	obs := c.observers
	c.mu.Unlock()

	c.transport.Seek(pos)
	if obs.OnTimeUpdate != nil {
		obs.OnTimeUpdate(pos)
	}
}

// HandleTimeUpdate processes a time-update event from the transport.
// While playing, a position past the range end or before the range start
// repositions to the range start, producing the perceptual loop within
// the trim region. Returns the corrected position.
func (c *Controller) HandleTimeUpdate(positionMs int64) int64 {
	c.mu.Lock()
	c.positionMs = clamp(positionMs, 0, c.durationMs)
	looped := false
	if c.state == StatePlaying {
		r := c.ranges.Range()
		if c.positionMs > r.EndMs || c.positionMs < r.StartMs {
			c.positionMs = r.StartMs
			looped = true
		}
	}
	pos := c.positionMs
	obs := c.observers
	c.mu.Unlock()

	if looped {
		c.transport.Seek(pos)
	}
	if obs.OnTimeUpdate != nil {
		obs.OnTimeUpdate(pos)
	}
	return pos
}

// HandleEnded processes the transport's end-of-media event.
func (c *Controller) HandleEnded() {
	c.mu.Lock()
	r := c.ranges.Range()
	c.state = StateStopped
	c.positionMs = r.StartMs
	obs := c.observers
	c.mu.Unlock()

	if obs.OnStateChange != nil {
		obs.OnStateChange(StateStopped)
	}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
