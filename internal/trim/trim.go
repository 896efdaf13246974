// Package trim maintains the selected trim range and enforces its ordering
// and minimum-gap invariants. All mutations from the three input surfaces
// (numeric slider, drag handles, auto-detect seeding) funnel through one
// Controller so two surfaces can never produce an inconsistent pair.
package trim

import (
	"sync"
)

// DefaultMinGapMs is the anti-collapse guard between the two boundaries.
// It is independent of the domain-specific duration rules.
const DefaultMinGapMs = 100

// Range is a trim selection in milliseconds against the decoded timeline.
// Invariant: 0 <= StartMs < EndMs.
type Range struct {
	StartMs int64
	EndMs   int64
}

// DurationMs returns the selected length in milliseconds.
func (r Range) DurationMs() int64 {
	return r.EndMs - r.StartMs
}

// DurationSec returns the selected length in seconds.
func (r Range) DurationSec() float64 {
	return float64(r.EndMs-r.StartMs) / 1000
}

// Limits are the domain-specific bounds the final selection must satisfy
// before it can be saved, e.g. 8-40s for voice samples, 50-100s for video.
type Limits struct {
	MinSec float64
	MaxSec float64
}

// Verdict classifies a range against its Limits.
type Verdict int

const (
	// Valid means the selection may be saved.
	Valid Verdict = iota
	// TooShort means the selection is below the minimum duration.
	TooShort
	// TooLong means the selection exceeds the maximum duration.
	TooLong
)

// String returns a wire-friendly name for the verdict.
func (v Verdict) String() string {
	switch v {
	case TooShort:
		return "TOO_SHORT"
	case TooLong:
		return "TOO_LONG"
	default:
		return "VALID"
	}
}

// Controller owns the current trim range for one session. It is safe for
// concurrent use from multiple input surfaces.
type Controller struct {
	mu         sync.Mutex
	durationMs int64
	minGapMs   int64
	limits     Limits
	r          Range
	seeded     bool
	touched    bool
}

// NewController creates a Controller over a timeline of durationSec
// seconds, initialized to the full range. A non-positive minGapMs falls
// back to DefaultMinGapMs.
func NewController(durationSec float64, minGapMs int64, limits Limits) *Controller {
	if minGapMs <= 0 {
		minGapMs = DefaultMinGapMs
	}
	durationMs := int64(durationSec * 1000)
	if durationMs < 0 {
		durationMs = 0
	}
	return &Controller{
		durationMs: durationMs,
		minGapMs:   minGapMs,
		limits:     limits,
		r:          Range{StartMs: 0, EndMs: durationMs},
	}
}

// Range returns a snapshot of the current selection.
func (c *Controller) Range() Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r
}

// DurationMs returns the timeline length in milliseconds.
func (c *Controller) DurationMs() int64 {
	return c.durationMs
}

// SetRange applies a direct update from the numeric slider. Both ends are
// clamped into [0, duration] and neither boundary may cross the other
// closer than the minimum gap: the boundary that moved yields.
func (c *Controller) SetRange(startMs, endMs int64) Range {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.clamp(startMs)
	end := c.clamp(endMs)

	if end-start < c.minGapMs {
		if start != c.r.StartMs {
			// The start handle moved: refuse to cross the end.
			start = end - c.minGapMs
		} else {
			end = start + c.minGapMs
		}
		start = c.clamp(start)
		end = c.clamp(end)
		if end-start < c.minGapMs {
			// Timeline shorter than the gap; pin to the whole of it.
			start, end = 0, c.durationMs
		}
	}

	c.r = Range{StartMs: start, EndMs: end}
	c.touched = true
	return c.r
}

// DragStart moves only the start boundary to the given fraction of the
// timeline, clamped so it never crosses the end boundary minus the gap.
func (c *Controller) DragStart(fraction float64) Range {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := c.fractionToMs(fraction)
	limit := c.r.EndMs - c.minGapMs
	if pos > limit {
		pos = limit
	}
	if pos < 0 {
		pos = 0
	}

	c.r.StartMs = pos
	c.touched = true
	return c.r
}

// DragEnd moves only the end boundary to the given fraction of the
// timeline, clamped so it never crosses the start boundary plus the gap.
func (c *Controller) DragEnd(fraction float64) Range {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := c.fractionToMs(fraction)
	limit := c.r.StartMs + c.minGapMs
	if pos < limit {
		pos = limit
	}
	if pos > c.durationMs {
		pos = c.durationMs
	}

	c.r.EndMs = pos
	c.touched = true
	return c.r
}

// Seed initializes the range from silence analysis boundaries, in seconds.
// It is a one-time path: once seeded, or once the user has made any manual
// edit, further seeding is ignored and manual input takes precedence.
// Reports whether the seed was applied.
func (c *Controller) Seed(startSec, endSec float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seeded || c.touched {
		return false
	}

	start := c.clamp(int64(startSec * 1000))
	end := c.clamp(int64(endSec * 1000))
	if end-start < c.minGapMs {
		end = c.clamp(start + c.minGapMs)
		if end-start < c.minGapMs {
			start, end = 0, c.durationMs
		}
	}

	c.r = Range{StartMs: start, EndMs: end}
	c.seeded = true
	return true
}

// SeedFull marks the controller as seeded with the full-duration range,
// used when silence analysis found nothing worth trimming.
func (c *Controller) SeedFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seeded || c.touched {
		return false
	}

	c.r = Range{StartMs: 0, EndMs: c.durationMs}
	c.seeded = true
	return true
}

// Validate checks the current selection against the domain limits.
// Validation never throws: it is a continuously evaluable verdict that
// gates the save action.
func (c *Controller) Validate() Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec := c.r.DurationSec()
	switch {
	case c.limits.MinSec > 0 && sec < c.limits.MinSec:
		return TooShort
	case c.limits.MaxSec > 0 && sec > c.limits.MaxSec:
		return TooLong
	default:
		return Valid
	}
}

// Limits returns the domain duration bounds.
func (c *Controller) Limits() Limits {
	return c.limits
}

func (c *Controller) clamp(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	if ms > c.durationMs {
		return c.durationMs
	}
	return ms
}

func (c *Controller) fractionToMs(fraction float64) int64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return int64(fraction * float64(c.durationMs))
}
