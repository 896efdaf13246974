package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitdayma123/trimcore/internal/trim"
)

// fakeTransport records the commands the controller issues.
type fakeTransport struct {
	plays  int
	pauses int
	seeks  []int64
}

func (f *fakeTransport) Play()          { f.plays++ }
func (f *fakeTransport) Pause()         { f.pauses++ }
func (f *fakeTransport) Seek(pos int64) { f.seeks = append(f.seeks, pos) }

func newTestController(durationSec float64) (*Controller, *fakeTransport, *trim.Controller) {
	tc := trim.NewController(durationSec, 100, trim.Limits{MinSec: 8, MaxSec: 40})
	ft := &fakeTransport{}
	return New(ft, tc, int64(durationSec*1000)), ft, tc
}

func TestStateMachine(t *testing.T) {
	c, _, _ := newTestController(30)
	assert.Equal(t, StateStopped, c.State())

	c.Play()
	assert.Equal(t, StatePlaying, c.State())

	c.Pause()
	assert.Equal(t, StatePaused, c.State())

	c.Play()
	assert.Equal(t, StatePlaying, c.State())

	c.Stop()
	assert.Equal(t, StateStopped, c.State())
}

func TestPause_OnlyFromPlaying(t *testing.T) {
	c, ft, _ := newTestController(30)

	c.Pause()
	assert.Equal(t, StateStopped, c.State())
	assert.Zero(t, ft.pauses)
}

func TestPlay_SnapsIntoRange(t *testing.T) {
	c, ft, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	c.Seek(20000) // outside the range
	c.Play()

	assert.Equal(t, int64(5000), c.Position())
	require.NotEmpty(t, ft.seeks)
	assert.Equal(t, int64(5000), ft.seeks[len(ft.seeks)-1])
	assert.Equal(t, 1, ft.plays)
}

func TestHandleTimeUpdate_LoopsPastRangeEnd(t *testing.T) {
	c, ft, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	c.Play()
	pos := c.HandleTimeUpdate(15050)

	assert.Equal(t, int64(5000), pos)
	assert.Equal(t, int64(5000), c.Position())
	assert.Contains(t, ft.seeks, int64(5000))
}

func TestHandleTimeUpdate_LoopsBeforeRangeStart(t *testing.T) {
	c, _, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	c.Play()
	pos := c.HandleTimeUpdate(2000)

	assert.Equal(t, int64(5000), pos)
}

func TestHandleTimeUpdate_InsideRangePassesThrough(t *testing.T) {
	c, _, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	c.Play()
	pos := c.HandleTimeUpdate(9000)

	assert.Equal(t, int64(9000), pos)
}

func TestHandleTimeUpdate_NoLoopWhileStopped(t *testing.T) {
	c, ft, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	// Not playing: ticks update position without loop correction.
	pos := c.HandleTimeUpdate(20000)

	assert.Equal(t, int64(20000), pos)
	assert.Empty(t, ft.seeks)
}

func TestSkipBy_ClampsToTimelineNotRange(t *testing.T) {
	c, _, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	c.Seek(14000)
	c.SkipBy(10) // 24000ms: outside the range but inside the timeline

	assert.Equal(t, int64(24000), c.Position())

	c.SkipBy(100)
	assert.Equal(t, int64(30000), c.Position())

	c.SkipBy(-100)
	assert.Equal(t, int64(0), c.Position())
}

func TestStop_RewindsToRangeStart(t *testing.T) {
	c, ft, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	c.Play()
	c.HandleTimeUpdate(9000)
	c.Stop()

	assert.Equal(t, int64(5000), c.Position())
	assert.GreaterOrEqual(t, ft.pauses, 1)
}

func TestHandleEnded(t *testing.T) {
	c, _, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	c.Play()
	c.HandleEnded()

	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, int64(5000), c.Position())
}

func TestObservers(t *testing.T) {
	c, _, tc := newTestController(30)
	tc.SetRange(5000, 15000)

	var states []State
	var positions []int64
	c.Register(Observers{
		OnStateChange: func(s State) { states = append(states, s) },
		OnTimeUpdate:  func(p int64) { positions = append(positions, p) },
	})

	c.Play()
	c.HandleTimeUpdate(9000)
	c.Pause()

	assert.Equal(t, []State{StatePlaying, StatePaused}, states)
	assert.Contains(t, positions, int64(9000))

	// After deregistration no callbacks fire.
	c.Deregister()
	c.Play()
	c.HandleTimeUpdate(10000)
	assert.Equal(t, []State{StatePlaying, StatePaused}, states)
	assert.NotContains(t, positions, int64(10000))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "PLAYING", StatePlaying.String())
	assert.Equal(t, "PAUSED", StatePaused.String())
}
