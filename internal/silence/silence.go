// Package silence analyzes decoded audio buffers for leading and trailing
// low-energy regions and for overall loudness adequacy.
package silence

import (
	"math"

	"github.com/arpitdayma123/trimcore/internal/media"
)

// Analysis holds the detected boundaries of non-silent content, in seconds
// against the buffer's timeline. It is computed once per decoded buffer and
// never recomputed on range changes.
type Analysis struct {
	// StartTime marks the end of leading silence.
	StartTime float64
	// EndTime marks the start of trailing silence.
	EndTime float64
}

// VolumeInfo summarizes the overall loudness of a buffer.
type VolumeInfo struct {
	// RMS is the root-mean-square amplitude over the full first channel.
	RMS float64
	// TooQuiet indicates the recording may be unusable.
	TooQuiet bool
}

// Options configures the detector. The thresholds are empirically chosen
// and tunable; see config for the environment bindings.
type Options struct {
	// WindowMs is the analysis window length in milliseconds.
	WindowMs int
	// StepMs is the window step in milliseconds.
	StepMs int
	// BackoffMs is how far detected boundaries back off from the first
	// loud window, to avoid clipping the attack of the first sound.
	BackoffMs int
	// MinRemovalSec is the minimum combined silence, in seconds, that
	// makes auto-trimming worthwhile.
	MinRemovalSec float64
	// QuietRMS is the RMS amplitude below which a recording is flagged
	// as too quiet.
	QuietRMS float64
}

// DefaultOptions returns the default detector options.
func DefaultOptions() Options {
	return Options{
		WindowMs:      30,
		StepMs:        10,
		BackoffMs:     100,
		MinRemovalSec: 0.3,
		QuietRMS:      0.005,
	}
}

// Detector finds leading and trailing silence in decoded audio.
type Detector struct {
	opts Options
}

// NewDetector creates a Detector. Zero or negative option fields fall back
// to the defaults.
func NewDetector(opts Options) *Detector {
	def := DefaultOptions()
	if opts.WindowMs <= 0 {
		opts.WindowMs = def.WindowMs
	}
	if opts.StepMs <= 0 {
		opts.StepMs = def.StepMs
	}
	if opts.BackoffMs <= 0 {
		opts.BackoffMs = def.BackoffMs
	}
	if opts.MinRemovalSec <= 0 {
		opts.MinRemovalSec = def.MinRemovalSec
	}
	if opts.QuietRMS <= 0 {
		opts.QuietRMS = def.QuietRMS
	}
	return &Detector{opts: opts}
}

// Detect slides an energy window over the first channel and returns the
// boundaries of non-silent content. The effective threshold is
// threshold*0.8; windows whose mean absolute amplitude exceed it count as
// loud. Boundaries back off by BackoffMs so attacks and decays survive the
// trim. The result is clamped so StartTime <= duration and
// EndTime >= StartTime + 0.1s.
func (d *Detector) Detect(buf *media.Buffer, threshold float64) Analysis {
	duration := buf.Duration
	if buf.NumFrames() == 0 || buf.SampleRate <= 0 {
		return Analysis{StartTime: 0, EndTime: duration}
	}

	samples := buf.Channels[0]
	n := len(samples)
	rate := buf.SampleRate

	win := rate * d.opts.WindowMs / 1000
	if win < 1 {
		win = 1
	}
	step := rate * d.opts.StepMs / 1000
	if step < 1 {
		step = 1
	}
	backoff := rate * d.opts.BackoffMs / 1000
	effective := threshold * 0.8

	startFrame, startFound := scanForward(samples, win, step, effective)
	if !startFound {
		startFrame, startFound = scanSamplesForward(samples, effective)
	}
	if !startFound {
		startFrame = 0
	}
	startFrame -= backoff
	if startFrame < 0 {
		startFrame = 0
	}

	endFrame, endFound := scanBackward(samples, win, step, effective)
	if !endFound {
		endFrame, endFound = scanSamplesBackward(samples, effective)
	}
	if !endFound {
		endFrame = n
	}
	endFrame += backoff
	if endFrame > n {
		endFrame = n
	}

	startTime := float64(startFrame) / float64(rate)
	endTime := float64(endFrame) / float64(rate)

	if startTime > duration {
		startTime = duration
	}
	if endTime < startTime+0.1 {
		endTime = startTime + 0.1
	}

	return Analysis{StartTime: startTime, EndTime: endTime}
}

// NeedsTrimming reports whether auto-trimming is worth it: at least
// MinRemovalSec of combined leading and trailing silence would be removed.
// Already-clean recordings should not churn.
func (d *Detector) NeedsTrimming(startTime, endTime, duration float64) bool {
	return startTime+(duration-endTime) > d.opts.MinRemovalSec
}

// AverageVolume computes the RMS amplitude over the full first channel and
// flags recordings that fall below the quiet threshold.
func (d *Detector) AverageVolume(buf *media.Buffer) VolumeInfo {
	if buf.NumFrames() == 0 {
		return VolumeInfo{RMS: 0, TooQuiet: true}
	}

	samples := buf.Channels[0]
	var sumSquares float64
	for _, s := range samples {
		sumSquares += s * s
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	return VolumeInfo{
		RMS:      rms,
		TooQuiet: rms < d.opts.QuietRMS,
	}
}

// scanForward finds the start of the first window whose mean absolute
// amplitude exceeds the threshold.
func scanForward(samples []float64, win, step int, threshold float64) (int, bool) {
	for i := 0; i+win <= len(samples); i += step {
		if meanAbs(samples[i:i+win]) > threshold {
			return i, true
		}
	}
	return 0, false
}

// scanBackward finds the end of the last window whose mean absolute
// amplitude exceeds the threshold.
func scanBackward(samples []float64, win, step int, threshold float64) (int, bool) {
	for i := len(samples) - win; i >= 0; i -= step {
		if meanAbs(samples[i:i+win]) > threshold {
			return i + win, true
		}
	}
	return 0, false
}

// scanSamplesForward is the per-sample fallback when no window clears the
// threshold.
func scanSamplesForward(samples []float64, threshold float64) (int, bool) {
	for i, s := range samples {
		if math.Abs(s) > threshold {
			return i, true
		}
	}
	return 0, false
}

// scanSamplesBackward is the per-sample fallback for the trailing boundary.
func scanSamplesBackward(samples []float64, threshold float64) (int, bool) {
	for i := len(samples) - 1; i >= 0; i-- {
		if math.Abs(samples[i]) > threshold {
			return i + 1, true
		}
	}
	return 0, false
}

func meanAbs(window []float64) float64 {
	var sum float64
	for _, s := range window {
		sum += math.Abs(s)
	}
	return sum / float64(len(window))
}
