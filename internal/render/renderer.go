// Package render materializes the selected trim range into downloadable
// output: a 16-bit PCM WAV slice for audio sessions, a re-encoded WebM
// clip for video sessions.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/arpitdayma123/trimcore/internal/media"
	"github.com/arpitdayma123/trimcore/internal/trim"
)

var (
	// ErrNoSource indicates the session has no decoded media to render.
	ErrNoSource = errors.New("render: no source media")
	// ErrCaptureUnavailable indicates the video encoding backend is not
	// installed on this host.
	ErrCaptureUnavailable = errors.New("render: capture backend unavailable")
	// ErrRenderFailed wraps encoder failures.
	ErrRenderFailed = errors.New("render: render failed")
)

// Result is a finished render. Exactly one of Data or Path is set: audio
// renders return bytes in memory, video renders write a file.
type Result struct {
	Data            []byte
	Path            string
	DurationSeconds float64
}

// AudioRenderer slices a decoded buffer to the trim range and encodes it
// as WAV. The slice is sample-exact: boundaries are converted to frame
// indices against the buffer's own sample rate.
type AudioRenderer struct{}

// NewAudioRenderer creates an AudioRenderer.
func NewAudioRenderer() *AudioRenderer {
	return &AudioRenderer{}
}

// Render extracts rng from buf and encodes the slice as 16-bit PCM WAV.
func (a *AudioRenderer) Render(buf *media.Buffer, rng trim.Range) (*Result, error) {
	if buf == nil || buf.NumChannels() == 0 {
		return nil, ErrNoSource
	}

	startSec := float64(rng.StartMs) / 1000
	endSec := float64(rng.EndMs) / 1000

	startFrame := int(startSec * float64(buf.SampleRate))
	frameCount := int((endSec - startSec) * float64(buf.SampleRate))

	total := buf.NumFrames()
	if startFrame < 0 {
		startFrame = 0
	}
	if startFrame > total {
		startFrame = total
	}
	if startFrame+frameCount > total {
		frameCount = total - startFrame
	}
	if frameCount <= 0 {
		return nil, fmt.Errorf("%w: empty slice (%dms..%dms)", ErrRenderFailed, rng.StartMs, rng.EndMs)
	}

	sliced := &media.Buffer{
		SampleRate: buf.SampleRate,
		Channels:   make([][]float64, buf.NumChannels()),
		Duration:   float64(frameCount) / float64(buf.SampleRate),
	}
	for c := range buf.Channels {
		sliced.Channels[c] = make([]float64, frameCount)
		copy(sliced.Channels[c], buf.Channels[c][startFrame:startFrame+frameCount])
	}

	return &Result{
		Data:            EncodeWAV(sliced),
		DurationSeconds: sliced.Duration,
	}, nil
}

// VideoRenderer re-encodes the trim range of a source video into WebM
// using the ffmpeg binary. Output is VP8 at a constant 30fps with the
// audio track stripped.
type VideoRenderer struct {
	ffmpegPath string
}

// NewVideoRenderer creates a VideoRenderer shelling out to ffmpegPath.
// An empty path resolves "ffmpeg" from PATH.
func NewVideoRenderer(ffmpegPath string) *VideoRenderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &VideoRenderer{ffmpegPath: ffmpegPath}
}

// Render cuts rng from the source video into outPath. On failure any
// partial output file is removed.
func (v *VideoRenderer) Render(ctx context.Context, handle *media.VideoHandle, rng trim.Range, outPath string) (*Result, error) {
	if handle == nil || handle.Path == "" {
		return nil, ErrNoSource
	}
	if _, err := exec.LookPath(v.ffmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrCaptureUnavailable, v.ffmpegPath)
	}

	startSec := float64(rng.StartMs) / 1000
	endSec := float64(rng.EndMs) / 1000

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %v", ErrRenderFailed, err)
	}

	args := []string{
		"-hide_banner",
		"-y",
		"-ss", formatSeconds(startSec),
		"-to", formatSeconds(endSec),
		"-i", handle.Path,
		"-c:v", "libvpx",
		"-b:v", "1M",
		"-r", "30",
		"-an",
		outPath,
	}

	cmd := exec.CommandContext(ctx, v.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("%w: %v: %s", ErrRenderFailed, err, lastLine(string(out)))
	}

	return &Result{
		Path:            outPath,
		DurationSeconds: endSec - startSec,
	}, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func lastLine(s string) string {
	var last string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if line := s[start:i]; line != "" {
				last = line
			}
			start = i + 1
		}
	}
	if line := s[start:]; line != "" {
		last = line
	}
	return last
}
