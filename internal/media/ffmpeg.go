package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// FFmpegDecoder implements Decoder and FrameExtractor using the ffmpeg CLI.
type FFmpegDecoder struct {
	ffmpegPath string
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegDecoder(ffmpegPath string) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath}
}

// DecodeAudio decodes the full file into per-channel float samples.
// ffmpeg emits raw little-endian float32 PCM on stdout at the source's
// native sample rate and channel count; the stream info needed to
// deinterleave the PCM is parsed from stderr.
func (d *FFmpegDecoder) DecodeAudio(ctx context.Context, src Source) (*Buffer, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-i", src.Path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrDecode, err, lastLine(stderr.String()))
	}

	sampleRate, channels, err := parseAudioStreamInfo(stderr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	chans, err := deinterleaveF32LE(stdout.Bytes(), channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(chans[0]) == 0 {
		return nil, fmt.Errorf("%w: no samples decoded", ErrDecode)
	}

	return &Buffer{
		SampleRate: sampleRate,
		Channels:   chans,
		Duration:   float64(len(chans[0])) / float64(sampleRate),
	}, nil
}

// ProbeVideo waits for metadata of a video file to become available.
func (d *FFmpegDecoder) ProbeVideo(ctx context.Context, src Source) (*VideoHandle, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-i", src.Path,
		"-f", "null",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg exits non-zero with a null muxer; the metadata on stderr is
	// what matters here.
	_ = cmd.Run()

	output := stderr.String()
	duration, err := parseDuration(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: zero duration", ErrDecode)
	}

	width, height, err := parseVideoDimensions(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return &VideoHandle{
		Path:     src.Path,
		Duration: duration,
		Width:    width,
		Height:   height,
	}, nil
}

// ExtractFrameAt seeks to atSec and captures a single frame as JPEG bytes.
func (d *FFmpegDecoder) ExtractFrameAt(ctx context.Context, videoPath string, atSec float64) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-ss", fmt.Sprintf("%.3f", atSec),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract frame at %.3fs: %w: %s", atSec, err, lastLine(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("extract frame at %.3fs: empty capture", atSec)
	}

	return stdout.Bytes(), nil
}

var (
	audioStreamRe = regexp.MustCompile(`Audio:.*?(\d+) Hz,\s*([^,]+)`)
	videoSizeRe   = regexp.MustCompile(`Video:.*?,\s*(\d{2,5})x(\d{2,5})`)
	durationRe    = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	channelsRe    = regexp.MustCompile(`^(\d+) channels`)
)

// parseAudioStreamInfo extracts sample rate and channel count from ffmpeg
// stream info output.
func parseAudioStreamInfo(output string) (sampleRate, channels int, err error) {
	matches := audioStreamRe.FindStringSubmatch(output)
	if len(matches) < 3 {
		return 0, 0, fmt.Errorf("no audio stream found in ffmpeg output")
	}

	sampleRate, err = strconv.Atoi(matches[1])
	if err != nil || sampleRate <= 0 {
		return 0, 0, fmt.Errorf("invalid sample rate %q", matches[1])
	}

	layout := strings.TrimSpace(matches[2])
	switch {
	case layout == "mono":
		channels = 1
	case layout == "stereo":
		channels = 2
	case channelsRe.MatchString(layout):
		channels, _ = strconv.Atoi(channelsRe.FindStringSubmatch(layout)[1])
	case layout == "5.1" || layout == "5.1(side)":
		channels = 6
	default:
		return 0, 0, fmt.Errorf("unrecognized channel layout %q", layout)
	}
	if channels <= 0 {
		return 0, 0, fmt.Errorf("invalid channel count in layout %q", layout)
	}

	return sampleRate, channels, nil
}

// parseVideoDimensions extracts the pixel dimensions of the first video stream.
func parseVideoDimensions(output string) (width, height int, err error) {
	matches := videoSizeRe.FindStringSubmatch(output)
	if len(matches) < 3 {
		return 0, 0, fmt.Errorf("no video stream dimensions found in ffmpeg output")
	}
	width, _ = strconv.Atoi(matches[1])
	height, _ = strconv.Atoi(matches[2])
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %sx%s", matches[1], matches[2])
	}
	return width, height, nil
}

// parseDuration extracts the duration in seconds from ffmpeg output.
// Looking for: "Duration: HH:MM:SS.ms".
func parseDuration(output string) (float64, error) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, fmt.Errorf("could not parse duration from ffmpeg output")
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat(matches[4], 64)

	divisor := 1.0
	for i := 0; i < len(matches[4]); i++ {
		divisor *= 10
	}

	return hours*3600 + minutes*60 + seconds + frac/divisor, nil
}

// deinterleaveF32LE splits raw interleaved little-endian float32 PCM into
// per-channel float64 slices.
func deinterleaveF32LE(data []byte, channels int) ([][]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	frameSize := 4 * channels
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("PCM data length %d is not a multiple of frame size %d", len(data), frameSize)
	}

	frames := len(data) / frameSize
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		base := i * frameSize
		for c := 0; c < channels; c++ {
			bits := binary.LittleEndian.Uint32(data[base+c*4:])
			out[c][i] = float64(math.Float32frombits(bits))
		}
	}

	return out, nil
}

// lastLine returns the last non-empty line of s, for compact error messages.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// Compile-time interface checks.
var (
	_ Decoder        = (*FFmpegDecoder)(nil)
	_ FrameExtractor = (*FFmpegDecoder)(nil)
)
