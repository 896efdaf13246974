// Package media provides decoding of uploaded audio and video files into
// in-memory sample buffers and probed playable handles.
package media

import (
	"context"
	"errors"
)

// ErrDecode is returned when a source file cannot be decoded.
// Decode failures are not retryable without a different file; callers must
// not proceed to analysis, waveform building, or trimming.
var ErrDecode = errors.New("media: decode failed")

// Source describes an uploaded media file. It is immutable once created.
type Source struct {
	// Path is the location of the raw bytes on disk.
	Path string
	// MIME is the declared content type of the upload.
	MIME string
	// Size is the byte size of the file.
	Size int64
}

// Buffer is the decoded in-memory representation of an audio file.
// Samples are per-channel floats in the range [-1, 1].
type Buffer struct {
	// SampleRate is the number of frames per second.
	SampleRate int
	// Channels holds one sample slice per channel. All channels have the
	// same length.
	Channels [][]float64
	// Duration is the total length in seconds, derived from the frame
	// count and sample rate. Always > 0 for a successfully decoded buffer.
	Duration float64
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// NumFrames returns the number of frames per channel.
func (b *Buffer) NumFrames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// VideoHandle is a seekable playable handle for a video file. Frame pixel
// access is obtained on demand by seeking and capturing, not by bulk decode.
type VideoHandle struct {
	// Path is the location of the playable file on disk.
	Path string
	// Duration is the total length in seconds.
	Duration float64
	// Width and Height are the pixel dimensions of the video stream.
	Width  int
	Height int
}

// Decoder loads raw media files into directly addressable representations.
type Decoder interface {
	// DecodeAudio reads the full file and decodes it into a sample buffer.
	// Returns an error wrapping ErrDecode when the file cannot be decoded.
	DecodeAudio(ctx context.Context, src Source) (*Buffer, error)

	// ProbeVideo creates a playable handle and waits for metadata
	// (duration, pixel dimensions) to become available.
	ProbeVideo(ctx context.Context, src Source) (*VideoHandle, error)
}

// FrameExtractor captures a single frame of a video at a given timestamp.
// Captures against one handle must be serialized by the caller: the single
// underlying playback position does not permit concurrent seeks.
type FrameExtractor interface {
	ExtractFrameAt(ctx context.Context, videoPath string, atSec float64) ([]byte, error)
}
