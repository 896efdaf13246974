package waveform

import (
	"context"
	"fmt"

	"github.com/arpitdayma123/trimcore/internal/media"
)

// ThumbnailStrip is a fixed-size sequence of captured frames with the
// timestamps they were taken at.
type ThumbnailStrip struct {
	// Frames holds one encoded image per sampled timestamp.
	Frames [][]byte
	// Timestamps are the capture positions in seconds, in order.
	Timestamps []float64
}

// Thumbnails samples n evenly spaced timestamps across the video and
// captures a frame at each. Captures are strictly serialized: one
// seek-and-capture completes before the next begins, because they race the
// single underlying playback position otherwise.
func Thumbnails(ctx context.Context, ex media.FrameExtractor, handle *media.VideoHandle, n int) (*ThumbnailStrip, error) {
	if n <= 0 {
		return nil, fmt.Errorf("thumbnail count must be positive, got %d", n)
	}

	strip := &ThumbnailStrip{
		Frames:     make([][]byte, 0, n),
		Timestamps: make([]float64, 0, n),
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("thumbnail capture cancelled: %w", err)
		}

		// Midpoint sampling keeps the first frame away from a black
		// fade-in and the last away from the stream tail.
		at := (float64(i) + 0.5) * handle.Duration / float64(n)

		frame, err := ex.ExtractFrameAt(ctx, handle.Path, at)
		if err != nil {
			return nil, fmt.Errorf("thumbnail %d of %d: %w", i+1, n, err)
		}

		strip.Frames = append(strip.Frames, frame)
		strip.Timestamps = append(strip.Timestamps, at)
	}

	return strip, nil
}
