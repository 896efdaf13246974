// Package waveform derives coarse visual summaries of decoded media: a
// downsampled amplitude envelope for audio and a sampled thumbnail strip
// for video.
package waveform

import (
	"github.com/arpitdayma123/trimcore/internal/media"
)

// Build partitions the first channel into columns equal blocks, computes
// the mean absolute amplitude per block, and normalizes so the tallest bar
// reaches 1.0. It is a pure function of the buffer: the overlay drawn on
// top of the envelope changes with the trim range, the envelope itself
// does not.
func Build(buf *media.Buffer, columns int) []float64 {
	frames := buf.NumFrames()
	if columns <= 0 || frames == 0 {
		return nil
	}
	if columns > frames {
		columns = frames
	}

	samples := buf.Channels[0]
	out := make([]float64, columns)

	var maxVal float64
	for i := 0; i < columns; i++ {
		start := i * frames / columns
		end := (i + 1) * frames / columns
		if end <= start {
			end = start + 1
		}

		var sum float64
		for _, s := range samples[start:end] {
			if s < 0 {
				sum -= s
			} else {
				sum += s
			}
		}
		v := sum / float64(end-start)
		out[i] = v
		if v > maxVal {
			maxVal = v
		}
	}

	if maxVal > 0 {
		scale := 1 / maxVal
		for i := range out {
			out[i] *= scale
		}
	}

	return out
}
