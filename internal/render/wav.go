package render

import (
	"encoding/binary"
	"fmt"

	"github.com/arpitdayma123/trimcore/internal/media"
)

// wavHeaderSize is the byte size of the RIFF header plus fmt chunk up to
// the start of the data chunk payload.
const wavHeaderSize = 44

// EncodeWAV serializes a buffer into a WAV container: standard RIFF/WAVE
// header, 16-bit PCM, interleaved samples clamped to [-1, 1] before
// quantization, little-endian throughout.
func EncodeWAV(buf *media.Buffer) []byte {
	channels := buf.NumChannels()
	frames := buf.NumFrames()
	dataLen := frames * channels * 2
	out := make([]byte, wavHeaderSize+dataLen)

	byteRate := buf.SampleRate * channels * 2
	blockAlign := channels * 2

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(buf.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))

	offset := wavHeaderSize
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(out[offset:], uint16(quantize(buf.Channels[c][i])))
			offset += 2
		}
	}

	return out
}

// DecodeWAV parses a 16-bit PCM WAV container back into a buffer. It
// exists for round-trip verification of encoded output.
func DecodeWAV(data []byte) (*media.Buffer, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("wav: file too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("wav: not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
		haveFmt    bool
	)

	// Walk the chunk list; fmt and data may be separated by others.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("wav: chunk %q overruns file", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav: fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("wav: unsupported audio format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt || pcm == nil {
		return nil, fmt.Errorf("wav: missing fmt or data chunk")
	}
	if bits != 16 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid fmt (channels=%d, rate=%d)", channels, sampleRate)
	}

	frameSize := channels * 2
	if len(pcm)%frameSize != 0 {
		return nil, fmt.Errorf("wav: data length %d is not frame aligned", len(pcm))
	}

	frames := len(pcm) / frameSize
	chans := make([][]float64, channels)
	for c := range chans {
		chans[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * frameSize
		for c := 0; c < channels; c++ {
			v := int16(binary.LittleEndian.Uint16(pcm[base+c*2:]))
			chans[c][i] = float64(v) / 32767
		}
	}

	return &media.Buffer{
		SampleRate: sampleRate,
		Channels:   chans,
		Duration:   float64(frames) / float64(sampleRate),
	}, nil
}

// quantize clamps a sample to [-1, 1] and scales it to the int16 range.
func quantize(s float64) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}
