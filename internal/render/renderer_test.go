package render

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitdayma123/trimcore/internal/media"
	"github.com/arpitdayma123/trimcore/internal/trim"
)

func checkFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed, skipping integration test")
	}
	return path
}

func TestAudioRenderer_SlicesRange(t *testing.T) {
	r := NewAudioRenderer()
	buf := sineBuffer(16000, 1, 12, 0.5)

	res, err := r.Render(buf, trim.Range{StartMs: 1000, EndMs: 11500})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.InDelta(t, 10.5, res.DurationSeconds, 1.0/16000, "duration within one sample")
	assert.Empty(t, res.Path)

	decoded, err := DecodeWAV(res.Data)
	require.NoError(t, err)
	assert.Equal(t, 16000, decoded.SampleRate)
	assert.Equal(t, int(10.5*16000), decoded.NumFrames())
}

func TestAudioRenderer_ClampsToBuffer(t *testing.T) {
	r := NewAudioRenderer()
	buf := sineBuffer(16000, 2, 5, 0.5)

	// End past the buffer: slice clamps to what exists.
	res, err := r.Render(buf, trim.Range{StartMs: 4000, EndMs: 9000})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.DurationSeconds, 1.0/16000)
}

func TestAudioRenderer_Errors(t *testing.T) {
	r := NewAudioRenderer()

	_, err := r.Render(nil, trim.Range{EndMs: 1000})
	assert.ErrorIs(t, err, ErrNoSource)

	buf := sineBuffer(16000, 1, 5, 0.5)
	_, err = r.Render(buf, trim.Range{StartMs: 6000, EndMs: 7000})
	assert.ErrorIs(t, err, ErrRenderFailed)
}

func TestAudioRenderer_PreservesSourceBuffer(t *testing.T) {
	r := NewAudioRenderer()
	buf := sineBuffer(16000, 1, 2, 0.5)
	before := buf.Channels[0][100]

	_, err := r.Render(buf, trim.Range{StartMs: 0, EndMs: 1000})
	require.NoError(t, err)

	assert.Equal(t, before, buf.Channels[0][100], "render must not mutate the source")
}

func TestVideoRenderer_Errors(t *testing.T) {
	ctx := context.Background()

	v := NewVideoRenderer("")
	_, err := v.Render(ctx, nil, trim.Range{EndMs: 1000}, filepath.Join(t.TempDir(), "out.webm"))
	assert.ErrorIs(t, err, ErrNoSource)

	v = NewVideoRenderer("definitely-not-ffmpeg")
	handle := &media.VideoHandle{Path: "/tmp/in.mp4", Duration: 60}
	_, err = v.Render(ctx, handle, trim.Range{EndMs: 1000}, filepath.Join(t.TempDir(), "out.webm"))
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
}

func TestVideoRenderer_RendersClip(t *testing.T) {
	ffmpeg := checkFFmpeg(t)
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "src.mp4")
	gen := exec.Command(ffmpeg,
		"-hide_banner", "-f", "lavfi",
		"-i", "testsrc=duration=4:size=320x240:rate=30",
		"-pix_fmt", "yuv420p", src)
	require.NoError(t, gen.Run(), "generating test video")

	v := NewVideoRenderer(ffmpeg)
	out := filepath.Join(dir, "clip.webm")
	res, err := v.Render(ctx, &media.VideoHandle{Path: src, Duration: 4}, trim.Range{StartMs: 500, EndMs: 2500}, out)
	require.NoError(t, err)

	assert.Equal(t, out, res.Path)
	assert.InDelta(t, 2.0, res.DurationSeconds, 1e-9)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestVideoRenderer_RemovesPartialOutputOnFailure(t *testing.T) {
	ffmpeg := checkFFmpeg(t)
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "corrupt.mp4")
	require.NoError(t, os.WriteFile(src, []byte("not a video"), 0o644))

	v := NewVideoRenderer(ffmpeg)
	out := filepath.Join(dir, "clip.webm")
	_, err := v.Render(ctx, &media.VideoHandle{Path: src, Duration: 4}, trim.Range{StartMs: 0, EndMs: 1000}, out)
	require.ErrorIs(t, err, ErrRenderFailed)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "partial output must be removed")
}
