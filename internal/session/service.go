package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/arpitdayma123/trimcore/internal/media"
	"github.com/arpitdayma123/trimcore/internal/notify"
	"github.com/arpitdayma123/trimcore/internal/playback"
	"github.com/arpitdayma123/trimcore/internal/render"
	"github.com/arpitdayma123/trimcore/internal/silence"
	"github.com/arpitdayma123/trimcore/internal/storage"
	"github.com/arpitdayma123/trimcore/internal/trim"
	"github.com/arpitdayma123/trimcore/internal/waveform"
)

// Static errors for session operations.
var (
	// ErrInvalidKind is returned for an unknown session kind.
	ErrInvalidKind = errors.New("session: invalid kind")
	// ErrNotReady is returned when an operation requires a READY session.
	ErrNotReady = errors.New("session: not ready")
	// ErrRangeTooShort is returned when the selection is below the minimum duration.
	ErrRangeTooShort = errors.New("session: selection too short")
	// ErrRangeTooLong is returned when the selection exceeds the maximum duration.
	ErrRangeTooLong = errors.New("session: selection too long")
	// ErrUnknownAction is returned for an unrecognized playback action.
	ErrUnknownAction = errors.New("session: unknown playback action")
)

// Playback actions accepted by the Playback operation.
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionStop  = "stop"
	ActionSeek  = "seek"
	ActionSkip  = "skip"
	ActionTick  = "tick"
)

// Edge names for drag updates.
const (
	EdgeStart = "start"
	EdgeEnd   = "end"
)

// Service orchestrates the trimming workflow: it owns decode and analysis,
// gates range and playback operations on session state, and drives the
// final render through storage and notification.
type Service struct {
	repo     Repository
	store    storage.Storage
	decoder  media.Decoder
	frames   media.FrameExtractor
	audio    *render.AudioRenderer
	video    *render.VideoRenderer
	notifier notify.Notifier
	logger   *slog.Logger

	detect          silence.Options
	detectThreshold float64
	waveformColumns int
	thumbnailCount  int
	minGapMs        int64
	voiceLimits     trim.Limits
	videoLimits     trim.Limits
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier sets the completion notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithFrameExtractor sets the thumbnail frame extractor for video sessions.
func WithFrameExtractor(ex media.FrameExtractor) Option {
	return func(s *Service) { s.frames = ex }
}

// WithVideoRenderer sets the video render backend.
func WithVideoRenderer(v *render.VideoRenderer) Option {
	return func(s *Service) { s.video = v }
}

// WithDetectOptions sets the silence detection tuning.
func WithDetectOptions(opts silence.Options) Option {
	return func(s *Service) { s.detect = opts }
}

// WithDetectThreshold sets the silence amplitude threshold.
func WithDetectThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.detectThreshold = t
		}
	}
}

// WithWaveformColumns sets the number of envelope columns.
func WithWaveformColumns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.waveformColumns = n
		}
	}
}

// WithThumbnailCount sets the number of video preview frames.
func WithThumbnailCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.thumbnailCount = n
		}
	}
}

// WithMinGap sets the minimum gap between trim boundaries.
func WithMinGap(ms int64) Option {
	return func(s *Service) {
		if ms > 0 {
			s.minGapMs = ms
		}
	}
}

// WithVoiceLimits sets the duration band for voice selections.
func WithVoiceLimits(l trim.Limits) Option {
	return func(s *Service) { s.voiceLimits = l }
}

// WithVideoLimits sets the duration band for video selections.
func WithVideoLimits(l trim.Limits) Option {
	return func(s *Service) { s.videoLimits = l }
}

// NewService creates a Service with the given core dependencies.
func NewService(repo Repository, store storage.Storage, decoder media.Decoder, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		store:           store,
		decoder:         decoder,
		audio:           render.NewAudioRenderer(),
		video:           render.NewVideoRenderer(""),
		notifier:        notify.NopNotifier{},
		logger:          slog.Default(),
		detect:          silence.DefaultOptions(),
		detectThreshold: 0.01,
		waveformColumns: 200,
		thumbnailCount:  10,
		minGapMs:        trim.DefaultMinGapMs,
		voiceLimits:     trim.Limits{MinSec: 8, MaxSec: 40},
		videoLimits:     trim.Limits{MinSec: 50, MaxSec: 100},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create saves the upload to temp storage and registers a new session in
// DECODING state. Decode and analysis run in Prepare, typically on a
// background goroutine.
func (s *Service) Create(ctx context.Context, kind Kind, mimeType string, data io.Reader) (*Session, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	sess := New(kind)
	sess.SourceMIME = mimeType

	path, err := s.store.SaveTemp(ctx, sess.ID, data)
	if err != nil {
		return nil, fmt.Errorf("session: save upload: %w", err)
	}
	sess.SourcePath = path
	sess.AddTempPath(path)

	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		slog.String("session_id", sess.ID),
		slog.String("kind", string(kind)),
		slog.String("source", path),
	)

	return sess, nil
}

// Prepare decodes and analyzes the uploaded media, seeds the trim range,
// and moves the session to READY. On failure the session moves to FAILED
// with the error recorded.
func (s *Service) Prepare(ctx context.Context, sessionID string) error {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	var prepErr error
	switch sess.Kind {
	case KindVoice:
		prepErr = s.prepareVoice(ctx, sess)
	case KindVideo:
		prepErr = s.prepareVideo(ctx, sess)
	default:
		prepErr = fmt.Errorf("%w: %q", ErrInvalidKind, sess.Kind)
	}

	if prepErr != nil {
		s.logger.Error("session prepare failed",
			slog.String("session_id", sess.ID),
			slog.String("error", prepErr.Error()),
		)
		if err := sess.Fail(prepErr.Error()); err != nil {
			s.logger.Warn("could not mark session failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
		return prepErr
	}

	if err := sess.TransitionTo(StatusReady); err != nil {
		// Cancelled while decoding; leave the terminal state alone.
		return err
	}

	s.logger.Info("session ready",
		slog.String("session_id", sess.ID),
		slog.Float64("duration_sec", sess.DurationSec),
	)
	return nil
}

func (s *Service) prepareVoice(ctx context.Context, sess *Session) error {
	buf, err := s.decoder.DecodeAudio(ctx, media.Source{Path: sess.SourcePath, MIME: sess.SourceMIME})
	if err != nil {
		return err
	}

	det := silence.NewDetector(s.detect)
	analysis := det.Detect(buf, s.detectThreshold)
	vol := det.AverageVolume(buf)
	envelope := waveform.Build(buf, s.waveformColumns)

	tc := trim.NewController(buf.Duration, s.minGapMs, s.voiceLimits)
	if det.NeedsTrimming(analysis.StartTime, analysis.EndTime, buf.Duration) {
		tc.Seed(analysis.StartTime, analysis.EndTime)
	} else {
		tc.SeedFull()
	}
	pc := playback.New(nil, tc, tc.DurationMs())

	sess.SetMedia(buf, &analysis, &vol, envelope)
	sess.SetControllers(tc, pc)
	return nil
}

func (s *Service) prepareVideo(ctx context.Context, sess *Session) error {
	handle, err := s.decoder.ProbeVideo(ctx, media.Source{Path: sess.SourcePath, MIME: sess.SourceMIME})
	if err != nil {
		return err
	}

	var thumbs *waveform.ThumbnailStrip
	if s.frames != nil {
		thumbs, err = waveform.Thumbnails(ctx, s.frames, handle, s.thumbnailCount)
		if err != nil {
			// Thumbnails are presentation sugar; the trim flow works without them.
			s.logger.Warn("thumbnail extraction failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
			thumbs = nil
		}
	}

	tc := trim.NewController(handle.Duration, s.minGapMs, s.videoLimits)
	tc.SeedFull()
	pc := playback.New(nil, tc, tc.DurationMs())

	sess.SetVideo(handle, thumbs)
	sess.SetControllers(tc, pc)
	return nil
}

// Get retrieves a session by ID.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	return s.repo.FindByID(ctx, sessionID)
}

// List returns all sessions.
func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.repo.List(ctx)
}

// UpdateRange applies a numeric range update. Requires a READY session.
func (s *Service) UpdateRange(ctx context.Context, sessionID string, startMs, endMs int64) (trim.Range, error) {
	sess, err := s.readySession(ctx, sessionID)
	if err != nil {
		return trim.Range{}, err
	}
	return sess.Trim.SetRange(startMs, endMs), nil
}

// Drag moves one boundary to a fraction of the timeline. Requires a READY
// session.
func (s *Service) Drag(ctx context.Context, sessionID, edge string, fraction float64) (trim.Range, error) {
	sess, err := s.readySession(ctx, sessionID)
	if err != nil {
		return trim.Range{}, err
	}

	switch edge {
	case EdgeStart:
		return sess.Trim.DragStart(fraction), nil
	case EdgeEnd:
		return sess.Trim.DragEnd(fraction), nil
	default:
		return trim.Range{}, fmt.Errorf("session: unknown drag edge %q", edge)
	}
}

// PlaybackState is the transport view returned by playback operations.
type PlaybackState struct {
	State      playback.State
	PositionMs int64
}

// Playback executes a transport action. Requires a READY session.
// The value argument carries the seek position in milliseconds for "seek",
// the offset in seconds for "skip", and the reported position in
// milliseconds for "tick".
func (s *Service) Playback(ctx context.Context, sessionID, action string, value float64) (PlaybackState, error) {
	sess, err := s.readySession(ctx, sessionID)
	if err != nil {
		return PlaybackState{}, err
	}

	pc := sess.Playback
	switch action {
	case ActionPlay:
		pc.Play()
	case ActionPause:
		pc.Pause()
	case ActionStop:
		pc.Stop()
	case ActionSeek:
		pc.Seek(int64(value))
	case ActionSkip:
		pc.SkipBy(value)
	case ActionTick:
		pc.HandleTimeUpdate(int64(value))
	default:
		return PlaybackState{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	return PlaybackState{State: pc.State(), PositionMs: pc.Position()}, nil
}

// Render validates the selection, produces the final output, publishes it,
// and notifies the configured webhook. The verdict is checked before any
// state transition so an invalid range leaves the session READY.
func (s *Service) Render(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	status := sess.GetStatus()
	if status != StatusReady && status != StatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrNotReady, status)
	}

	switch sess.Trim.Validate() {
	case trim.TooShort:
		return nil, ErrRangeTooShort
	case trim.TooLong:
		return nil, ErrRangeTooLong
	}

	if err := sess.TransitionTo(StatusRendering); err != nil {
		return nil, err
	}

	// One snapshot of the range; edits during the render do not shift the cut.
	rng := sess.Trim.Range()

	url, duration, err := s.renderAndPublish(ctx, sess, rng)
	if err != nil {
		s.logger.Error("render failed",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		if ferr := sess.Fail(err.Error()); ferr != nil {
			s.logger.Warn("could not mark session failed",
				slog.String("session_id", sess.ID),
				slog.String("error", ferr.Error()),
			)
		}
		return nil, err
	}

	sess.SetResult(url, duration)
	if err := sess.TransitionTo(StatusCompleted); err != nil {
		// Cancelled mid-render; the published output is orphaned, log it.
		s.logger.Warn("session cancelled during render",
			slog.String("session_id", sess.ID),
			slog.String("orphaned_result", url),
		)
		return nil, err
	}

	s.logger.Info("render completed",
		slog.String("session_id", sess.ID),
		slog.String("result_url", url),
		slog.Float64("duration_sec", duration),
	)

	ev := notify.Event{
		SessionID:       sess.ID,
		Kind:            string(sess.Kind),
		ResultURL:       url,
		DurationSeconds: duration,
		RenderedAt:      time.Now().UTC(),
	}
	go func() {
		// Detached from the request; delivery failure must not fail the render.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		defer cancel()
		if err := s.notifier.Notify(nctx, ev); err != nil {
			s.logger.Warn("completion webhook failed",
				slog.String("session_id", ev.SessionID),
				slog.String("error", err.Error()),
			)
		}
	}()

	return sess, nil
}

func (s *Service) renderAndPublish(ctx context.Context, sess *Session, rng trim.Range) (string, float64, error) {
	switch sess.Kind {
	case KindVoice:
		res, err := s.audio.Render(sess.Buffer, rng)
		if err != nil {
			return "", 0, err
		}
		key := fmt.Sprintf("sessions/%s/%s.wav", sess.ID, uuid.NewString())
		url, err := s.store.Upload(ctx, key, bytes.NewReader(res.Data))
		if err != nil {
			return "", 0, fmt.Errorf("session: publish render: %w", err)
		}
		return url, res.DurationSeconds, nil

	case KindVideo:
		outPath := filepath.Join(filepath.Dir(sess.SourcePath), sess.ID+"_render.webm")
		res, err := s.video.Render(ctx, sess.Video, rng, outPath)
		if err != nil {
			return "", 0, err
		}
		sess.AddTempPath(res.Path)

		f, err := s.store.LoadTemp(ctx, res.Path)
		if err != nil {
			return "", 0, fmt.Errorf("session: read render output: %w", err)
		}
		defer f.Close()

		key := fmt.Sprintf("sessions/%s/%s.webm", sess.ID, uuid.NewString())
		url, err := s.store.Upload(ctx, key, f)
		if err != nil {
			return "", 0, fmt.Errorf("session: publish render: %w", err)
		}
		return url, res.DurationSeconds, nil

	default:
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidKind, sess.Kind)
	}
}

// Cancel moves the session to CANCELLED and removes its temp files.
// Cleanup failures are logged, not returned.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := sess.Cancel(); err != nil {
		return err
	}
	if sess.Playback != nil {
		sess.Playback.Deregister()
	}

	s.cleanup(ctx, sess)

	s.logger.Info("session cancelled", slog.String("session_id", sess.ID))
	return nil
}

// Delete cancels a session if still active and removes it from the
// repository. Terminal sessions are simply removed.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if !sess.IsTerminal() {
		if err := sess.Cancel(); err != nil {
			return err
		}
	}
	if sess.Playback != nil {
		sess.Playback.Deregister()
	}
	s.cleanup(ctx, sess)

	return s.repo.Delete(ctx, sessionID)
}

func (s *Service) cleanup(ctx context.Context, sess *Session) {
	paths := sess.Release()
	if len(paths) == 0 {
		return
	}
	if err := s.store.CleanupTemp(ctx, paths); err != nil {
		s.logger.Warn("temp cleanup failed",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) readySession(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if status := sess.GetStatus(); status != StatusReady {
		return nil, fmt.Errorf("%w: status %s", ErrNotReady, status)
	}
	return sess, nil
}
