// Package session provides the Session aggregate for interactive media
// trimming. A session owns one uploaded file from decode through analysis,
// range adjustment, preview playback, and final render.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/arpitdayma123/trimcore/internal/media"
	"github.com/arpitdayma123/trimcore/internal/playback"
	"github.com/arpitdayma123/trimcore/internal/session/id"
	"github.com/arpitdayma123/trimcore/internal/silence"
	"github.com/arpitdayma123/trimcore/internal/trim"
	"github.com/arpitdayma123/trimcore/internal/waveform"
)

// Kind distinguishes the two upload flows, which differ in analysis and
// in the duration band the final selection must satisfy.
type Kind string

const (
	// KindVoice is an audio upload trimmed to a voice sample.
	KindVoice Kind = "voice"
	// KindVideo is a video upload trimmed to an intro clip.
	KindVideo Kind = "video"
)

// IsValid returns true if the kind is valid.
func (k Kind) IsValid() bool {
	return k == KindVoice || k == KindVideo
}

// Status represents the current state of a Session.
type Status string

const (
	// StatusDecoding indicates the upload is being decoded and analyzed.
	StatusDecoding Status = "DECODING"
	// StatusReady indicates the session accepts range edits and playback.
	StatusReady Status = "READY"
	// StatusRendering indicates the final output is being produced.
	StatusRendering Status = "RENDERING"
	// StatusCompleted indicates the rendered output was published.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates decode or render encountered an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the session was discarded.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusDecoding:  {StatusReady, StatusFailed, StatusCancelled},
	StatusReady:     {StatusRendering, StatusFailed, StatusCancelled},
	StatusRendering: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {StatusRendering, StatusCancelled},
	StatusFailed:    {StatusCancelled},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the aggregate for one trimming workflow. The embedded trim
// and playback controllers are concurrency-safe on their own; the session
// mutex guards status and the analysis artifacts.
type Session struct {
	mu sync.RWMutex

	// ID is the unique identifier for this session.
	ID string
	// Kind selects the voice or video flow.
	Kind Kind
	// Status is the current session state.
	Status Status
	// Error contains any error message if the session failed.
	Error string

	// SourcePath is the temp file holding the original upload.
	SourcePath string
	// SourceMIME is the declared content type of the upload.
	SourceMIME string

	// Buffer holds the decoded audio (voice sessions).
	Buffer *media.Buffer
	// Video holds the probed video metadata (video sessions).
	Video *media.VideoHandle
	// DurationSec is the decoded timeline length in seconds.
	DurationSec float64

	// Analysis holds the detected silence boundaries (voice sessions).
	Analysis *silence.Analysis
	// Volume holds the loudness measurement (voice sessions).
	Volume *silence.VolumeInfo
	// Waveform is the normalized envelope for display (voice sessions).
	Waveform []float64
	// Thumbnails is the preview strip (video sessions).
	Thumbnails *waveform.ThumbnailStrip

	// Trim owns the selected range.
	Trim *trim.Controller
	// Playback owns the preview transport state.
	Playback *playback.Controller

	// ResultURL points at the published render.
	ResultURL string
	// ResultDurationSec is the rendered output length.
	ResultDurationSec float64

	// tempPaths are files to remove when the session is released.
	tempPaths []string
	released  bool

	// CreatedAt is when the session was created.
	CreatedAt time.Time
	// UpdatedAt is when the session was last updated.
	UpdatedAt time.Time
	// CompletedAt is when the render finished.
	CompletedAt time.Time
}

// New creates a new Session with a generated ID in DECODING status.
func New(kind Kind) *Session {
	return NewWithID(id.Generate(), kind)
}

// NewWithID creates a new Session with the specified ID in DECODING status.
// Useful for testing or when the ID needs to be externally generated.
func NewWithID(sessionID string, kind Kind) *Session {
	now := time.Now()
	return &Session{
		ID:        sessionID,
		Kind:      kind,
		Status:    StatusDecoding,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the session status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (s *Session) TransitionTo(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canTransition(s.Status, status) {
		return ErrInvalidTransition
	}

	s.Status = status
	s.UpdatedAt = time.Now()

	if status == StatusCompleted {
		s.CompletedAt = s.UpdatedAt
	}

	return nil
}

// Fail transitions the session to FAILED state with an error message.
// Returns ErrInvalidTransition if the transition is not allowed.
func (s *Session) Fail(errMsg string) error {
	s.mu.Lock()
	s.Error = errMsg
	s.mu.Unlock()
	return s.TransitionTo(StatusFailed)
}

// Cancel transitions the session to CANCELLED state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (s *Session) Cancel() error {
	return s.TransitionTo(StatusCancelled)
}

// GetStatus returns the current session status (thread-safe).
func (s *Session) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// IsTerminal returns true if the session is in a terminal state.
func (s *Session) IsTerminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status == StatusCompleted ||
		s.Status == StatusFailed ||
		s.Status == StatusCancelled
}

// SetMedia records the decode artifacts for a voice session.
func (s *Session) SetMedia(buf *media.Buffer, analysis *silence.Analysis, vol *silence.VolumeInfo, envelope []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Buffer = buf
	s.DurationSec = buf.Duration
	s.Analysis = analysis
	s.Volume = vol
	s.Waveform = envelope
	s.UpdatedAt = time.Now()
}

// SetVideo records the probe artifacts for a video session.
func (s *Session) SetVideo(handle *media.VideoHandle, thumbs *waveform.ThumbnailStrip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Video = handle
	s.DurationSec = handle.Duration
	s.Thumbnails = thumbs
	s.UpdatedAt = time.Now()
}

// SetControllers installs the trim and playback controllers.
func (s *Session) SetControllers(tc *trim.Controller, pc *playback.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trim = tc
	s.Playback = pc
	s.UpdatedAt = time.Now()
}

// SetResult records the published render location.
func (s *Session) SetResult(url string, durationSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResultURL = url
	s.ResultDurationSec = durationSec
	s.UpdatedAt = time.Now()
}

// AddTempPath registers a file for cleanup on release.
func (s *Session) AddTempPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempPaths = append(s.tempPaths, path)
}

// Release returns the temp files to clean up, exactly once. Subsequent
// calls return nil so double-release never deletes twice.
func (s *Session) Release() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	paths := s.tempPaths
	s.tempPaths = nil
	return paths
}

// Snapshot returns a consistent read of the mutable presentation fields.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:                s.ID,
		Kind:              s.Kind,
		Status:            s.Status,
		Error:             s.Error,
		DurationSec:       s.DurationSec,
		Analysis:          s.Analysis,
		Volume:            s.Volume,
		Waveform:          s.Waveform,
		Thumbnails:        s.Thumbnails,
		ResultURL:         s.ResultURL,
		ResultDurationSec: s.ResultDurationSec,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.Trim != nil {
		snap.Range = s.Trim.Range()
		snap.Verdict = s.Trim.Validate()
	}
	if s.Playback != nil {
		snap.PlaybackState = s.Playback.State()
		snap.PositionMs = s.Playback.Position()
	}
	return snap
}

// Snapshot is a point-in-time view of a session for presentation.
type Snapshot struct {
	ID                string
	Kind              Kind
	Status            Status
	Error             string
	DurationSec       float64
	Analysis          *silence.Analysis
	Volume            *silence.VolumeInfo
	Waveform          []float64
	Thumbnails        *waveform.ThumbnailStrip
	Range             trim.Range
	Verdict           trim.Verdict
	PlaybackState     playback.State
	PositionMs        int64
	ResultURL         string
	ResultDurationSec float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
