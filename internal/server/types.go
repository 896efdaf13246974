// Package server provides the HTTP surface for the trimming service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateSessionResponse is the HTTP response after accepting an upload.
type CreateSessionResponse struct {
	// ID is the unique identifier for the created session.
	ID string `json:"id"`
	// Status is the initial session status.
	Status string `json:"status"`
}

// RangeUpdateRequest adjusts the trim selection. Either both start_ms and
// end_ms are provided (numeric slider), or drag and fraction are provided
// (handle drag).
type RangeUpdateRequest struct {
	// StartMs is the selection start in milliseconds.
	StartMs *int64 `json:"start_ms,omitempty" validate:"omitempty,min=0"`
	// EndMs is the selection end in milliseconds.
	EndMs *int64 `json:"end_ms,omitempty" validate:"omitempty,min=0"`
	// Drag names the boundary being dragged: "start" or "end".
	Drag string `json:"drag,omitempty" validate:"omitempty,oneof=start end"`
	// Fraction is the drag position as a fraction of the timeline.
	Fraction *float64 `json:"fraction,omitempty" validate:"omitempty,min=0,max=1"`
}

// PlaybackRequest drives the preview transport.
type PlaybackRequest struct {
	// Action is one of play, pause, stop, seek, skip, tick.
	Action string `json:"action" validate:"required,oneof=play pause stop seek skip tick"`
	// Value carries the position in milliseconds for seek and tick, and
	// the offset in seconds for skip.
	Value float64 `json:"value,omitempty"`
}

// RangeView describes the current trim selection.
type RangeView struct {
	StartMs     int64   `json:"start_ms"`
	EndMs       int64   `json:"end_ms"`
	DurationSec float64 `json:"duration_sec"`
	// Validity is VALID, TOO_SHORT, or TOO_LONG against the kind's band.
	Validity string `json:"validity"`
}

// AnalysisView describes the detected silence boundaries.
type AnalysisView struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// VolumeView describes the loudness measurement.
type VolumeView struct {
	RMS      float64 `json:"rms"`
	TooQuiet bool    `json:"too_quiet"`
}

// PlaybackView describes the preview transport state.
type PlaybackView struct {
	State      string `json:"state"`
	PositionMs int64  `json:"position_ms"`
}

// ThumbnailsView describes the video preview strip.
type ThumbnailsView struct {
	Count      int       `json:"count"`
	Timestamps []float64 `json:"timestamps"`
}

// ResultView describes the published render.
type ResultView struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SessionResponse is the HTTP response for getting session details.
type SessionResponse struct {
	// ID is the unique identifier for the session.
	ID string `json:"id"`
	// Kind is "voice" or "video".
	Kind string `json:"kind"`
	// Status is the current session status.
	Status string `json:"status"`
	// Error contains any error message if the session failed.
	Error string `json:"error,omitempty"`
	// DurationSec is the decoded timeline length.
	DurationSec float64 `json:"duration_sec"`
	// Waveform is the normalized envelope (voice sessions, READY onward).
	Waveform []float64 `json:"waveform,omitempty"`
	// Analysis holds the silence boundaries (voice sessions).
	Analysis *AnalysisView `json:"analysis,omitempty"`
	// Volume holds the loudness check (voice sessions).
	Volume *VolumeView `json:"volume,omitempty"`
	// Thumbnails holds the preview strip metadata (video sessions).
	Thumbnails *ThumbnailsView `json:"thumbnails,omitempty"`
	// Range is the current trim selection (READY onward).
	Range *RangeView `json:"range,omitempty"`
	// Playback is the preview transport state (READY onward).
	Playback *PlaybackView `json:"playback,omitempty"`
	// Result points at the rendered output (COMPLETED only).
	Result *ResultView `json:"result,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
