package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/arpitdayma123/trimcore/internal/session"
)

// maxUploadBytes bounds multipart parsing memory; larger files spill to disk.
const maxUploadBytes = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *session.Service
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncPrepare bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncPrepare enables or disables background decode and analysis.
// When disabled, CreateSession only registers the session and returns
// immediately; tests drive Prepare themselves.
func WithAsyncPrepare(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncPrepare = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *session.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncPrepare: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateSession handles POST /sessions requests. The body is multipart
// form data with a "kind" field and a "media" file. Decode and analysis
// run in the background; the client polls GET /sessions/{id}.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}

	kind := session.Kind(r.FormValue("kind"))
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "kind must be voice or video", "INVALID_KIND")
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		writeError(w, http.StatusBadRequest, "media file is required", "MISSING_MEDIA")
		return
	}
	defer file.Close()

	sess, err := h.service.Create(r.Context(), kind, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.Error("failed to create session",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create session", "SESSION_CREATION_FAILED")
		return
	}

	// Decode in background with a detached context so the upload response
	// returns immediately and request cancellation does not abort analysis.
	if h.enableAsyncPrepare {
		go func(ctx context.Context, sessionID string) {
			if err := h.service.Prepare(ctx, sessionID); err != nil {
				h.logger.Error("background prepare failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), sess.ID)
	}

	h.logger.Info("session accepted",
		slog.String("session_id", sess.ID),
		slog.String("kind", string(kind)),
		slog.String("filename", header.Filename),
	)

	writeJSON(w, http.StatusAccepted, CreateSessionResponse{
		ID:     sess.ID,
		Status: string(sess.GetStatus()),
	})
}

// GetSession handles GET /sessions/{id} requests.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// UpdateRange handles PUT /sessions/{id}/range requests.
func (h *Handlers) UpdateRange(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req RangeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	var err error
	switch {
	case req.Drag != "":
		if req.Fraction == nil {
			writeError(w, http.StatusBadRequest, "fraction is required for drag updates", "VALIDATION_ERROR")
			return
		}
		_, err = h.service.Drag(r.Context(), sessionID, req.Drag, *req.Fraction)
	case req.StartMs != nil && req.EndMs != nil:
		_, err = h.service.UpdateRange(r.Context(), sessionID, *req.StartMs, *req.EndMs)
	default:
		writeError(w, http.StatusBadRequest, "provide start_ms and end_ms, or drag and fraction", "VALIDATION_ERROR")
		return
	}

	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}

	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}
	snap := sess.Snapshot()
	writeJSON(w, http.StatusOK, rangeView(snap))
}

// Playback handles POST /sessions/{id}/playback requests.
func (h *Handlers) Playback(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req PlaybackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	state, err := h.service.Playback(r.Context(), sessionID, req.Action, req.Value)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, PlaybackView{
		State:      state.State.String(),
		PositionMs: state.PositionMs,
	})
}

// Render handles POST /sessions/{id}/render requests.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	sess, err := h.service.Render(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// DeleteSession handles DELETE /sessions/{id} requests.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := h.service.Delete(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) findSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session ID is required", "MISSING_SESSION_ID")
		return nil, false
	}

	sess, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return nil, false
	}
	return sess, true
}

// writeServiceError maps service errors to HTTP status codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, session.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error(), "NOT_READY")
	case errors.Is(err, session.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error(), "INVALID_STATE")
	case errors.Is(err, session.ErrRangeTooShort):
		writeError(w, http.StatusUnprocessableEntity, "selection is below the minimum duration", "TOO_SHORT")
	case errors.Is(err, session.ErrRangeTooLong):
		writeError(w, http.StatusUnprocessableEntity, "selection exceeds the maximum duration", "TOO_LONG")
	case errors.Is(err, session.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_ACTION")
	default:
		h.logger.Error("session operation failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "operation failed", "OPERATION_FAILED")
	}
}

// sessionResponse projects a session snapshot into the wire shape.
func sessionResponse(sess *session.Session) SessionResponse {
	snap := sess.Snapshot()

	resp := SessionResponse{
		ID:          snap.ID,
		Kind:        string(snap.Kind),
		Status:      string(snap.Status),
		Error:       snap.Error,
		DurationSec: snap.DurationSec,
		Waveform:    snap.Waveform,
	}

	if snap.Analysis != nil {
		resp.Analysis = &AnalysisView{
			StartTime: snap.Analysis.StartTime,
			EndTime:   snap.Analysis.EndTime,
		}
	}
	if snap.Volume != nil {
		resp.Volume = &VolumeView{
			RMS:      snap.Volume.RMS,
			TooQuiet: snap.Volume.TooQuiet,
		}
	}
	if snap.Thumbnails != nil {
		resp.Thumbnails = &ThumbnailsView{
			Count:      len(snap.Thumbnails.Frames),
			Timestamps: snap.Thumbnails.Timestamps,
		}
	}

	switch snap.Status {
	case session.StatusReady, session.StatusRendering, session.StatusCompleted:
		rv := rangeView(snap)
		resp.Range = &rv
		resp.Playback = &PlaybackView{
			State:      snap.PlaybackState.String(),
			PositionMs: snap.PositionMs,
		}
	}

	if snap.Status == session.StatusCompleted {
		resp.Result = &ResultView{
			URL:             snap.ResultURL,
			DurationSeconds: snap.ResultDurationSec,
		}
	}

	return resp
}

func rangeView(snap session.Snapshot) RangeView {
	return RangeView{
		StartMs:     snap.Range.StartMs,
		EndMs:       snap.Range.EndMs,
		DurationSec: snap.Range.DurationSec(),
		Validity:    snap.Verdict.String(),
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
