package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitdayma123/trimcore/internal/media"
	"github.com/arpitdayma123/trimcore/internal/session"
)

// memStore is an in-memory storage.Storage for handler tests.
type memStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	nextID int
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) SaveTemp(_ context.Context, name string, data io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.nextID++
	path := fmt.Sprintf("/mem/%s_%d", name, m.nextID)
	m.files[path] = content
	return path, nil
}

func (m *memStore) LoadTemp(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *memStore) CleanupTemp(_ context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.files, p)
	}
	return nil
}

func (m *memStore) Upload(_ context.Context, key string, data io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.files["upload:"+key] = content
	return "mem://" + key, nil
}

// stubDecoder returns a canned 12s buffer with 1s leading and 0.5s
// trailing silence.
type stubDecoder struct{}

func (stubDecoder) DecodeAudio(context.Context, media.Source) (*media.Buffer, error) {
	rate := 16000
	total := 12.0
	samples := make([]float64, int(total*float64(rate)))
	for i := range samples {
		t := float64(i) / float64(rate)
		if t >= 1.0 && t < 11.5 {
			samples[i] = 0.5 * math.Sin(2*math.Pi*220*t)
		}
	}
	return &media.Buffer{SampleRate: rate, Channels: [][]float64{samples}, Duration: total}, nil
}

func (stubDecoder) ProbeVideo(context.Context, media.Source) (*media.VideoHandle, error) {
	return &media.VideoHandle{Path: "/mem/video", Duration: 80, Width: 1280, Height: 720}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter builds a router over a service with stubbed media and
// storage. Async prepare is disabled so tests control the lifecycle.
func newTestRouter(t *testing.T) (http.Handler, *session.Service) {
	t.Helper()
	svc := session.NewService(
		session.NewMemoryRepository(),
		newMemStore(),
		stubDecoder{},
		session.WithLogger(quietLogger()),
	)
	h := NewHandlers(svc, quietLogger(), WithAsyncPrepare(false))
	return NewRouter(h, quietLogger(), DefaultConfig()), svc
}

func multipartUpload(t *testing.T, kind, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("kind", kind))
	fw, err := mw.CreateFormFile("media", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake media bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

// createReadySession uploads and prepares a voice session through the API.
func createReadySession(t *testing.T, router http.Handler, svc *session.Service) string {
	t.Helper()

	body, contentType := multipartUpload(t, "voice", "sample.wav")
	req := httptest.NewRequest(http.MethodPost, "/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "DECODING", created.Status)

	require.NoError(t, svc.Prepare(context.Background(), created.ID))
	return created.ID
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateSession_InvalidKind(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, "podcast", "sample.wav")
	req := httptest.NewRequest(http.MethodPost, "/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_KIND", resp.Code)
}

func TestCreateSession_MissingMedia(t *testing.T) {
	router, _ := newTestRouter(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("kind", "voice"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "MISSING_MEDIA", resp.Code)
}

func TestGetSession_ReadyVoice(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	rec := doJSON(t, router, http.MethodGet, "/sessions/"+id, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, id, resp.ID)
	assert.Equal(t, "voice", resp.Kind)
	assert.Equal(t, "READY", resp.Status)
	assert.InDelta(t, 12.0, resp.DurationSec, 1e-9)
	assert.NotEmpty(t, resp.Waveform)
	require.NotNil(t, resp.Analysis)
	require.NotNil(t, resp.Volume)
	assert.False(t, resp.Volume.TooQuiet)
	require.NotNil(t, resp.Range)
	assert.Equal(t, "VALID", resp.Range.Validity)
	require.NotNil(t, resp.Playback)
	assert.Equal(t, "STOPPED", resp.Playback.State)
}

func TestGetSession_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/sessions/trim-missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SESSION_NOT_FOUND", resp.Code)
}

func TestUpdateRange_Numeric(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	start, end := int64(2000), int64(11000)
	rec := doJSON(t, router, http.MethodPut, "/sessions/"+id+"/range", RangeUpdateRequest{
		StartMs: &start,
		EndMs:   &end,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RangeView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(2000), resp.StartMs)
	assert.Equal(t, int64(11000), resp.EndMs)
	assert.Equal(t, "VALID", resp.Validity)
}

func TestUpdateRange_Drag(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	fraction := 0.25
	rec := doJSON(t, router, http.MethodPut, "/sessions/"+id+"/range", RangeUpdateRequest{
		Drag:     "start",
		Fraction: &fraction,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RangeView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(3000), resp.StartMs)
}

func TestUpdateRange_MissingFields(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	rec := doJSON(t, router, http.MethodPut, "/sessions/"+id+"/range", RangeUpdateRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestUpdateRange_NotReady(t *testing.T) {
	router, _ := newTestRouter(t)

	// Upload without preparing: session stays DECODING.
	body, contentType := multipartUpload(t, "voice", "sample.wav")
	req := httptest.NewRequest(http.MethodPost, "/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	start, end := int64(0), int64(9000)
	rec = doJSON(t, router, http.MethodPut, "/sessions/"+created.ID+"/range", RangeUpdateRequest{
		StartMs: &start,
		EndMs:   &end,
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "NOT_READY", resp.Code)
}

func TestPlayback_PlayAndTick(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/playback", PlaybackRequest{Action: "play"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PlaybackView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "PLAYING", resp.State)

	// Tick past the selection end loops back inside it.
	rec = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/playback", PlaybackRequest{Action: "tick", Value: 11900})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Less(t, resp.PositionMs, int64(11900))
}

func TestPlayback_InvalidAction(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/playback", PlaybackRequest{Action: "rewind"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestRender_TooShort(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	start, end := int64(0), int64(5000)
	rec := doJSON(t, router, http.MethodPut, "/sessions/"+id+"/range", RangeUpdateRequest{
		StartMs: &start,
		EndMs:   &end,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/render", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "TOO_SHORT", resp.Code)
}

func TestRender_Voice(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/render", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "COMPLETED", resp.Status)
	require.NotNil(t, resp.Result)
	assert.True(t, strings.HasPrefix(resp.Result.URL, "mem://sessions/"+id+"/"))
	assert.Greater(t, resp.Result.DurationSeconds, 8.0)
}

func TestDeleteSession(t *testing.T) {
	router, svc := newTestRouter(t)
	id := createReadySession(t, router, svc)

	rec := doJSON(t, router, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
