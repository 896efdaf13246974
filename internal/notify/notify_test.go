package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testEvent() Event {
	return Event{
		SessionID:       "trim-123-abc",
		Kind:            "voice",
		ResultURL:       "https://bucket.s3.us-east-1.amazonaws.com/sessions/x/trimmed.wav",
		DurationSeconds: 10.5,
		RenderedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewWebhookClient_MissingURL(t *testing.T) {
	_, err := NewWebhookClient("")
	if !errors.Is(err, ErrURLRequired) {
		t.Errorf("expected ErrURLRequired, got %v", err)
	}
}

func TestNotify_Success(t *testing.T) {
	var got Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewWebhookClient(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := testEvent()
	if err := client.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if got.SessionID != ev.SessionID {
		t.Errorf("session_id = %q, want %q", got.SessionID, ev.SessionID)
	}
	if got.ResultURL != ev.ResultURL {
		t.Errorf("result_url = %q, want %q", got.ResultURL, ev.ResultURL)
	}
	if got.DurationSeconds != ev.DurationSeconds {
		t.Errorf("duration_seconds = %v, want %v", got.DurationSeconds, ev.DurationSeconds)
	}
}

func TestNotify_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewWebhookClient(server.URL,
		WithMaxRetries(3),
		WithBaseBackoff(1*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestNotify_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewWebhookClient(server.URL, WithBaseBackoff(1*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestNotify_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewWebhookClient(server.URL, WithBaseBackoff(1*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.Notify(context.Background(), testEvent())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestNotify_ExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewWebhookClient(server.URL,
		WithMaxRetries(2),
		WithBaseBackoff(1*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.Notify(context.Background(), testEvent())
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected ErrServerError, got %v", err)
	}
}

func TestNotify_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewWebhookClient(server.URL, WithBaseBackoff(10*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.Notify(ctx, testEvent())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestNopNotifier(t *testing.T) {
	if err := (NopNotifier{}).Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("NopNotifier.Notify() error = %v", err)
	}
}
