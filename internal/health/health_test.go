package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livestream-gateway/internal/platform/logger"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type streamCount int

func (n streamCount) ActiveStreams() int { return int(n) }

func get(t *testing.T, h http.Handler) Status {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var s Status
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHandler_healthy(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	s := get(t, Handler(ok, streamCount(3), logger.Discard()))

	if s.Status != "healthy" || s.StorageStatus != "connected" || s.ActiveStreams != 3 {
		t.Errorf("status = %+v", s)
	}
	if _, err := time.Parse(time.RFC3339, s.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", s.Timestamp, err)
	}
}

func TestHandler_storage_down(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })
	s := get(t, Handler(down, streamCount(0), logger.Discard()))

	if s.Status != "healthy" || s.StorageStatus != "error" {
		t.Errorf("status = %+v", s)
	}
}
