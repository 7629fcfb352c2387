// Package health serves the liveness endpoint.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"livestream-gateway/internal/platform/httpjson"
)

const pingTimeout = 2 * time.Second

// Pinger checks a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StreamCounter reports the number of active streams.
type StreamCounter interface {
	ActiveStreams() int
}

// Status is the health response body.
type Status struct {
	Status        string `json:"status"`
	StorageStatus string `json:"storage_status"`
	ActiveStreams int    `json:"active_streams"`
	Timestamp     string `json:"timestamp"`
}

// Handler answers GET /api/health. The service stays "healthy" while the
// overlay store is down; only storage_status reflects it.
func Handler(storage Pinger, streams StreamCounter, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		storageStatus := "connected"
		if err := storage.Ping(ctx); err != nil {
			log.Warn("storage ping failed", slog.String("error", err.Error()))
			storageStatus = "error"
		}

		httpjson.Write(w, http.StatusOK, Status{
			Status:        "healthy",
			StorageStatus: storageStatus,
			ActiveStreams: streams.ActiveStreams(),
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
