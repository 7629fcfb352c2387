package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"livestream-gateway/internal/platform/httpjson"
	"livestream-gateway/internal/transcoder"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
)

// OverlaySource supplies the overlays burned into a stream when a start
// request asks for it.
type OverlaySource interface {
	BurnInOverlays(ctx context.Context) ([]transcoder.Overlay, error)
}

// Handler exposes the stream endpoints using go-chi.
type Handler struct {
	svc      *Service
	overlays OverlaySource
	log      *slog.Logger
}

// NewHandler returns a Handler. overlays may be nil, in which case
// burn_overlays requests are rejected.
func NewHandler(svc *Service, overlays OverlaySource, log *slog.Logger) *Handler {
	return &Handler{svc: svc, overlays: overlays, log: log}
}

// Routes registers the stream endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/stream/start", h.StartStream)
	r.Get("/api/streams", h.ListStreams)
	r.Route("/api/stream/{stream_id}", func(r chi.Router) {
		r.Get("/playlist.m3u8", h.GetPlaylist)
		r.Get("/status", h.GetStatus)
		r.Post("/stop", h.StopStream)
		r.Get("/{filename}", h.GetSegment)
	})
}

type startRequest struct {
	RTSPURL      string `json:"rtsp_url"`
	BurnOverlays bool   `json:"burn_overlays"`
}

// StartStream handles POST /api/stream/start.
// Body: { "rtsp_url": "rtsp://camera.local/feed1", "burn_overlays": false }.
func (h *Handler) StartStream(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpjson.Decode(r, &req); err != nil {
		h.log.Debug("invalid start body", slog.String("error", err.Error()))
		httpjson.Error(w, http.StatusBadRequest, "RTSP URL is required")
		return
	}

	var overlays []transcoder.Overlay
	if req.BurnOverlays {
		if h.overlays == nil {
			httpjson.Error(w, http.StatusBadRequest, "Overlay burn-in is not available")
			return
		}
		var err error
		overlays, err = h.overlays.BurnInOverlays(r.Context())
		if err != nil {
			h.log.Error("load overlays for burn-in", slog.String("error", err.Error()))
			httpjson.InternalError(w)
			return
		}
	}

	info, err := h.svc.StartStream(req.RTSPURL, overlays)
	if err != nil {
		h.writeError(w, err, "Failed to start stream")
		return
	}
	httpjson.Write(w, http.StatusOK, info)
}

// GetPlaylist handles GET /api/stream/{stream_id}/playlist.m3u8.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id := StreamID(chi.URLParam(r, "stream_id"))

	path, err := h.svc.PlaylistFile(id)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// GetSegment handles GET /api/stream/{stream_id}/{filename}.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	id := StreamID(chi.URLParam(r, "stream_id"))
	name := chi.URLParam(r, "filename")

	path, err := h.svc.SegmentFile(id, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if h.svc.HasStream(string(id)) {
				httpjson.Error(w, http.StatusNotFound, "Segment not found")
				return
			}
		}
		h.writeError(w, err, "")
		return
	}

	w.Header().Set("Content-Type", segmentContentType)
	http.ServeFile(w, r, path)
}

// StopStream handles POST /api/stream/{stream_id}/stop.
func (h *Handler) StopStream(w http.ResponseWriter, r *http.Request) {
	id := StreamID(chi.URLParam(r, "stream_id"))

	if err := h.svc.StopStream(id); err != nil {
		h.writeError(w, err, "Failed to stop stream")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"message": "Stream stopped successfully"})
}

// GetStatus handles GET /api/stream/{stream_id}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := StreamID(chi.URLParam(r, "stream_id"))

	info, err := h.svc.GetStatus(id)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	httpjson.Write(w, http.StatusOK, info)
}

// ListStreams handles GET /api/streams.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]any{"streams": h.svc.ListStreams()})
}

// writeError maps the lifecycle error taxonomy onto status codes. Anything
// unrecognised becomes a bare 500 and is only logged.
func (h *Handler) writeError(w http.ResponseWriter, err error, failMsg string) {
	var (
		verr  *ValidationError
		serr  *StartError
		ioerr *IOError
		sterr *StopError
	)
	switch {
	case errors.As(err, &verr):
		httpjson.Error(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "Stream not found")
	case errors.Is(err, ErrPlaylistNotReady):
		httpjson.Error(w, http.StatusNotFound, "Playlist not ready yet")
	case errors.As(err, &serr), errors.As(err, &ioerr), errors.As(err, &sterr):
		h.log.Error(failMsg, slog.String("error", err.Error()))
		httpjson.Error(w, http.StatusInternalServerError, failMsg)
	default:
		h.log.Error("unexpected stream error", slog.String("error", err.Error()))
		httpjson.InternalError(w)
	}
}
