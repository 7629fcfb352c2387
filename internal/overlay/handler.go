package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"livestream-gateway/internal/platform/httpjson"

	"github.com/go-chi/chi/v5"
)

// StreamChecker reports whether a stream is currently active.
type StreamChecker interface {
	HasStream(id string) bool
}

// Handler exposes overlay CRUD using go-chi.
type Handler struct {
	svc     *Service
	streams StreamChecker
	log     *slog.Logger
}

// NewHandler returns a Handler.
func NewHandler(svc *Service, streams StreamChecker, log *slog.Logger) *Handler {
	return &Handler{svc: svc, streams: streams, log: log}
}

// Routes registers the overlay endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/overlays", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Delete("/bulk", h.DeleteBulk)
		r.Get("/stream/{stream_id}", h.ForStream)
		r.Get("/{overlay_id}", h.Get)
		r.Put("/{overlay_id}", h.Update)
		r.Delete("/{overlay_id}", h.Delete)
	})
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := httpjson.Decode(r, &in); err != nil {
		if errors.Is(err, httpjson.ErrEmptyBody) {
			httpjson.Error(w, http.StatusBadRequest, "Request body is required")
		} else {
			httpjson.Error(w, http.StatusBadRequest, "Invalid JSON body")
		}
		return Input{}, false
	}
	return in, true
}

// Create handles POST /api/overlays.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "Failed to create overlay")
		return
	}
	httpjson.Write(w, http.StatusCreated, map[string]any{
		"message": "Overlay created successfully",
		"overlay": o,
	})
}

// List handles GET /api/overlays?type=&visible_only=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Type:        q.Get("type"),
		VisibleOnly: strings.EqualFold(q.Get("visible_only"), "true"),
	}
	overlays, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.writeError(w, err, "Failed to retrieve overlays")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"overlays": overlays,
		"count":    len(overlays),
	})
}

// Get handles GET /api/overlays/{overlay_id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), chi.URLParam(r, "overlay_id"))
	if err != nil {
		h.writeError(w, err, "Failed to retrieve overlay")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"overlay": o})
}

// Update handles PUT /api/overlays/{overlay_id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "overlay_id")
	if _, err := parseID(id); err != nil {
		h.writeError(w, err, "")
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err, "Failed to update overlay")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"message": "Overlay updated successfully",
		"overlay": o,
	})
}

// Delete handles DELETE /api/overlays/{overlay_id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "overlay_id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to delete overlay")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"message":            "Overlay deleted successfully",
		"deleted_overlay_id": id,
	})
}

// DeleteBulk handles DELETE /api/overlays/bulk.
// Body: { "overlay_ids": ["...", "..."] }.
func (h *Handler) DeleteBulk(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := httpjson.Decode(r, &body); err != nil || body["overlay_ids"] == nil {
		httpjson.Error(w, http.StatusBadRequest, "overlay_ids array is required")
		return
	}
	var ids []string
	if err := json.Unmarshal(body["overlay_ids"], &ids); err != nil || len(ids) == 0 {
		httpjson.Error(w, http.StatusBadRequest, "overlay_ids must be a non-empty array")
		return
	}

	n, err := h.svc.DeleteMany(r.Context(), ids)
	if err != nil {
		if errors.Is(err, ErrInvalidID) {
			httpjson.Error(w, http.StatusBadRequest, "One or more overlay IDs have invalid format")
			return
		}
		h.writeError(w, err, "Failed to delete overlays")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"message":         fmt.Sprintf("Successfully deleted %d overlays", n),
		"deleted_count":   n,
		"requested_count": len(ids),
	})
}

// ForStream handles GET /api/overlays/stream/{stream_id}.
func (h *Handler) ForStream(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "stream_id")
	if h.streams == nil || !h.streams.HasStream(streamID) {
		httpjson.Error(w, http.StatusNotFound, "Stream not found")
		return
	}
	overlays, err := h.svc.ForStream(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to retrieve stream overlays")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"stream_id": streamID,
		"overlays":  overlays,
		"count":     len(overlays),
	})
}

// writeError maps overlay errors to responses. Store failures are logged
// and answered with failMsg only.
func (h *Handler) writeError(w http.ResponseWriter, err error, failMsg string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpjson.Error(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, ErrInvalidID):
		httpjson.Error(w, http.StatusBadRequest, "Invalid overlay ID format")
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "Overlay not found")
	default:
		h.log.Error(failMsg, slog.String("error", err.Error()))
		httpjson.Error(w, http.StatusInternalServerError, failMsg)
	}
}
