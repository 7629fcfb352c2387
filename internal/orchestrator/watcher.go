package orchestrator

import (
	"log/slog"
	"path/filepath"
	"time"

	"livestream-gateway/internal/transcoder"

	"github.com/fsnotify/fsnotify"
)

// watchPlaylist waits for the transcoder's first manifest write and records
// the STARTING to RUNNING transition. It gives up when the process exits.
// Status reads stat the file themselves, so a watcher failure only costs
// the readiness log line and metric.
func (s *Service) watchPlaylist(st *Stream) {
	log := s.log.With(slog.String("stream_id", string(st.ID)))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug("playlist watcher unavailable", slog.String("error", err.Error()))
		return
	}
	defer w.Close()

	if err := w.Add(st.OutputDir); err != nil {
		log.Debug("watch output directory", slog.String("error", err.Error()))
		return
	}

	// The manifest may have been written before the watch was armed.
	if playlistExists(st.PlaylistPath) {
		s.playlistObserved(st)
		return
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != transcoder.PlaylistName {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				s.playlistObserved(st)
				return
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("playlist watcher error", slog.String("error", err.Error()))
			return

		case <-st.process.Done():
			return
		}
	}
}

// playlistObserved moves a STARTING stream to RUNNING once.
func (s *Service) playlistObserved(st *Stream) {
	if !st.markRunning() {
		return
	}
	elapsed := time.Since(st.StartedAt)
	s.log.Info("playlist ready",
		slog.String("stream_id", string(st.ID)),
		slog.Int("ready_after_ms", int(elapsed.Milliseconds())))
	if s.metrics != nil {
		s.metrics.ObservePlaylistReady(elapsed)
	}
}
