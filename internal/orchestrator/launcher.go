package orchestrator

import (
	"log/slog"

	"livestream-gateway/internal/transcoder"
)

// Launcher spawns the transcoder for a stream.
type Launcher interface {
	Launch(id StreamID, sourceURL, outputDir string, overlays []transcoder.Overlay) (Process, error)
}

// TranscoderLauncher launches ffmpeg through the transcoder package.
type TranscoderLauncher struct {
	Config transcoder.Config
	Log    *slog.Logger
}

// NewTranscoderLauncher returns a Launcher using cfg.
func NewTranscoderLauncher(cfg transcoder.Config, log *slog.Logger) *TranscoderLauncher {
	return &TranscoderLauncher{Config: cfg, Log: log}
}

// Launch implements Launcher.
func (l *TranscoderLauncher) Launch(id StreamID, sourceURL, outputDir string, overlays []transcoder.Overlay) (Process, error) {
	log := l.Log.With(slog.String("stream_id", string(id)))
	h, err := transcoder.Start(l.Config, sourceURL, outputDir, overlays, log)
	if err != nil {
		return nil, err
	}
	log.Info("transcoder started", slog.Int("pid", h.Pid()), slog.Int("overlays", len(overlays)))
	// The command line carries the camera URL, credentials included.
	log.Debug("transcoder command", slog.String("command", h.CommandLine()))
	return h, nil
}
