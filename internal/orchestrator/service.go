package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"livestream-gateway/internal/platform/metrics"
	"livestream-gateway/internal/transcoder"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGracePeriod is how long a transcoder gets after SIGTERM.
	DefaultGracePeriod = 5 * time.Second
	// DefaultShutdownConcurrency bounds parallel teardown in ShutdownAll.
	DefaultShutdownConcurrency = 4

	startingMessage = "Stream is starting, please wait a few seconds..."
)

var acceptedSchemes = map[string]bool{"rtsp": true, "rtsps": true}

// Options configures a Service.
type Options struct {
	// RootDir holds one output directory per stream. It must exist.
	RootDir             string
	GracePeriod         time.Duration
	ShutdownConcurrency int
	// AssetRoot limits local overlay images; it should match the launcher's.
	AssetRoot string
}

// Service is the stream lifecycle manager: the only component that starts,
// stops and reports on streams.
//
// A stream is removed from the registry exactly once, either by StopStream,
// ShutdownAll or its monitor noticing an unexpected exit. Whoever wins the
// Remove owns the teardown; the others see ErrNotFound or do nothing.
type Service struct {
	registry            *Registry
	launcher            Launcher
	rootDir             string
	assetRoot           string
	grace               time.Duration
	shutdownConcurrency int
	log                 *slog.Logger
	metrics             *metrics.Metrics
}

// NewService returns a Service. Metrics may be nil (e.g. in tests).
func NewService(reg *Registry, launcher Launcher, opts Options, log *slog.Logger, m *metrics.Metrics) *Service {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.ShutdownConcurrency <= 0 {
		opts.ShutdownConcurrency = DefaultShutdownConcurrency
	}
	return &Service{
		registry:            reg,
		launcher:            launcher,
		rootDir:             opts.RootDir,
		assetRoot:           opts.AssetRoot,
		grace:               opts.GracePeriod,
		shutdownConcurrency: opts.ShutdownConcurrency,
		log:                 log,
		metrics:             m,
	}
}

// ValidateSourceURL accepts rtsp:// and rtsps:// URLs with a host.
func ValidateSourceURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{Field: "rtsp_url", Msg: "RTSP URL is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || !acceptedSchemes[u.Scheme] || u.Host == "" {
		return &ValidationError{Field: "rtsp_url", Msg: "Invalid RTSP URL format"}
	}
	return nil
}

// PlaylistURL is the locator clients poll for a stream's manifest.
func PlaylistURL(id StreamID) string {
	return "/api/stream/" + string(id) + "/playlist.m3u8"
}

// StartStream validates sourceURL, creates the stream's output directory,
// launches the transcoder and registers the stream in STARTING state. It
// returns without waiting for the playlist. Any directory created before a
// failure is removed again.
func (s *Service) StartStream(sourceURL string, overlays []transcoder.Overlay) (StreamInfo, error) {
	if err := ValidateSourceURL(sourceURL); err != nil {
		return StreamInfo{}, err
	}
	if _, err := transcoder.BuildFilterGraph(overlays, s.assetRoot); err != nil {
		return StreamInfo{}, &ValidationError{Field: "overlays", Msg: err.Error()}
	}

	id := StreamID(uuid.NewString())
	dir := filepath.Join(s.rootDir, string(id))
	log := s.log.With(slog.String("stream_id", string(id)))

	if err := os.Mkdir(dir, 0o755); err != nil {
		s.countStartFailure()
		return StreamInfo{}, &IOError{Op: "create output directory", Path: dir, Err: err}
	}

	proc, err := s.launcher.Launch(id, sourceURL, dir, overlays)
	if err != nil {
		s.countStartFailure()
		s.removeOutput(log, dir)
		return StreamInfo{}, err
	}

	st := newStream(id, sourceURL, dir, filepath.Join(dir, transcoder.PlaylistName), proc)
	if err := s.registry.Register(st); err != nil {
		s.countStartFailure()
		if terr := proc.Terminate(s.grace); terr != nil {
			log.Error("terminate unregistered transcoder", slog.String("error", terr.Error()))
		}
		s.removeOutput(log, dir)
		return StreamInfo{}, fmt.Errorf("register stream %s: %w", id, err)
	}

	go s.monitor(st)
	go s.watchPlaylist(st)

	log.Info("stream started",
		slog.String("rtsp_url", redactURL(sourceURL)),
		slog.Int("pid", proc.Pid()),
		slog.String("output_dir", dir))
	if s.metrics != nil {
		s.metrics.IncStreamsStarted()
	}

	return StreamInfo{
		StreamID:    id,
		PlaylistURL: PlaylistURL(id),
		Status:      StateStarting.String(),
		Message:     startingMessage,
	}, nil
}

// StopStream removes the stream, terminates its transcoder (grace period,
// then SIGKILL) and deletes its output directory. Only the first of several
// concurrent calls succeeds; the rest get ErrNotFound. A failed directory
// removal is logged, not returned.
func (s *Service) StopStream(id StreamID) error {
	st, ok := s.registry.Remove(id)
	if !ok {
		return ErrNotFound
	}
	return s.teardown(st)
}

func (s *Service) teardown(st *Stream) error {
	log := s.log.With(slog.String("stream_id", string(st.ID)))
	st.setState(StateStopping)

	var stopErr error
	if err := st.process.Terminate(s.grace); err != nil {
		log.Error("transcoder did not exit", slog.String("error", err.Error()))
		stopErr = err
	}

	st.setState(StateStopped)
	s.removeOutput(log, st.OutputDir)

	log.Info("stream stopped", slog.Duration("uptime", time.Since(st.StartedAt)))
	if s.metrics != nil {
		s.metrics.IncStreamsStopped()
	}
	return stopErr
}

// monitor waits for the transcoder to exit. If nobody stopped the stream
// first, the exit was unexpected: the stream becomes FAILED, is removed and
// its output directory is purged.
func (s *Service) monitor(st *Stream) {
	<-st.process.Done()

	if _, ok := s.registry.Remove(st.ID); !ok {
		return
	}
	st.setState(StateFailed)

	log := s.log.With(slog.String("stream_id", string(st.ID)))
	log.Warn("transcoder exited unexpectedly",
		slog.Int("exit_code", st.process.ExitCode()),
		slog.Duration("uptime", time.Since(st.StartedAt)))
	s.removeOutput(log, st.OutputDir)

	if s.metrics != nil {
		s.metrics.IncStreamsFailed()
	}
}

// GetStatus reports liveness and playlist readiness of a stream.
func (s *Service) GetStatus(id StreamID) (StatusInfo, error) {
	st, ok := s.registry.Lookup(id)
	if !ok {
		return StatusInfo{}, ErrNotFound
	}

	ready := playlistExists(st.PlaylistPath)
	info := StatusInfo{
		StreamID:      st.ID,
		IsRunning:     st.Alive(),
		PlaylistReady: ready,
		State:         observedState(st.State(), ready),
		StartedAt:     st.StartedAt,
	}
	if ready {
		s.playlistObserved(st)
		u := PlaylistURL(st.ID)
		info.PlaylistURL = &u
		if pl, err := ReadPlaylist(st.PlaylistPath); err == nil {
			info.SegmentCount = pl.Segments
		}
	}
	return info, nil
}

// ListStreams returns summaries of all active streams.
func (s *Service) ListStreams() []StreamSummary {
	return s.registry.List()
}

// ActiveStreams returns the number of registered streams.
func (s *Service) ActiveStreams() int {
	return s.registry.Len()
}

// HasStream reports whether id is an active stream.
func (s *Service) HasStream(id string) bool {
	_, ok := s.registry.Lookup(StreamID(id))
	return ok
}

// PlaylistFile returns the on-disk manifest of a stream.
func (s *Service) PlaylistFile(id StreamID) (string, error) {
	st, ok := s.registry.Lookup(id)
	if !ok {
		return "", ErrNotFound
	}
	if !playlistExists(st.PlaylistPath) {
		return "", ErrPlaylistNotReady
	}
	return st.PlaylistPath, nil
}

// SegmentFile returns the path of a segment inside the stream's output
// directory. name must be a bare file name.
func (s *Service) SegmentFile(id StreamID, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsRune(name, '\\') {
		return "", &ValidationError{Field: "filename", Msg: "Invalid segment name"}
	}
	st, ok := s.registry.Lookup(id)
	if !ok {
		return "", ErrNotFound
	}
	path := filepath.Join(st.OutputDir, name)
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

// ShutdownAll stops every registered stream, a few at a time, continuing
// past individual failures. It returns ctx.Err() if ctx ends first; the
// remaining teardowns keep running in the background.
func (s *Service) ShutdownAll(ctx context.Context) error {
	ids := s.registry.IDs()
	if len(ids) == 0 {
		return nil
	}
	s.log.Info("stopping all streams", slog.Int("count", len(ids)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(s.shutdownConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				if err := s.StopStream(id); err != nil && !errors.Is(err, ErrNotFound) {
					s.log.Error("stop stream during shutdown",
						slog.String("stream_id", string(id)),
						slog.String("error", err.Error()))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		s.log.Info("all streams stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) removeOutput(log *slog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Warn("remove output directory", slog.String("output_dir", dir), slog.String("error", err.Error()))
	}
}

func (s *Service) countStartFailure() {
	if s.metrics != nil {
		s.metrics.IncStartFailures()
	}
}

// redactURL hides the password of a camera URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
