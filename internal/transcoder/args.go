package transcoder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
)

const (
	// PlaylistName is the manifest file written into every output directory.
	PlaylistName = "playlist.m3u8"
	// SegmentPattern is the ffmpeg pattern for numbered segment files.
	SegmentPattern = "segment%03d.ts"

	DefaultListSize       = 10
	DefaultSegmentSeconds = 2
	DefaultKillTimeout    = 5 * time.Second
)

// Config holds the fixed parameters of every transcoder invocation.
type Config struct {
	// Path is the transcoder executable, "ffmpeg" by default.
	Path string
	// ListSize is the number of segments kept in the rolling playlist window.
	ListSize int
	// SegmentSeconds is the target segment duration.
	SegmentSeconds int
	// LogLevel is passed to -loglevel; empty leaves ffmpeg's default.
	LogLevel string
	// ExtraArgs are inserted after the encoder settings, before the HLS muxer options.
	ExtraArgs []string
	// KillTimeout bounds the wait after SIGKILL.
	KillTimeout time.Duration
	// AssetRoot is the only directory local overlay images may be read from.
	// Empty allows http(s) image URLs only.
	AssetRoot string
}

// DefaultConfig returns the invocation parameters used by the gateway.
func DefaultConfig() Config {
	return Config{
		Path:           "ffmpeg",
		ListSize:       DefaultListSize,
		SegmentSeconds: DefaultSegmentSeconds,
		LogLevel:       "warning",
		KillTimeout:    DefaultKillTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "ffmpeg"
	}
	if c.ListSize <= 0 {
		c.ListSize = DefaultListSize
	}
	if c.SegmentSeconds <= 0 {
		c.SegmentSeconds = DefaultSegmentSeconds
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = DefaultKillTimeout
	}
	return c
}

// ParseExtraArgs splits a TRANSCODER_EXTRA_ARGS value using shell quoting rules.
func ParseExtraArgs(s string) ([]string, error) {
	args, err := shellquote.Split(s)
	if err != nil {
		return nil, fmt.Errorf("parse transcoder extra args: %w", err)
	}
	return args, nil
}

// BuildArgs returns the literal argument list (without the executable) that
// converts sourceURL into an HLS playlist inside outputDir. The playlist path
// is always the last argument.
func BuildArgs(cfg Config, sourceURL, outputDir string, overlays []Overlay) ([]string, error) {
	cfg = cfg.withDefaults()

	graph, err := BuildFilterGraph(overlays, cfg.AssetRoot)
	if err != nil {
		return nil, err
	}

	args := []string{"-y", "-hide_banner", "-nostdin"}
	if cfg.LogLevel != "" {
		args = append(args, "-loglevel", cfg.LogLevel)
	}
	args = append(args, "-rtsp_transport", "tcp", "-i", sourceURL)

	if graph != nil {
		for _, in := range graph.Inputs {
			args = append(args, "-protocol_whitelist", in.Protocols, "-i", in.Source)
		}
		args = append(args,
			"-filter_complex", graph.Expr,
			"-map", "["+graph.Output+"]",
			"-map", "0:a?",
		)
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-c:a", "aac",
	)
	args = append(args, cfg.ExtraArgs...)
	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(cfg.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(cfg.ListSize),
		"-hls_flags", "delete_segments+append_list",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		filepath.Join(outputDir, PlaylistName),
	)
	return args, nil
}

// CommandLine renders path and args as a copy-pasteable shell command for logs.
func CommandLine(path string, args []string) string {
	return shellquote.Join(append([]string{path}, args...)...)
}
