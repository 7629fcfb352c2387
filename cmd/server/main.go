package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livestream-gateway/internal/health"
	"livestream-gateway/internal/orchestrator"
	"livestream-gateway/internal/overlay"
	"livestream-gateway/internal/platform/config"
	"livestream-gateway/internal/platform/logger"
	"livestream-gateway/internal/platform/metrics"
	"livestream-gateway/internal/transcoder"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	shutdownTimeout = 30 * time.Second
	connectTimeout  = 10 * time.Second
)

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "5000")
	streamDir := config.GetEnv("STREAM_DIR", "streams")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	storeKind := config.GetEnv("OVERLAY_STORE", "memory")
	grace := config.GetEnvDuration("STOP_GRACE_PERIOD", orchestrator.DefaultGracePeriod)

	log := logger.New(logLevel, logFormat)

	extraArgs, err := transcoder.ParseExtraArgs(config.GetEnv("TRANSCODER_EXTRA_ARGS", ""))
	if err != nil {
		log.Error("invalid TRANSCODER_EXTRA_ARGS", "error", err)
		os.Exit(1)
	}
	tcfg := transcoder.Config{
		Path:           config.GetEnv("FFMPEG_PATH", "ffmpeg"),
		ListSize:       config.GetEnvInt("HLS_LIST_SIZE", transcoder.DefaultListSize),
		SegmentSeconds: config.GetEnvInt("HLS_SEGMENT_SECONDS", transcoder.DefaultSegmentSeconds),
		LogLevel:       config.GetEnv("TRANSCODER_LOG_LEVEL", "warning"),
		ExtraArgs:      extraArgs,
		AssetRoot:      config.GetEnv("OVERLAY_ASSET_ROOT", ""),
	}

	if err := os.MkdirAll(streamDir, 0o755); err != nil {
		log.Error("create stream directory", "path", streamDir, "error", err)
		os.Exit(1)
	}
	if config.GetEnvBool("PURGE_STALE_OUTPUT", true) {
		if _, err := orchestrator.PurgeStaleOutput(streamDir, log); err != nil {
			log.Warn("purge stale output", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	store, err := openOverlayStore(ctx, storeKind)
	cancel()
	if err != nil {
		log.Error("open overlay store", "store", storeKind, "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	svc := orchestrator.NewService(
		orchestrator.NewRegistry(),
		orchestrator.NewTranscoderLauncher(tcfg, log.With("component", "transcoder")),
		orchestrator.Options{
			RootDir:             streamDir,
			AssetRoot:           tcfg.AssetRoot,
			GracePeriod:         grace,
			ShutdownConcurrency: config.GetEnvInt("SHUTDOWN_CONCURRENCY", orchestrator.DefaultShutdownConcurrency),
		},
		log.With("component", "streams"),
		met,
	)
	overlays := overlay.NewService(store, log.With("component", "overlays"), met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Recoverer(log))
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(corsHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveStreams(svc.ActiveStreams()) }).ServeHTTP(w, r)
	})
	r.Get("/api/health", health.Handler(overlays, svc, log))
	orchestrator.NewHandler(svc, overlays, log).Routes(r)
	overlay.NewHandler(overlays, svc, log).Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"stream_dir", streamDir,
		"ffmpeg", tcfg.Path,
		"hls_list_size", tcfg.ListSize,
		"overlay_store", storeKind,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)

	exitCode := 0
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		exitCode = 1
	}
	if err := svc.ShutdownAll(ctx); err != nil {
		log.Error("stop streams", "error", err)
		exitCode = 1
	}
	if err := store.Close(); err != nil {
		log.Error("close overlay store", "error", err)
	}

	cancel()

	log.Info("server stopped")
	os.Exit(exitCode)
}

// openOverlayStore selects the overlay backend named by OVERLAY_STORE.
func openOverlayStore(ctx context.Context, kind string) (overlay.Store, error) {
	switch kind {
	case "", "memory":
		return overlay.NewMemoryStore(), nil
	case "postgres":
		return overlay.NewPostgresStore(ctx, config.GetEnv("DATABASE_URL", ""))
	case "redis":
		return overlay.NewRedisStore(ctx, overlay.RedisConfig{
			Addr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
		})
	default:
		return nil, fmt.Errorf("unknown overlay store %q", kind)
	}
}

// corsHandler lets the browser player, served from another origin, call the API.
func corsHandler() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
