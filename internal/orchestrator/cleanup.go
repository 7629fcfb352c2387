package orchestrator

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// PurgeStaleOutput removes output directories left behind by a previous
// run. Stream state does not survive a restart, so no stream can own them.
// Only entries named like stream ids are touched.
func PurgeStaleOutput(root string, log *slog.Logger) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, &IOError{Op: "read stream directory", Path: root, Err: err}
	}

	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("remove stale output", slog.String("output_dir", dir), slog.String("error", err.Error()))
			continue
		}
		n++
	}
	if n > 0 {
		log.Info("removed stale stream output", slog.Int("count", n))
	}
	return n, nil
}
