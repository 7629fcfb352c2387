package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"livestream-gateway/internal/platform/logger"

	"github.com/google/uuid"
)

func TestPurgeStaleOutput(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, uuid.NewString())
	if err := os.Mkdir(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(stale, "segment000.ts"), "x")
	keep := filepath.Join(root, "recordings")
	if err := os.Mkdir(keep, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, uuid.NewString()), "plain file")

	n, err := PurgeStaleOutput(root, logger.Discard())
	if err != nil {
		t.Fatalf("PurgeStaleOutput: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale stream directory survived")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("unrelated directory removed")
	}
	if len(dirEntries(t, root)) != 2 {
		t.Error("unexpected entries removed")
	}
}

func TestPurgeStaleOutput_missing_root(t *testing.T) {
	_, err := PurgeStaleOutput(filepath.Join(t.TempDir(), "nope"), logger.Discard())
	var ioerr *IOError
	if !errors.As(err, &ioerr) {
		t.Errorf("expected IOError, got %v", err)
	}
}
