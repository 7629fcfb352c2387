package transcoder

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// maxLineBytes bounds one line of transcoder diagnostics.
const maxLineBytes = 256 * 1024

// Handle owns one running transcoder process and its process group.
// Only the owner may call Terminate; Alive, Done and ExitCode are safe from
// any goroutine.
type Handle struct {
	cmd         *exec.Cmd
	pid         int
	commandLine string
	log         *slog.Logger
	killTimeout time.Duration

	done     chan struct{}
	exitCode int // written before done is closed
}

// Start launches the transcoder for sourceURL writing HLS output into
// outputDir. The process runs in its own process group so Terminate reaches
// any children it spawns. Output is drained on background goroutines and
// forwarded to log, never interpreted.
func Start(cfg Config, sourceURL, outputDir string, overlays []Overlay, log *slog.Logger) (*Handle, error) {
	cfg = cfg.withDefaults()

	args, err := BuildArgs(cfg, sourceURL, outputDir, overlays)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(cfg.Path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Plain os.Pipe writers keep exec.Cmd from copying output itself, so Wait
	// returns when the process exits even if a descendant still holds a pipe.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &StartError{Path: cfg.Path, Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, &StartError{Path: cfg.Path, Err: err}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	// The child holds its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, &StartError{Path: cfg.Path, Err: err}
	}

	h := &Handle{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		commandLine: CommandLine(cfg.Path, args),
		log:         log.With(slog.Int("pid", cmd.Process.Pid)),
		killTimeout: cfg.KillTimeout,
		done:        make(chan struct{}),
		exitCode:    -1,
	}

	go h.drain(stdoutR, "stdout")
	go h.drain(stderrR, "stderr")
	go h.wait()

	return h, nil
}

// Pid returns the process id, which is also the process group id.
func (h *Handle) Pid() int { return h.pid }

// CommandLine returns the shell-quoted invocation.
func (h *Handle) CommandLine() string { return h.commandLine }

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Alive reports whether the process is still running. It never blocks.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code, or -1 while the process is running or if it
// was terminated by a signal.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}

// Terminate sends SIGTERM to the process group, waits up to grace, then
// escalates to SIGKILL. Terminating an exited process is a no-op.
func (h *Handle) Terminate(grace time.Duration) error {
	if !h.Alive() {
		return nil
	}

	h.signalGroup(unix.SIGTERM)
	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}

	h.log.Warn("transcoder ignored SIGTERM, killing process group", slog.Duration("grace", grace))
	h.signalGroup(unix.SIGKILL)
	select {
	case <-h.done:
		return nil
	case <-time.After(h.killTimeout):
		return &StopError{Pid: h.pid, Err: errors.New("process still running after SIGKILL")}
	}
}

func (h *Handle) signalGroup(sig unix.Signal) {
	// A negative pid addresses the whole group; Setpgid made pid the group id.
	if err := unix.Kill(-h.pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		h.log.Warn("signal process group failed", slog.String("signal", unix.SignalName(sig)), slog.String("error", err.Error()))
	}
}

// wait reaps the group leader, then kills whatever it left behind in its
// process group so nothing outlives the stream.
func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.exitCode = exitCodeFromError(err)
	h.signalGroup(unix.SIGKILL)
	close(h.done)
}

// drain forwards output until every writer in the group has closed the pipe.
func (h *Handle) drain(r *os.File, source string) {
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		h.log.Info("transcoder output", slog.String("source", source), slog.String("line", scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		h.log.Warn("reading transcoder output", slog.String("source", source), slog.String("error", err.Error()))
		// Keep the pipe flowing so the process never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, r)
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or -1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
