// Package supervisor owns spawning and killing of external dev-server
// processes and exposes their liveness.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/driftlock/fleetctl/internal/logging"
)

// ErrSpawnFailure is returned when a process cannot be started.
var ErrSpawnFailure = errors.New("spawn failure")

// tailSize bounds the captured output tail per process.
const tailSize = 4096

// Tail is a bounded ring buffer keeping the last tailSize bytes written.
type Tail struct {
	mu  sync.Mutex
	buf []byte
}

func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if len(t.buf) > tailSize {
		t.buf = t.buf[len(t.buf)-tailSize:]
	}
	return len(p), nil
}

// String returns the captured tail.
func (t *Tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Handle tracks one spawned process.
type Handle struct {
	PID int

	cmd  *exec.Cmd
	tail *Tail
	log  *os.File

	done     chan struct{}
	exitCode int
	waitErr  error
}

// Alive reports whether the process is still running.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the process exits.
func (h *Handle) Wait() {
	<-h.done
}

// Done returns a channel closed when the process exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the process exit code, or -1 while still running or
// when no code is available.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}

// Tail returns the last captured output bytes.
func (h *Handle) Tail() string {
	return h.tail.String()
}

// Supervisor spawns and terminates processes. Each process runs in its
// own process group so termination reaches the whole dev-server tree.
type Supervisor struct{}

// New creates a Supervisor.
func New() *Supervisor {
	return &Supervisor{}
}

// Spawn starts command (a shell-style string, split with shellquote) in
// dir with extraEnv appended to the inherited environment. Combined
// output goes to logPath and to a bounded in-memory tail.
func (s *Supervisor) Spawn(command string, extraEnv []string, dir, logPath string) (*Handle, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot split command %q: %v", ErrSpawnFailure, command, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrSpawnFailure)
	}

	cmd := exec.Command(words[0], words[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	tail := &Tail{}
	var sink io.Writer = tail
	var logFile *os.File
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
			logFile, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err == nil {
				sink = io.MultiWriter(tail, logFile)
			} else {
				logging.Warn("failed to open process log", "path", logPath, "error", err)
			}
		}
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	h := &Handle{
		PID:  cmd.Process.Pid,
		cmd:  cmd,
		tail: tail,
		log:  logFile,
		done: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		h.waitErr = err
		h.exitCode = cmd.ProcessState.ExitCode()
		if logFile != nil {
			logFile.Close()
		}
		close(h.done)
	}()

	return h, nil
}

// Terminate stops a spawned process: SIGTERM to the process group, wait
// up to grace, then SIGKILL if still alive.
func (s *Supervisor) Terminate(h *Handle, grace time.Duration) error {
	if h == nil || !h.Alive() {
		return nil
	}

	// Signal the whole group
	syscall.Kill(-h.PID, syscall.SIGTERM)

	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}

	syscall.Kill(-h.PID, syscall.SIGKILL)

	select {
	case <-h.done:
	case <-time.After(grace):
		return fmt.Errorf("process %d did not exit after SIGKILL", h.PID)
	}
	return nil
}

// IsAlive reports whether a PID refers to a live process. Used to
// reconcile persisted state against the OS after a restart.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// TerminatePID stops a process known only by PID (no handle), for
// orphans adopted from persisted state.
func TerminatePID(pid int, grace time.Duration) error {
	if !IsAlive(pid) {
		return nil
	}

	syscall.Kill(-pid, syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	syscall.Kill(-pid, syscall.SIGKILL)

	deadline = time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("process %d did not exit after SIGKILL", pid)
}
