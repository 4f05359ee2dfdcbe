package supervisor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSpawn_CapturesOutput(t *testing.T) {
	s := New()
	logPath := filepath.Join(t.TempDir(), "out.log")

	h, err := s.Spawn("echo hello world", nil, t.TempDir(), logPath)
	if err != nil {
		t.Fatalf("Spawn error: %v", err)
	}

	h.Wait()

	if h.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0", h.ExitCode())
	}
	if !strings.Contains(h.Tail(), "hello world") {
		t.Errorf("tail = %q, want to contain %q", h.Tail(), "hello world")
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("log = %q, want to contain %q", string(data), "hello world")
	}
}

func TestSpawn_Environment(t *testing.T) {
	s := New()

	h, err := s.Spawn("sh -c 'echo port=$PORT'", []string{"PORT=3456"}, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Spawn error: %v", err)
	}
	h.Wait()

	if !strings.Contains(h.Tail(), "port=3456") {
		t.Errorf("tail = %q, want to contain %q", h.Tail(), "port=3456")
	}
}

func TestSpawn_BadCommand(t *testing.T) {
	s := New()

	if _, err := s.Spawn("/definitely/not/a/binary", nil, t.TempDir(), ""); err == nil {
		t.Error("expected spawn failure for missing binary")
	}
	if _, err := s.Spawn("", nil, t.TempDir(), ""); err == nil {
		t.Error("expected spawn failure for empty command")
	}
	if _, err := s.Spawn("echo 'unterminated", nil, t.TempDir(), ""); err == nil {
		t.Error("expected spawn failure for unbalanced quoting")
	}
}

func TestSpawn_NonZeroExit(t *testing.T) {
	s := New()

	h, err := s.Spawn("sh -c 'echo boom; exit 3'", nil, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Spawn error: %v", err)
	}
	h.Wait()

	if h.ExitCode() != 3 {
		t.Errorf("ExitCode = %d, want 3", h.ExitCode())
	}
	if !strings.Contains(h.Tail(), "boom") {
		t.Errorf("tail = %q, want to contain boom", h.Tail())
	}
}

func TestHandle_Alive(t *testing.T) {
	s := New()

	h, err := s.Spawn("sleep 5", nil, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Spawn error: %v", err)
	}

	if !h.Alive() {
		t.Error("process should be alive immediately after spawn")
	}
	if h.ExitCode() != -1 {
		t.Errorf("ExitCode while running = %d, want -1", h.ExitCode())
	}

	if err := s.Terminate(h, 2*time.Second); err != nil {
		t.Fatalf("Terminate error: %v", err)
	}
	if h.Alive() {
		t.Error("process should be dead after Terminate")
	}
}

func TestTerminate_Escalates(t *testing.T) {
	s := New()

	// A process that ignores SIGTERM must be killed by the escalation.
	h, err := s.Spawn("sh -c 'trap \"\" TERM; sleep 30'", nil, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Spawn error: %v", err)
	}

	// Give the shell a moment to install the trap
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := s.Terminate(h, 500*time.Millisecond); err != nil {
		t.Fatalf("Terminate error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Terminate took %v, escalation too slow", elapsed)
	}
	if h.Alive() {
		t.Error("process should be dead after escalation")
	}
}

func TestTerminate_AlreadyDead(t *testing.T) {
	s := New()

	h, err := s.Spawn("true", nil, t.TempDir(), "")
	if err != nil {
		t.Fatalf("Spawn error: %v", err)
	}
	h.Wait()

	if err := s.Terminate(h, time.Second); err != nil {
		t.Errorf("Terminate of dead process should be a no-op: %v", err)
	}
}

func TestIsAlive(t *testing.T) {
	if IsAlive(0) {
		t.Error("IsAlive(0) should be false")
	}
	if IsAlive(-1) {
		t.Error("IsAlive(-1) should be false")
	}
	if !IsAlive(os.Getpid()) {
		t.Error("IsAlive(self) should be true")
	}
}

func TestTail_Bounded(t *testing.T) {
	tail := &Tail{}

	chunk := strings.Repeat("x", 1000)
	for i := 0; i < 10; i++ {
		tail.Write([]byte(chunk))
	}

	if got := len(tail.String()); got > tailSize {
		t.Errorf("tail length = %d, want <= %d", got, tailSize)
	}
}
