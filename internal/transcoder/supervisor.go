package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/streamgate/internal/strategy"
)

// State is a transcoder process's lifecycle stage.
type State string

const (
	StateSpawned          State = "spawned"
	StateReady            State = "ready"
	StateCompleted        State = "completed"
	StateFailedStartup    State = "failed_startup"
	StateFailedAfterReady State = "failed_after_ready"
	StateTimedOut         State = "timed_out"
)

const readinessPollInterval = 500 * time.Millisecond

// readinessTimeout returns how long to wait for the master playlist to
// appear before declaring startup failure. Speculative modes get a
// shorter window than a full transcode, which must prime an encoder.
func readinessTimeout(mode strategy.Mode) time.Duration {
	if mode.Speculative() {
		return 50 * time.Second
	}
	return 120 * time.Second
}

// Handle supervises one ffmpeg child process for one session attempt.
// It is not safe for concurrent mutation from multiple goroutines
// beyond the accessors below; callers hold their own session lock.
type Handle struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	state     State
	mode      strategy.Mode
	sessionDir string
	stderrTail []string
	logger    hclog.Logger
}

// Start launches ffmpeg with the given arguments and begins readiness
// polling in the background. It returns once the process has either
// become ready, failed before becoming ready, or timed out — never
// blocking past readinessTimeout(mode).
func Start(ctx context.Context, ffmpegPath, sessionDir string, args []string, mode strategy.Mode, logger hclog.Logger) (*Handle, error) {
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcoder: create session dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("transcoder: stderr pipe: %w", err)
	}

	h := &Handle{
		cmd:        cmd,
		state:      StateSpawned,
		mode:       mode,
		sessionDir: sessionDir,
		logger:     logger,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transcoder: start ffmpeg: %w", err)
	}

	go h.tailStderr(stderr)

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if err := h.awaitReady(sessionDir, mode, exited); err != nil {
		return h, err
	}
	return h, nil
}

func (h *Handle) awaitReady(sessionDir string, mode strategy.Mode, exited chan error) error {
	deadline := time.After(readinessTimeout(mode))
	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	masterPath := filepath.Join(sessionDir, masterPlaylistName)
	for {
		select {
		case err := <-exited:
			h.setState(StateFailedStartup)
			if err != nil {
				return fmt.Errorf("transcoder: ffmpeg exited before ready: %w (%s)", err, h.StderrTail())
			}
			return fmt.Errorf("transcoder: ffmpeg exited before ready (%s)", h.StderrTail())
		case <-deadline:
			h.setState(StateTimedOut)
			_ = h.Kill()
			return fmt.Errorf("transcoder: readiness timeout after %s (%s)", readinessTimeout(mode), h.StderrTail())
		case <-ticker.C:
			if playlistReady(masterPath) {
				h.setState(StateReady)
				go h.awaitExit(exited)
				return nil
			}
		}
	}
}

// playlistReady reports whether the master playlist exists and is
// non-empty; ffmpeg's HLS muxer writes it only once encoding has
// produced at least the first segment.
func playlistReady(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func (h *Handle) awaitExit(exited chan error) {
	err := <-exited
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateReady {
		if err != nil {
			h.state = StateFailedAfterReady
		} else {
			h.state = StateCompleted
		}
	}
}

func (h *Handle) tailStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		h.mu.Lock()
		h.stderrTail = append(h.stderrTail, line)
		if len(h.stderrTail) > 20 {
			h.stderrTail = h.stderrTail[len(h.stderrTail)-20:]
		}
		h.mu.Unlock()
		if isErrorLine(line) && h.logger != nil {
			h.logger.Warn("ffmpeg stderr", "line", line)
		}
	}
}

func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "error") || strings.Contains(lower, "fail")
}

// StderrTail returns the last lines of captured stderr, joined, for
// inclusion in error messages.
func (h *Handle) StderrTail() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.stderrTail, " | ")
}

// NewHandleForState constructs a Handle already in the given state,
// with no underlying process. Used by callers that need to exercise
// state-dependent behavior (e.g. the engine's respawn-on-dead-handle
// path) without spawning a real ffmpeg process.
func NewHandleForState(state State) *Handle {
	return &Handle{state: state}
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Kill terminates the ffmpeg process if still running. Safe to call
// multiple times.
func (h *Handle) Kill() error {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// ShouldFallback reports whether a failure in this mode warrants one
// level of fallback to FullTranscode, per the one-level fallback
// chain: only speculative modes (AudioOnly, NativeDirect) fall back,
// and only on startup failure, never after the stream went ready.
func ShouldFallback(mode strategy.Mode, state State) bool {
	return mode.Speculative() && (state == StateFailedStartup || state == StateTimedOut)
}

// SessionDir returns the directory this process is writing segments
// and playlists into.
func (h *Handle) SessionDir() string {
	return h.sessionDir
}

// Mode returns the strategy mode this process was started under.
func (h *Handle) Mode() strategy.Mode {
	return h.mode
}
