// Package engine orchestrates the Streaming Session Engine: it wires
// Probe, Strategy Selector, Arg Builder, Transcoder Supervisor, and
// Session Store into the start/ping/stop operations the HTTP surface
// drives.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/database"
	"github.com/mantonx/streamgate/internal/probe"
	"github.com/mantonx/streamgate/internal/session"
	"github.com/mantonx/streamgate/internal/strategy"
	"github.com/mantonx/streamgate/internal/transcoder"
)

// StartStatus is the outcome reported to the HTTP layer for a start
// call.
type StartStatus string

const (
	StatusStarted StartStatus = "started"
	StatusResumed StartStatus = "resumed"
)

// StartResult is what the start operation reports back to the HTTP
// surface.
type StartResult struct {
	Status    StartStatus
	Mode      strategy.Mode
	StreamURL string // set only for NativeDirect
}

// PingResult is what the ping operation reports back.
type PingResult struct {
	EncodedDuration float64
	LiveEdgeTime    float64
}

// Engine ties the session store to the probe/strategy/transcoder
// pipeline.
type Engine struct {
	Store  *session.Store
	Prober probe.Prober
	Ledger *database.Ledger
	Logger hclog.Logger
	Cfg    *config.Config
}

// New constructs an Engine from its collaborators.
func New(store *session.Store, prober probe.Prober, ledger *database.Ledger, logger hclog.Logger, cfg *config.Config) *Engine {
	return &Engine{Store: store, Prober: prober, Ledger: ledger, Logger: logger, Cfg: cfg}
}

// Start implements the `start` operation: upsert the session, probe
// the source (unless resuming an identical in-flight start), pick a
// strategy, build arguments, and supervise the transcoder through
// readiness — including the one-level fallback chain.
func (e *Engine) Start(ctx context.Context, sessionID, sourceURL, userAgent string, userForceTranscode bool, device strategy.DeviceClass) (StartResult, error) {
	s, created, err := e.Store.GetOrCreate(sessionID)
	if err != nil {
		return StartResult{}, err
	}
	if created && e.Ledger != nil {
		e.Ledger.Record(sessionID, database.EventCreated, "", sourceURL, "")
	}

	s.Lock()
	if s.IsActive() && s.SourceURL == sourceURL {
		s.Unlock()
		return StartResult{Status: StatusResumed, Mode: s.Mode}, nil
	}
	previousHandle := s.Handle
	s.Handle = nil
	s.Unlock()

	if previousHandle != nil {
		_ = previousHandle.Kill()
	}

	probeCtx := ctx
	if e.Cfg != nil && e.Cfg.Transcode.ProbeTimeout > 0 {
		var cancelProbe context.CancelFunc
		probeCtx, cancelProbe = context.WithTimeout(ctx, e.Cfg.Transcode.ProbeTimeout)
		defer cancelProbe()
	}
	report, probeErr := e.Prober.Probe(probeCtx, sourceURL)
	if probeErr != nil && e.Logger != nil {
		e.Logger.Warn("probe failed, assuming full transcode", "session", sessionID, "error", probeErr)
	}

	s.Lock()
	sticky := s.ForceTranscode
	s.Unlock()

	decision := strategy.Select(report, device, userForceTranscode, sticky)

	if decision.Mode == strategy.NativeDirect {
		s.Lock()
		s.SourceURL = sourceURL
		s.Mode = decision.Mode
		s.Handle = nil
		s.Unlock()
		if e.Ledger != nil {
			e.Ledger.Record(sessionID, database.EventStarted, string(decision.Mode), sourceURL, "")
		}
		return StartResult{
			Status:    StatusStarted,
			Mode:      decision.Mode,
			StreamURL: "/direct-stream?url=" + sourceURL,
		}, nil
	}

	handle, mode, err := e.spawnWithFallback(ctx, s, sourceURL, userAgent, report, decision, device)
	if err != nil {
		return StartResult{}, err
	}

	s.Lock()
	s.SourceURL = sourceURL
	s.Mode = mode
	s.Handle = handle
	if mode == strategy.FullTranscode && decision.Mode != strategy.FullTranscode {
		s.ForceTranscode = true
	}
	s.Unlock()

	if e.Ledger != nil {
		e.Ledger.Record(sessionID, database.EventStarted, string(mode), sourceURL, "")
	}

	return StartResult{Status: StatusStarted, Mode: mode}, nil
}

// spawnWithFallback starts the transcoder for decision.Mode; if that
// mode is speculative and fails before readiness, it retries once with
// FullTranscode.
func (e *Engine) spawnWithFallback(ctx context.Context, s *session.Session, sourceURL, userAgent string, report *probe.Report, decision strategy.Decision, device strategy.DeviceClass) (*transcoder.Handle, strategy.Mode, error) {
	args := transcoder.BuildArgs(s.Dir, sourceURL, userAgent, report, decision)
	handle, err := transcoder.Start(ctx, e.Cfg.Transcode.FFmpegPath, s.Dir, args, decision.Mode, e.Logger)
	if err == nil {
		return handle, decision.Mode, nil
	}

	state := StateOf(handle)
	if !transcoder.ShouldFallback(decision.Mode, state) {
		return nil, "", fmt.Errorf("engine: transcoder start failed: %w", err)
	}

	if e.Logger != nil {
		e.Logger.Warn("falling back to full transcode", "session", s.ID, "from_mode", decision.Mode, "error", err)
	}
	if e.Ledger != nil {
		e.Ledger.Record(s.ID, database.EventFallback, string(decision.Mode), sourceURL, err.Error())
	}

	fallback := strategy.Decision{Mode: strategy.FullTranscode, Audio: fallbackAudioPlan(device)}
	fallbackArgs := transcoder.BuildArgs(s.Dir, sourceURL, userAgent, report, fallback)
	fbHandle, fbErr := transcoder.Start(ctx, e.Cfg.Transcode.FFmpegPath, s.Dir, fallbackArgs, fallback.Mode, e.Logger)
	if fbErr != nil {
		return nil, "", fmt.Errorf("engine: fallback transcoder also failed: %w", fbErr)
	}
	return fbHandle, fallback.Mode, nil
}

func fallbackAudioPlan(device strategy.DeviceClass) strategy.AudioPlan {
	if device.IsTV {
		return strategy.AudioPlan{Codec: "ac3", SampleRate: 48000, Channels: 6, BitrateKbp: 640}
	}
	return strategy.AudioPlan{Codec: "aac", Channels: 6, BitrateKbp: 640}
}

// StateOf returns a transcoder handle's lifecycle state, tolerating a
// nil handle (treated as failed-startup) for the fallback decision.
func StateOf(h *transcoder.Handle) transcoder.State {
	if h == nil {
		return transcoder.StateFailedStartup
	}
	return h.State()
}

// Ping implements the `ping` operation: refresh the heartbeat and
// compute encoder progress from the master playlist, if present.
func (e *Engine) Ping(sessionID string) (PingResult, bool) {
	s, ok := e.Store.Lookup(sessionID)
	if !ok {
		return PingResult{}, false
	}
	e.Store.Touch(sessionID)

	s.Lock()
	dir := s.Dir
	s.Unlock()

	encoded := encodedDurationOf(dir)
	liveEdge := encoded - 8
	if liveEdge < 0 {
		liveEdge = 0
	}
	return PingResult{EncodedDuration: encoded, LiveEdgeTime: liveEdge}, true
}

// Stop implements the `stop` operation: kill the transcoder but retain
// the session record so a later start can resume without a new
// directory. Only the Eviction Loop drops the entry itself.
func (e *Engine) Stop(sessionID string) bool {
	s, ok := e.Store.Lookup(sessionID)
	if !ok {
		return false
	}

	s.Lock()
	handle := s.Handle
	s.Handle = nil
	sourceURL := s.SourceURL
	s.Unlock()

	if handle != nil {
		_ = handle.Kill()
	}
	if e.Ledger != nil {
		e.Ledger.Record(sessionID, database.EventStopped, "", sourceURL, "")
	}
	return true
}

var extinfPattern = regexp.MustCompile(`#EXTINF:([0-9]*\.?[0-9]+)`)

// encodedDurationOf sums every #EXTINF directive in the session's
// master playlist. Returns 0 if the playlist does not exist yet.
func encodedDurationOf(sessionDir string) float64 {
	path := sessionDir + "/main.m3u8"
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	var total float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := extinfPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			total += v
		}
	}
	return total
}
