package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mantonx/streamgate/internal/probe"
	"github.com/mantonx/streamgate/internal/session"
	"github.com/mantonx/streamgate/internal/strategy"
	"github.com/mantonx/streamgate/internal/transcoder"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	report *probe.Report
	err    error
}

func (f *fakeProber) Probe(ctx context.Context, sourceURL string) (*probe.Report, error) {
	return f.report, f.err
}

func TestPingUnknownSessionReportsAbsence(t *testing.T) {
	e := &Engine{Store: session.NewStore(t.TempDir())}
	_, ok := e.Ping("missing")
	require.False(t, ok)
}

func TestPingComputesEncodedDurationAndLiveEdge(t *testing.T) {
	store := session.NewStore(t.TempDir())
	s, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)

	writePlaylist(t, s.Dir, "#EXTM3U\n#EXTINF:6.0,\nseg0.ts\n#EXTINF:6.0,\nseg1.ts\n")

	e := &Engine{Store: store}
	result, ok := e.Ping("s1")
	require.True(t, ok)
	require.InDelta(t, 12.0, result.EncodedDuration, 0.001)
	require.InDelta(t, 4.0, result.LiveEdgeTime, 0.001)
}

func TestPingLiveEdgeNeverNegative(t *testing.T) {
	store := session.NewStore(t.TempDir())
	s, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)
	writePlaylist(t, s.Dir, "#EXTM3U\n#EXTINF:3.0,\nseg0.ts\n")

	e := &Engine{Store: store}
	result, ok := e.Ping("s1")
	require.True(t, ok)
	require.Equal(t, 0.0, result.LiveEdgeTime)
}

func TestStopUnknownSessionReturnsFalse(t *testing.T) {
	e := &Engine{Store: session.NewStore(t.TempDir())}
	require.False(t, e.Stop("missing"))
}

func TestStopClearsHandleButKeepsSession(t *testing.T) {
	store := session.NewStore(t.TempDir())
	s, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)
	s.Handle = &transcoder.Handle{}
	s.SourceURL = "http://example.com/a.mkv"

	e := &Engine{Store: store}
	require.True(t, e.Stop("s1"))

	again, ok := store.Lookup("s1")
	require.True(t, ok)
	require.Nil(t, again.Handle)
}

func TestStateOfNilHandleIsFailedStartup(t *testing.T) {
	require.Equal(t, transcoder.StateFailedStartup, StateOf(nil))
}

func TestFallbackAudioPlanByDevice(t *testing.T) {
	tv := fallbackAudioPlan(strategy.DeviceClass{IsTV: true})
	require.Equal(t, "ac3", tv.Codec)

	browser := fallbackAudioPlan(strategy.DeviceClass{IsTV: false})
	require.Equal(t, "aac", browser.Codec)
}

func TestEncodedDurationOfMissingPlaylistIsZero(t *testing.T) {
	require.Equal(t, 0.0, encodedDurationOf(t.TempDir()))
}

func TestStartNativeDirectNeedsNoTranscoder(t *testing.T) {
	store := session.NewStore(t.TempDir())
	prober := &fakeProber{report: &probe.Report{VideoCodec: "h264"}}
	e := &Engine{Store: store, Prober: prober}

	device := strategy.DeviceClass{IsTV: true, Brand: strategy.BrandGeneric}
	result, err := e.Start(context.Background(), "s1", "http://example.com/a.mkv", "some-tv-ua", false, device)
	require.NoError(t, err)
	require.Equal(t, StatusStarted, result.Status)
	require.Equal(t, strategy.NativeDirect, result.Mode)
	require.NotEmpty(t, result.StreamURL)

	s, ok := store.Lookup("s1")
	require.True(t, ok)
	require.Nil(t, s.Handle)
}

func TestStartRespawnsWhenPreviousHandleIsDead(t *testing.T) {
	store := session.NewStore(t.TempDir())
	s, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)

	sourceURL := "http://example.com/a.mkv"
	s.SourceURL = sourceURL
	s.Mode = strategy.NativeDirect
	s.Handle = transcoder.NewHandleForState(transcoder.StateCompleted)

	prober := &fakeProber{report: &probe.Report{VideoCodec: "h264"}}
	e := &Engine{Store: store, Prober: prober}

	device := strategy.DeviceClass{IsTV: true, Brand: strategy.BrandGeneric}
	result, err := e.Start(context.Background(), "s1", sourceURL, "some-tv-ua", false, device)
	require.NoError(t, err)
	require.NotEqual(t, StatusResumed, result.Status)
	require.Equal(t, StatusStarted, result.Status)
}

func TestStartResumesWhenHandleStillActive(t *testing.T) {
	store := session.NewStore(t.TempDir())
	s, _, err := store.GetOrCreate("s1")
	require.NoError(t, err)

	sourceURL := "http://example.com/a.mkv"
	s.SourceURL = sourceURL
	s.Mode = strategy.NativeDirect
	s.Handle = transcoder.NewHandleForState(transcoder.StateReady)

	prober := &fakeProber{report: &probe.Report{VideoCodec: "h264"}}
	e := &Engine{Store: store, Prober: prober}

	device := strategy.DeviceClass{IsTV: true, Brand: strategy.BrandGeneric}
	result, err := e.Start(context.Background(), "s1", sourceURL, "some-tv-ua", false, device)
	require.NoError(t, err)
	require.Equal(t, StatusResumed, result.Status)
}

func writePlaylist(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.m3u8"), []byte(content), 0o644))
}
