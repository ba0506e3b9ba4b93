package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/engine"
	"github.com/mantonx/streamgate/internal/probe"
	"github.com/mantonx/streamgate/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	report *probe.Report
	err    error
}

func (f *fakeProber) Probe(ctx context.Context, sourceURL string) (*probe.Report, error) {
	return f.report, f.err
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := session.NewStore(t.TempDir())
	prober := &fakeProber{report: &probe.Report{VideoCodec: "h264"}}
	cfg := &config.Config{Transcode: config.TranscodeConfig{FFmpegPath: "sh", FFprobePath: "sh"}}
	eng := engine.New(store, prober, nil, nil, cfg)
	return NewServer(eng, prober, nil)
}

func TestMetadataMissingURL(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetadataSuccess(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metadata?url=http://example.com/a.mkv", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPingUnknownSessionReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/ping?session=nope", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopMissingSessionParam(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/stop", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionsPreflightReturns204(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/start", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthzReturns200(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDirectStreamMissingURL(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/direct-stream", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
