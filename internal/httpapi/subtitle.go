package httpapi

import (
	"context"
	"net/http"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/streamgate/internal/config"
)

// extractSubtitleVTT pipes one subtitle stream from the source,
// identified by its absolute ffprobe index, out as WebVTT. A stateless
// transform: no session, no directory, the ffmpeg process's stdout
// streams directly to the response body.
func extractSubtitleVTT(w http.ResponseWriter, r *http.Request, sourceURL, streamIndex string, logger hclog.Logger) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cfg := config.Get()
	cmd := exec.CommandContext(ctx, cfg.Transcode.FFmpegPath,
		"-y",
		"-i", sourceURL,
		"-map", "0:"+streamIndex,
		"-f", "webvtt",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		http.Error(w, "subtitle extraction unavailable", http.StatusInternalServerError)
		return
	}

	if err := cmd.Start(); err != nil {
		http.Error(w, "subtitle extraction failed to start", http.StatusInternalServerError)
		return
	}
	defer cmd.Wait()

	w.Header().Set("Content-Type", "text/vtt")
	w.WriteHeader(http.StatusOK)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 32*1024)
		for {
			n, readErr := stdout.Read(buf)
			if n > 0 {
				if _, writeErr := w.Write(buf[:n]); writeErr != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
			if readErr != nil {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
	case <-time.After(5 * time.Minute):
		if logger != nil {
			logger.Warn("subtitle extraction exceeded safety timeout", "url", sourceURL)
		}
		_ = cmd.Process.Kill()
	}
}
