package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

var proxyClient = &http.Client{}

// proxyDirectStream forwards sourceURL byte-for-byte: Range and
// User-Agent travel upstream, Content-Type/Content-Length/
// Content-Range/Accept-Ranges travel back. A client disconnect cancels
// the upstream request via the request's own context.
func proxyDirectStream(w http.ResponseWriter, r *http.Request, sourceURL string, logger hclog.Logger) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, sourceURL, nil)
	if err != nil {
		http.Error(w, "bad upstream url", http.StatusBadGateway)
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := proxyClient.Do(req)
	if err != nil {
		if logger != nil {
			logger.Warn("direct-stream upstream error", "url", sourceURL, "error", err)
		}
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for _, h := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.Copy(w, resp.Body)
}
