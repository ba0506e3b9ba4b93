// Package httpapi exposes the gateway over HTTP: metadata, start,
// ping, stop, subtitle, direct-stream, client-log, plus ambient
// stats/healthz.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/mantonx/streamgate/internal/engine"
	"github.com/mantonx/streamgate/internal/probe"
	"github.com/mantonx/streamgate/internal/session"
	"github.com/mantonx/streamgate/internal/strategy"
)

// Server bundles the gin engine with its collaborators.
type Server struct {
	router *gin.Engine
	eng    *engine.Engine
	prober probe.Prober
	logger hclog.Logger
	start  time.Time
}

// NewServer builds the gin router with every route registered.
func NewServer(eng *engine.Engine, prober probe.Prober, logger hclog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{router: r, eng: eng, prober: prober, logger: logger, start: time.Now()}

	r.Use(s.cors())
	r.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.GET("/metadata", s.handleMetadata)
	r.GET("/start", s.handleStart)
	r.GET("/ping", s.handlePing)
	r.GET("/stop", s.handleStop)
	r.GET("/subtitle", s.handleSubtitle)
	r.GET("/direct-stream", s.handleDirectStream)
	r.HEAD("/direct-stream", s.handleDirectStream)
	r.POST("/client-log", s.handleClientLog)
	r.GET("/stats", s.handleStats)
	r.GET("/healthz", s.handleHealthz)

	return s
}

// Router exposes the underlying http.Handler for ListenAndServe.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, HEAD, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Range")
		c.Next()
	}
}

func (s *Server) handleMetadata(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	timeout := 20 * time.Second
	if s.eng != nil && s.eng.Cfg != nil && s.eng.Cfg.Transcode.ProbeTimeout > 0 {
		timeout = s.eng.Cfg.Transcode.ProbeTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	report, err := s.prober.Probe(ctx, url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "probe failed"})
		return
	}

	audio := make([]gin.H, 0, len(report.Audio))
	for _, a := range report.Audio {
		audio = append(audio, gin.H{"index": a.Index, "lang": a.Language, "codec": a.Codec})
	}
	subs := make([]gin.H, 0, len(report.Subtitles))
	for _, sub := range report.Subtitles {
		subs = append(subs, gin.H{"index": sub.Index, "lang": sub.Language, "title": sub.Title, "codec": sub.Codec})
	}

	c.JSON(http.StatusOK, gin.H{"audio": audio, "subs": subs, "duration": report.Duration})
}

func (s *Server) handleStart(c *gin.Context) {
	url := c.Query("url")
	sessionID := c.Query("session")
	if url == "" || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and session are required"})
		return
	}

	forceTranscode := c.Query("transcode") == "true"
	device := strategy.ClassifyUserAgent(c.Request.UserAgent(), c.Query("device"))

	result, err := s.eng.Start(c.Request.Context(), sessionID, url, c.Request.UserAgent(), forceTranscode, device)
	if err != nil {
		if err == session.ErrInvalidID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	body := gin.H{"status": result.Status, "mode": result.Mode}
	if result.StreamURL != "" {
		body["streamUrl"] = result.StreamURL
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handlePing(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session is required"})
		return
	}

	result, ok := s.eng.Ping(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "invalid_session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "active",
		"encodedDuration": result.EncodedDuration,
		"liveEdgeTime":    result.LiveEdgeTime,
	})
}

func (s *Server) handleStop(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session is required"})
		return
	}
	s.eng.Stop(sessionID)
	c.Status(http.StatusOK)
}

func (s *Server) handleSubtitle(c *gin.Context) {
	url := c.Query("url")
	index := c.Query("index")
	if url == "" || index == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and index are required"})
		return
	}
	extractSubtitleVTT(c.Writer, c.Request, url, index, s.logger)
}

func (s *Server) handleDirectStream(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	proxyDirectStream(c.Writer, c.Request, url, s.logger)
}

func (s *Server) handleClientLog(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64*1024))
	if err == nil && s.logger != nil {
		s.logger.Info("client log", "body", string(body))
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleStats(c *gin.Context) {
	pid := int32(os.Getpid())
	var cpuPercent float64
	var rssBytes uint64
	if p, err := process.NewProcess(pid); err == nil {
		if cpu, err := p.CPUPercent(); err == nil {
			cpuPercent = cpu
		}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			rssBytes = mem.RSS
		}
	}

	body := gin.H{
		"uptimeSeconds":  time.Since(s.start).Seconds(),
		"pid":            pid,
		"cpuPercent":     cpuPercent,
		"rssBytes":       rssBytes,
		"activeSessions": s.eng.Store.Count(),
		"modeCounts":     s.modeCounts(),
	}
	if s.eng.Ledger != nil {
		body["ledgerTotals"] = s.eng.Ledger.Totals()
	}
	c.JSON(http.StatusOK, body)
}

// modeCounts tallies sessions by their current strategy mode.
func (s *Server) modeCounts() map[string]int {
	counts := map[string]int{}
	s.eng.Store.ForEach(func(sess *session.Session) {
		sess.Lock()
		mode := string(sess.Mode)
		sess.Unlock()
		if mode == "" {
			mode = "none"
		}
		counts[mode]++
	})
	return counts
}

func (s *Server) handleHealthz(c *gin.Context) {
	cfg := s.eng.Cfg
	ffmpegOK := lookPathOK(cfg.Transcode.FFmpegPath)
	ffprobeOK := lookPathOK(cfg.Transcode.FFprobePath)

	status := http.StatusOK
	statusText := "ok"
	if !ffmpegOK || !ffprobeOK {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	c.JSON(status, gin.H{
		"status":  statusText,
		"ffmpeg":  ffmpegOK,
		"ffprobe": ffprobeOK,
	})
}

func lookPathOK(path string) bool {
	_, err := exec.LookPath(path)
	return err == nil
}
