package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/database"
	"github.com/mantonx/streamgate/internal/engine"
	"github.com/mantonx/streamgate/internal/eviction"
	"github.com/mantonx/streamgate/internal/httpapi"
	"github.com/mantonx/streamgate/internal/probe"
	"github.com/mantonx/streamgate/internal/session"
)

func main() {
	cfg := config.Get()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "streamgate",
		Level:      hclog.LevelFromString(cfg.Logging.Level),
		JSONFormat: cfg.Logging.JSON,
	})

	logger.Info("starting streaming session engine")

	conn, err := database.Connect(logger.Named("database"))
	if err != nil {
		logger.Warn("session ledger unavailable, continuing without it", "error", err)
	}
	_ = conn
	ledger := database.NewLedger(logger.Named("ledger"))

	if err := session.ResetRoot(cfg.Transcode.HLSRoot); err != nil {
		logger.Error("failed to prepare hls root", "path", cfg.Transcode.HLSRoot, "error", err)
		os.Exit(1)
	}

	store := session.NewStore(cfg.Transcode.HLSRoot)
	prober := probe.NewFFprobe(cfg.Transcode.FFprobePath, logger.Named("probe"))
	eng := engine.New(store, prober, ledger, logger.Named("engine"), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evictionLoop := eviction.New(store, cfg.Session.EvictionInterval, cfg.Session.InactivityLimit, logger.Named("eviction"), ledger)
	go evictionLoop.Run(ctx)

	srv := httpapi.NewServer(eng, prober, logger.Named("http"))

	port := cfg.Server.Port
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: srv.Router(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down gracefully")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("listening", "port", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("failed to start on configured port, trying fallback", "port", port, "error", err)
		fallbackPort := port + 1
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", fallbackPort),
			Handler: srv.Router(),
		}
		logger.Info("listening on fallback port", "port", fallbackPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start on fallback port", "port", fallbackPort, "error", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	logger.Info("shutdown complete")
}
