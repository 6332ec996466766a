package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"publishd/internal/config"
	"publishd/internal/daemon"
	"publishd/internal/health"
	"publishd/internal/metrics"
	"publishd/internal/pkg/logger"
	"publishd/internal/pkg/shutdown"
	"publishd/internal/provider"
	"publishd/internal/provider/youtube"
	"publishd/internal/scheduler"
)

func main() {
	// Best-effort .env for local development; the real environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("invalid configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel(),
		Format:      os.Getenv("LOG_FORMAT"),
		ServiceName: "publish-daemon",
	})

	log.Info("publish daemon starting",
		"daemon_id", cfg.DaemonID,
		"api_base_url", cfg.APIBaseURL,
		"poll_interval_ms", cfg.PollInterval.Milliseconds(),
		"batch_size", cfg.BatchSize,
		"request_timeout_ms", cfg.RequestTimeout.Milliseconds(),
		"allowed_media_hosts", cfg.AllowedMediaHosts,
	)

	client := scheduler.NewClient(cfg, log)
	rec := metrics.NewRecorder(log)

	registry := provider.NewRegistry()
	yt, err := youtube.New(youtube.Options{
		ClientID:          cfg.YouTubeClientID,
		ClientSecret:      cfg.YouTubeClientSecret,
		AllowedMediaHosts: cfg.AllowedMediaHosts,
		Log:               log,
	})
	if err != nil {
		log.LogFatal("building youtube provider failed", err)
	}
	registry.Register("youtube", yt)
	registry.RegisterCleaner("youtube", yt)

	runner := daemon.NewRunner(client, registry, rec, cfg.BatchSize, log)
	loop := daemon.NewLoop(runner, cfg.PollInterval, log)

	mgr := shutdown.NewManager(log, 30*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.HealthAddr != "" {
		hs := health.New(cfg.HealthAddr, rec, log)
		go func() {
			if err := hs.Start(); err != nil {
				log.Error("health endpoint failed", "error", err.Error())
			}
		}()
		mgr.Register("health-endpoint", hs.Shutdown)
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			log.Error("poll loop exited", "error", err.Error())
		}
	}()

	// Stop polling, then wait for any in-flight iteration to finish.
	mgr.Register("poll-loop", func(sctx context.Context) error {
		cancel()
		select {
		case <-loopDone:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	})

	mgr.Wait()
	log.Info("publish daemon stopped")
}
