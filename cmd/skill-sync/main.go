package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "github.com/Hossein925/f-maharat/internal/common/logger"
	"github.com/Hossein925/f-maharat/internal/config"
	"github.com/Hossein925/f-maharat/internal/metrics"
	"github.com/Hossein925/f-maharat/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "skill-sync")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting skill-sync service")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := service.NewSyncService(cfg, log, reg)
	if err != nil {
		log.Fatal("Failed to create sync service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 2)
	go func() {
		if err := svc.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	var metricsServer *metrics.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, reg, log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
	}
	cancel()

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if metricsServer != nil {
		if err := metricsServer.Stop(stopCtx); err != nil {
			log.Error("Error stopping metrics server", zap.Error(err))
		}
	}
	if err := svc.Stop(stopCtx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	log.Info("Service stopped")
}
