package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpvieirapereira/running-club-backend/internal/app"
	"github.com/jpvieirapereira/running-club-backend/internal/config"
	"github.com/jpvieirapereira/running-club-backend/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run a single pass over all connected customers and exit")
	flag.Parse()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build services: %v", err)
	}
	defer components.Close()

	runner := scheduler.NewRunner(components.Connections, components.Engine, scheduler.WithOverlap(cfg.Sync.Overlap))

	if *once {
		if err := runner.RunOnce(ctx); err != nil {
			log.Printf("sync pass finished with errors: %v", err)
			os.Exit(1)
		}
		return
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("scheduler metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	if err := runner.Start(ctx, cfg.Sync.Schedule); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	log.Printf("scheduler started (schedule=%s)", cfg.Sync.Schedule)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("scheduler shutdown requested")
	cancel()
	runner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
