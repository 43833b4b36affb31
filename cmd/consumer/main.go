package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/jpvieirapereira/running-club-backend/internal/app"
	"github.com/jpvieirapereira/running-club-backend/internal/config"
	"github.com/jpvieirapereira/running-club-backend/internal/consumer"
	"github.com/jpvieirapereira/running-club-backend/internal/outbox"
	"github.com/jpvieirapereira/running-club-backend/internal/webhook"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build services: %v", err)
	}
	defer components.Close()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.Webhook.ConsumerGroupID,
		Topic:           cfg.Webhook.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()
	handler := consumer.NewReconcileHandler(components.Engine, nil,
		consumer.WithRetry(cfg.Webhook.RetryAttempts, cfg.Webhook.RetryBackoff),
		consumer.WithRequeue(webhook.NewKafkaReconciler(producer, cfg.Webhook.Topic), 5),
	)
	proc := consumer.NewProcessor(reader, handler)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("consumer started (topic=%s, group=%s)", cfg.Webhook.Topic, cfg.Webhook.ConsumerGroupID)
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("consumer stopped with error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
	<-done
}
