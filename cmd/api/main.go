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

	"github.com/jpvieirapereira/running-club-backend/internal/api"
	"github.com/jpvieirapereira/running-club-backend/internal/app"
	"github.com/jpvieirapereira/running-club-backend/internal/auth"
	"github.com/jpvieirapereira/running-club-backend/internal/config"
	"github.com/jpvieirapereira/running-club-backend/internal/outbox"
	httptransport "github.com/jpvieirapereira/running-club-backend/internal/transport/http"
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

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	var dispatcher *outbox.Dispatcher
	if components.Pool != nil {
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(components.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	}

	var reconciler webhook.Reconciler
	var inline *webhook.InlineReconciler
	switch cfg.Webhook.Delivery {
	case "inline":
		inline = webhook.NewInlineReconciler(components.Engine, 4, 2*time.Minute, nil)
		reconciler = inline
	default:
		reconciler = webhook.NewKafkaReconciler(producer, cfg.Webhook.Topic)
	}

	validator, err := webhook.NewValidator()
	if err != nil {
		log.Fatalf("failed to compile webhook schema: %v", err)
	}
	intake := webhook.NewIntake(validator, components.Connections, reconciler,
		webhook.WithReconcileTimeout(cfg.Webhook.ReconcileTimeout))

	deps := api.Dependencies{
		Sync:               components.Engine,
		Connections:        components.Tokens,
		Plans:              components.Training,
		Webhooks:           intake,
		WebhookVerifyToken: cfg.Webhook.VerifyToken,
		WebhookCallbackURL: cfg.Webhook.CallbackURL,
	}
	if cfg.Strava.ClientID != "" {
		deps.Subscriptions = components.Strava
	}
	handler := api.NewHandler(deps)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.RequestLogger(nil, httptransport.CORS(cfg.CORSOrigin, authMiddleware.Wrap(mux))),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("running-club api listening on %s (webhook delivery=%s)", cfg.HTTPAddress, cfg.Webhook.Delivery)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if inline != nil {
		inline.Wait()
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
