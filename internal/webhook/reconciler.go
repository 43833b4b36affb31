package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/libs/go/events"
)

// EventTypeWebhookReceived is the event_type header on reconciliation messages.
const EventTypeWebhookReceived = "strava.webhook_received"

// ErrReconcilerBusy is returned when the inline reconciler has no free slot.
var ErrReconcilerBusy = errors.New("reconciler busy")

// MessageWriter publishes messages to a topic. outbox.KafkaProducer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// KafkaReconciler defers reconciliation to the consumer by publishing the event.
type KafkaReconciler struct {
	writer MessageWriter
	topic  string
}

// NewKafkaReconciler constructs a KafkaReconciler.
func NewKafkaReconciler(writer MessageWriter, topic string) *KafkaReconciler {
	return &KafkaReconciler{writer: writer, topic: topic}
}

// Reconcile implements Reconciler. Messages are keyed by customer so one customer's events
// stay ordered on a single partition.
func (r *KafkaReconciler) Reconcile(ctx context.Context, evt events.StravaWebhookReceived) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode webhook event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.CustomerID),
		Value: payload,
		Time:  evt.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeWebhookReceived)},
			{Key: "customer_id", Value: []byte(evt.CustomerID)},
		},
	}
	if err := r.writer.WriteMessages(ctx, r.topic, msg); err != nil {
		return fmt.Errorf("publish webhook event: %w", err)
	}
	return nil
}

// SingleSyncer refreshes one activity. activitysync.Engine satisfies it.
type SingleSyncer interface {
	SyncSingleActivity(ctx context.Context, externalID int64, customerID string) (*domain.Activity, error)
}

// InlineReconciler syncs in background goroutines when no broker is configured.
type InlineReconciler struct {
	syncer  SingleSyncer
	slots   chan struct{}
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// NewInlineReconciler allows at most concurrency syncs in flight, each bounded by timeout.
func NewInlineReconciler(syncer SingleSyncer, concurrency int, timeout time.Duration, logger *log.Logger) *InlineReconciler {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[webhook-inline] ", log.LstdFlags|log.Lshortfile)
	}
	return &InlineReconciler{
		syncer:  syncer,
		slots:   make(chan struct{}, concurrency),
		timeout: timeout,
		logger:  logger,
	}
}

// Reconcile implements Reconciler. The request context is not used by the background sync.
func (r *InlineReconciler) Reconcile(_ context.Context, evt events.StravaWebhookReceived) error {
	select {
	case r.slots <- struct{}{}:
	default:
		return ErrReconcilerBusy
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.syncer.SyncSingleActivity(ctx, evt.ActivityID, evt.CustomerID); err != nil {
			r.logger.Printf("sync activity %d for customer %s: %v", evt.ActivityID, evt.CustomerID, err)
		}
	}()
	return nil
}

// Wait blocks until in-flight syncs finish.
func (r *InlineReconciler) Wait() {
	r.wg.Wait()
}
