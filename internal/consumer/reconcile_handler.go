package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/webhook"
	"github.com/jpvieirapereira/running-club-backend/libs/go/events"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBackoff    = 500 * time.Millisecond
	defaultMaxRedeliveries = 5
)

// ReconcileHandler applies webhook events published by webhook.KafkaReconciler.
//
// Transient failures are retried in process with exponential backoff. An event that still
// fails is put back on the topic through the requeue reconciler and its offset committed.
type ReconcileHandler struct {
	syncer          webhook.SingleSyncer
	requeue         webhook.Reconciler
	attempts        int
	backoff         time.Duration
	maxRedeliveries int
	logger          *log.Logger
}

// HandlerOption customises a ReconcileHandler.
type HandlerOption func(*ReconcileHandler)

// WithRetry sets how many times a transient failure is attempted and the first backoff delay.
func WithRetry(attempts int, backoff time.Duration) HandlerOption {
	return func(h *ReconcileHandler) {
		if attempts > 0 {
			h.attempts = attempts
		}
		if backoff >= 0 {
			h.backoff = backoff
		}
	}
}

// WithRequeue republishes events that exhausted their retries, at most maxRedeliveries times.
func WithRequeue(r webhook.Reconciler, maxRedeliveries int) HandlerOption {
	return func(h *ReconcileHandler) {
		h.requeue = r
		if maxRedeliveries > 0 {
			h.maxRedeliveries = maxRedeliveries
		}
	}
}

// NewReconcileHandler constructs a ReconcileHandler.
func NewReconcileHandler(syncer webhook.SingleSyncer, logger *log.Logger, opts ...HandlerOption) *ReconcileHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[reconcile] ", log.LstdFlags|log.Lshortfile)
	}
	h := &ReconcileHandler{
		syncer:          syncer,
		attempts:        defaultRetryAttempts,
		backoff:         defaultRetryBackoff,
		maxRedeliveries: defaultMaxRedeliveries,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle syncs the referenced activity. It only returns an error when the event could be
// neither applied nor requeued, or when ctx ends.
func (h *ReconcileHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != webhook.EventTypeWebhookReceived {
		return nil
	}
	var evt events.StravaWebhookReceived
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		h.logger.Printf("drop malformed webhook event at offset %d: %v", msg.Offset, err)
		return nil
	}
	if evt.CustomerID == "" || evt.ActivityID == 0 {
		h.logger.Printf("drop incomplete webhook event at offset %d", msg.Offset)
		return nil
	}

	err := h.syncWithRetry(ctx, evt)
	switch {
	case err == nil:
		recordReconciled("synced")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case retryable(err):
		return h.redeliver(ctx, evt, err)
	default:
		recordReconciled("dropped")
		h.logger.Printf("drop activity %d for customer %s: %v", evt.ActivityID, evt.CustomerID, err)
		return nil
	}
}

func (h *ReconcileHandler) syncWithRetry(ctx context.Context, evt events.StravaWebhookReceived) error {
	delay := h.backoff
	var err error
	for attempt := 1; ; attempt++ {
		_, err = h.syncer.SyncSingleActivity(ctx, evt.ActivityID, evt.CustomerID)
		if err == nil || !retryable(err) || attempt >= h.attempts {
			return err
		}
		recordReconciled("retry")
		h.logger.Printf("activity %d for customer %s: attempt %d failed, retrying in %s: %v",
			evt.ActivityID, evt.CustomerID, attempt, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

func (h *ReconcileHandler) redeliver(ctx context.Context, evt events.StravaWebhookReceived, cause error) error {
	if h.requeue == nil || evt.Redeliveries >= h.maxRedeliveries {
		recordReconciled("dropped")
		h.logger.Printf("giving up on activity %d for customer %s after %d redeliveries: %v",
			evt.ActivityID, evt.CustomerID, evt.Redeliveries, cause)
		return nil
	}
	evt.Redeliveries++
	if err := h.requeue.Reconcile(ctx, evt); err != nil {
		return fmt.Errorf("requeue activity %d: %w", evt.ActivityID, errors.Join(cause, err))
	}
	recordReconciled("requeued")
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamUnavailable) ||
		errors.Is(err, domain.ErrRefreshFailed) ||
		errors.Is(err, context.DeadlineExceeded)
}
