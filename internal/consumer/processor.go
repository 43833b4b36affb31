// Package consumer reads reconciliation events from Kafka and applies them.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jpvieirapereira/running-club-backend/internal/outbox"
)

// Reader is the subset of kafka.Reader used by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is a decoded Kafka record. SchemaID is zero for unframed JSON values.
type Message struct {
	Topic      string
	Partition  int
	Offset     int64
	Timestamp  time.Time
	EventType  string
	CustomerID string
	SchemaID   int
	Payload    json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Processor pulls messages from Kafka, decodes them and dispatches them to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *log.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until ctx is cancelled. Messages whose handler fails are left uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordDecodeError(msg.Topic)
			// Poison pill: commit and move on.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.Printf("handler error (event_type=%s, customer=%s): %v", event.EventType, event.CustomerID, handleErr)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
			continue
		}
		recordProcessed(event)
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	if len(msg.Value) == 0 {
		return Message{}, errors.New("empty value")
	}
	customerID, _ := headerValue(msg, "customer_id")

	schemaID := 0
	payload := msg.Value
	if msg.Value[0] == 0 {
		id, body, err := outbox.DecodeWireFormat(msg.Value)
		if err != nil {
			return Message{}, err
		}
		schemaID, payload = id, body
	}
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:      msg.Topic,
		Partition:  msg.Partition,
		Offset:     msg.Offset,
		Timestamp:  msg.Time,
		EventType:  string(eventType),
		CustomerID: string(customerID),
		SchemaID:   schemaID,
		Payload:    append(json.RawMessage(nil), payload...),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, h := range msg.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}
