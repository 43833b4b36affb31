package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"activity_id":"abc"}`)
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(42))
	copy(value[5:], payload)

	reader := &stubReader{messages: []kafka.Message{{
		Topic:  "activity_events",
		Offset: 10,
		Time:   time.Now().UTC(),
		Value:  value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("activity.synced")},
			{Key: "customer_id", Value: []byte("cust-1")},
		},
	}}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "activity.synced", handler.last.EventType)
	require.Equal(t, "cust-1", handler.last.CustomerID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorAcceptsUnframedJSON(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{{
		Topic:   "strava_webhook_events",
		Value:   []byte(`{"customer_id":"cust-1","activity_id":5}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("strava.webhook_received")}},
	}}}
	handler := &stubHandler{}

	_ = NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(context.Background())

	require.Equal(t, 1, handler.calls)
	require.Zero(t, handler.last.SchemaID)
	require.Equal(t, 1, reader.commitCalls)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{{
		Topic:   "strava_webhook_events",
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("strava.webhook_received")}},
	}}}
	handler := &stubHandler{err: errors.New("boom")}

	_ = NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(context.Background())

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsPoisonMessages(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		{Topic: "t", Value: []byte(`{}`)},
		{Topic: "t", Value: []byte(`not json`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
		{Topic: "t", Value: []byte{0, 1}, Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
	}}
	handler := &stubHandler{}

	_ = NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(context.Background())

	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(context.Context, ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct{ t *testing.T }

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *log.Logger {
	return log.New(testWriter{t}, "", 0)
}
