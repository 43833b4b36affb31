package consumer

import "github.com/prometheus/client_golang/prometheus"

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "running_club",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Kafka messages handled and committed.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "running_club",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Handler errors grouped by topic and event type.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "running_club",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Decode failures per topic.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "running_club",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent processed message per topic.",
	}, []string{"topic"})

	reconciledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "running_club",
		Subsystem: "consumer",
		Name:      "webhook_reconciliations_total",
		Help:      "Webhook reconciliations by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, lastMessageGauge, reconciledCounter)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordReconciled(outcome string) {
	reconciledCounter.WithLabelValues(outcome).Inc()
}
