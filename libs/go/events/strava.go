package events

import "time"

// StravaWebhookReceived carries an actionable Strava push event, already resolved to a
// customer, to the reconciliation consumer.
type StravaWebhookReceived struct {
	CustomerID     string    `json:"customer_id"`
	AthleteID      int64     `json:"athlete_id"`
	ActivityID     int64     `json:"activity_id"`
	AspectType     string    `json:"aspect_type"`
	EventTime      int64     `json:"event_time"`
	SubscriptionID int64     `json:"subscription_id"`
	ReceivedAt     time.Time `json:"received_at"`
	// Redeliveries counts how often the consumer put the event back on the topic.
	Redeliveries int `json:"redeliveries,omitempty"`
}
