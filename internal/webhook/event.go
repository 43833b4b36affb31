// Package webhook accepts Strava push notifications and hands actionable ones to a Reconciler.
package webhook

import "net/http"

// ModeSubscribe is the only hub.mode accepted by the subscription handshake.
const ModeSubscribe = "subscribe"

// Event is a Strava push notification body.
type Event struct {
	AspectType     string            `json:"aspect_type"`
	EventTime      int64             `json:"event_time"`
	ObjectID       int64             `json:"object_id"`
	ObjectType     string            `json:"object_type"`
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Decision is the result of classifying an event.
type Decision struct {
	Actionable bool
	Reason     string
}

// Classify keeps activity create and update events; everything else is acknowledged and dropped.
func Classify(e Event) Decision {
	if e.ObjectType != "activity" {
		return Decision{Reason: "object type " + e.ObjectType + " is not handled"}
	}
	switch e.AspectType {
	case "create", "update":
		return Decision{Actionable: true}
	}
	return Decision{Reason: "aspect type " + e.AspectType + " is not handled"}
}

// VerifySubscription answers the hub challenge. The mode is checked before the token.
func VerifySubscription(mode, token, challenge, secret string) (string, int) {
	if mode != ModeSubscribe {
		return "", http.StatusBadRequest
	}
	if secret == "" || token != secret {
		return "", http.StatusForbidden
	}
	return challenge, http.StatusOK
}
