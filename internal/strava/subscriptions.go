package strava

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// PushSubscription is a webhook subscription registered for the OAuth application.
type PushSubscription struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	CallbackURL   string    `json:"callback_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreatePushSubscription registers callbackURL. Strava immediately calls the callback with a
// handshake that must echo the challenge for verifyToken.
func (c *Client) CreatePushSubscription(ctx context.Context, callbackURL, verifyToken string) (int64, error) {
	form := c.clientForm()
	form.Set("callback_url", callbackURL)
	form.Set("verify_token", verifyToken)

	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, "create_subscription", http.MethodPost, c.cfg.APIURL+"/push_subscriptions", "", form, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// ListPushSubscriptions returns the subscriptions of the OAuth application.
func (c *Client) ListPushSubscriptions(ctx context.Context) ([]PushSubscription, error) {
	q := c.clientForm()
	var out []PushSubscription
	if err := c.do(ctx, "list_subscriptions", http.MethodGet, c.cfg.APIURL+"/push_subscriptions?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePushSubscription removes a subscription.
func (c *Client) DeletePushSubscription(ctx context.Context, id int64) error {
	q := c.clientForm()
	endpoint := fmt.Sprintf("%s/push_subscriptions/%d?%s", c.cfg.APIURL, id, q.Encode())
	return c.do(ctx, "delete_subscription", http.MethodDelete, endpoint, "", nil, nil)
}

