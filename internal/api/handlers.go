// Package api exposes the HTTP surface for Strava connections, activity sync and training plans.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/jpvieirapereira/running-club-backend/internal/activitysync"
	"github.com/jpvieirapereira/running-club-backend/internal/auth"
	"github.com/jpvieirapereira/running-club-backend/internal/connection"
	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/strava"
	"github.com/jpvieirapereira/running-club-backend/internal/trainingplan"
	"github.com/jpvieirapereira/running-club-backend/internal/webhook"
)

// SubscriptionAdmin manages the application's Strava push subscription.
type SubscriptionAdmin interface {
	CreatePushSubscription(ctx context.Context, callbackURL, verifyToken string) (int64, error)
	ListPushSubscriptions(ctx context.Context) ([]strava.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id int64) error
}

// Dependencies groups the services the handlers call.
type Dependencies struct {
	Sync               *activitysync.Engine
	Connections        *connection.Service
	Plans              *trainingplan.Service
	Webhooks           *webhook.Intake
	Subscriptions      SubscriptionAdmin
	WebhookVerifyToken string
	WebhookCallbackURL string
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	deps Dependencies
}

// NewHandler builds a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /webhooks/strava", h.verifyWebhook)
	mux.HandleFunc("POST /webhooks/strava", h.receiveWebhook)

	mux.HandleFunc("GET /v1/strava/connect", h.connect)
	mux.HandleFunc("GET /v1/strava/callback", h.callback)
	mux.HandleFunc("GET /v1/strava/status", h.status)
	mux.HandleFunc("POST /v1/strava/refresh", h.refresh)
	mux.HandleFunc("DELETE /v1/strava/disconnect", h.disconnect)
	mux.HandleFunc("POST /v1/strava/sync", h.syncAll)
	mux.HandleFunc("POST /v1/strava/activities/{external_id}/sync", h.syncOne)
	mux.HandleFunc("GET /v1/strava/activities", h.listActivities)
	mux.HandleFunc("GET /v1/strava/activities/calendar", h.activityCalendar)
	mux.HandleFunc("GET /v1/strava/activities/{id}", h.getActivity)
	mux.HandleFunc("POST /v1/strava/activities/{id}/unmatch", h.unmatchActivity)
	mux.HandleFunc("POST /v1/strava/activities/{id}/ignore", h.ignoreActivity)
	mux.HandleFunc("DELETE /v1/strava/activities/{id}", h.deleteActivity)

	mux.HandleFunc("POST /v1/training-plans", h.createPlan)
	mux.HandleFunc("GET /v1/training-plans/{id}", h.getPlan)
	mux.HandleFunc("POST /v1/training-plans/{id}/days", h.addDay)
	mux.HandleFunc("PUT /v1/training-days/{id}", h.updateDay)
	mux.HandleFunc("DELETE /v1/training-days/{id}", h.deleteDay)

	if h.deps.Subscriptions != nil {
		mux.HandleFunc("POST /v1/admin/strava/subscriptions", h.createSubscription)
		mux.HandleFunc("GET /v1/admin/strava/subscriptions", h.listSubscriptions)
		mux.HandleFunc("DELETE /v1/admin/strava/subscriptions/{id}", h.deleteSubscription)
	}
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// principal resolves the caller or writes 401/403 and reports false.
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return domain.Principal{}, false
	}
	p, err := auth.PrincipalFromClaims(claims)
	if err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
		return domain.Principal{}, false
	}
	return p, true
}

// requireRole is principal restricted to the given roles.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...domain.Role) (domain.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return p, false
	}
	for _, role := range roles {
		if p.Role == role {
			return p, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "role "+string(p.Role)+" may not call this endpoint")
	return p, false
}

func (h *Handler) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, status := webhook.VerifySubscription(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), h.deps.WebhookVerifyToken)
	switch status {
	case http.StatusOK:
		writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
	case http.StatusBadRequest:
		writeError(w, status, "invalid_request", "hub.mode must be subscribe")
	default:
		writeError(w, status, "forbidden", "verify token mismatch")
	}
}

func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": string(webhook.StatusInvalid)})
		return
	}
	status := h.deps.Webhooks.Handle(r.Context(), body)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}
