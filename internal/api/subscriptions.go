package api

import (
	"net/http"
	"strconv"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, domain.RoleAdmin); !ok {
		return
	}
	id, err := h.deps.Subscriptions.CreatePushSubscription(r.Context(), h.deps.WebhookCallbackURL, h.deps.WebhookVerifyToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubscriptionView{ID: id, CallbackURL: h.deps.WebhookCallbackURL})
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, domain.RoleAdmin); !ok {
		return
	}
	subs, err := h.deps.Subscriptions.ListPushSubscriptions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]SubscriptionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionView(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, domain.RoleAdmin); !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "subscription id must be an integer")
		return
	}
	if err := h.deps.Subscriptions.DeletePushSubscription(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
