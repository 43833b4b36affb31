package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/persistence"
)

const connectInstructions = "Open authorization_url, approve access, and Strava will redirect back to complete the connection."

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	u, err := h.deps.Connections.AuthorizationURL(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectResponse{AuthorizationURL: u, Instructions: connectInstructions})
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		writeError(w, http.StatusBadRequest, "authorization_denied", reason)
		return
	}
	if state := q.Get("state"); state != "" && state != p.ID {
		writeError(w, http.StatusBadRequest, "invalid_request", "state does not belong to the caller")
		return
	}

	if _, err := h.deps.Connections.Connect(r.Context(), p.ID, q.Get("code"), q.Get("scope")); err != nil {
		_, code := errorStatus(err)
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}
	st, err := h.deps.Connections.Status(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusView(st))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	st, err := h.deps.Connections.Status(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusView(st))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	if _, err := h.deps.Connections.Refresh(r.Context(), p.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := h.deps.Connections.Status(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusView(st))
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	if err := h.deps.Connections.Disconnect(r.Context(), p.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) syncAll(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	var after *time.Time
	if raw := r.URL.Query().Get("after"); raw != "" {
		ts, err := parseDate(raw, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "after must be a date or RFC 3339 timestamp")
			return
		}
		after = &ts
	}

	result, err := h.deps.Sync.SyncActivities(r.Context(), p.ID, after)
	if err != nil {
		status, code := syncErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		SyncedCount:  result.SyncedCount,
		MatchedCount: result.MatchedCount,
		ErrorCount:   result.ErrorCount,
		Message:      fmt.Sprintf("Successfully synced %d activities, matched %d to training days", result.SyncedCount, result.MatchedCount),
	})
}

func (h *Handler) syncOne(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	externalID, err := strconv.ParseInt(r.PathValue("external_id"), 10, 64)
	if err != nil || externalID <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "external_id must be a positive integer")
		return
	}
	a, err := h.deps.Sync.SyncSingleActivity(r.Context(), externalID, p.ID)
	if err != nil {
		status, code := syncErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*a))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	customerID := p.ID
	if p.Role != domain.RoleCustomer {
		customerID = strings.TrimSpace(q.Get("customer_id"))
		if customerID == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "missing customer_id parameter")
			return
		}
	}

	filter := domain.ActivityFilter{MatchStatus: domain.MatchStatus(q.Get("match_status"))}
	if raw := q.Get("start_date"); raw != "" {
		ts, err := parseDate(raw, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid start_date")
			return
		}
		filter.From = &ts
	}
	if raw := q.Get("end_date"); raw != "" {
		ts, err := parseDate(raw, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid end_date")
			return
		}
		filter.To = &ts
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	cursor, err := persistence.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	filter.Cursor = cursor

	items, next, err := h.deps.Sync.ListActivities(r.Context(), p, customerID, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := ListActivitiesResponse{
		Items:      make([]ActivityView, 0, len(items)),
		NextCursor: persistence.EncodeCursor(next),
	}
	for _, a := range items {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	a, err := h.deps.Sync.GetActivity(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*a))
}

func (h *Handler) unmatchActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	a, err := h.deps.Sync.UnmatchActivity(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*a))
}

func (h *Handler) ignoreActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer)
	if !ok {
		return
	}
	a, err := h.deps.Sync.IgnoreActivity(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*a))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCustomer, domain.RoleAdmin)
	if !ok {
		return
	}
	if err := h.deps.Sync.DeleteActivity(r.Context(), p, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDate accepts YYYY-MM-DD or RFC 3339. A bare end date covers the whole day.
func (h *Handler) activityCalendar(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	customerID := p.ID
	if p.Role != domain.RoleCustomer {
		customerID = strings.TrimSpace(q.Get("customer_id"))
		if customerID == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "missing customer_id parameter")
			return
		}
	}
	from, err := parseDate(q.Get("start_date"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid start_date")
		return
	}
	to, err := parseDate(q.Get("end_date"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid end_date")
		return
	}

	items, err := h.deps.Sync.ActivitiesBetween(r.Context(), p, customerID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := ListActivitiesResponse{Items: make([]ActivityView, 0, len(items))}
	for _, a := range items {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return d.Add(24*time.Hour - time.Nanosecond), nil
	}
	return d, nil
}
