package api

import (
	"net/http"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/trainingplan"
)

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCoach, domain.RoleAdmin)
	if !ok {
		return
	}
	var req PlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "end_date must be YYYY-MM-DD")
		return
	}

	plan, err := h.deps.Plans.CreatePlan(r.Context(), p, trainingplan.PlanInput{
		CustomerID:      req.CustomerID,
		Name:            req.Name,
		Description:     req.Description,
		SuccessCriteria: req.SuccessCriteria,
		StartDate:       start,
		EndDate:         end,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanView(plan, nil))
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	plan, days, err := h.deps.Plans.GetPlan(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanView(*plan, days))
}

func (h *Handler) addDay(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCoach, domain.RoleAdmin)
	if !ok {
		return
	}
	in, ok := decodeDay(w, r)
	if !ok {
		return
	}
	day, err := h.deps.Plans.AddDay(r.Context(), p, r.PathValue("id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDayView(day))
}

func (h *Handler) updateDay(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCoach, domain.RoleAdmin)
	if !ok {
		return
	}
	in, ok := decodeDay(w, r)
	if !ok {
		return
	}
	day, err := h.deps.Plans.UpdateDay(r.Context(), p, r.PathValue("id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayView(day))
}

func (h *Handler) deleteDay(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, domain.RoleCoach, domain.RoleAdmin)
	if !ok {
		return
	}
	if err := h.deps.Plans.DeleteDay(r.Context(), p, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDay(w http.ResponseWriter, r *http.Request) (trainingplan.DayInput, bool) {
	var req DayRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return trainingplan.DayInput{}, false
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return trainingplan.DayInput{}, false
	}
	return trainingplan.DayInput{
		Date:           date,
		TrainingType:   req.TrainingType,
		Zone:           req.Zone,
		Terrain:        req.Terrain,
		DistanceKm:     req.DistanceKm,
		WorkoutDetails: req.WorkoutDetails,
		DayOrder:       req.DayOrder,
	}, true
}
