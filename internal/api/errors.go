package api

import (
	"errors"
	"net/http"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// errorStatus maps domain errors onto an HTTP status and a stable error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusBadRequest, "not_connected"
	case errors.Is(err, domain.ErrConnectionInconsistent):
		return http.StatusConflict, "connection_inconsistent"
	case errors.Is(err, domain.ErrTrainingDayClaimed):
		return http.StatusConflict, "training_day_claimed"
	case errors.Is(err, domain.ErrDuplicateActivity):
		return http.StatusConflict, "duplicate_activity"
	case errors.Is(err, domain.ErrRefreshFailed):
		return http.StatusBadGateway, "refresh_failed"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	}
	return http.StatusInternalServerError, "server_error"
}

// syncErrorStatus is errorStatus for the sync endpoints, which report every precondition or
// upstream failure as 400.
func syncErrorStatus(err error) (int, string) {
	status, code := errorStatus(err)
	switch code {
	case "not_found", "not_connected", "connection_inconsistent", "refresh_failed", "upstream_unavailable":
		return http.StatusBadRequest, code
	}
	return status, code
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, err.Error())
}
