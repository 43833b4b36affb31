package domain

import "errors"

var (
	// ErrNotFound is the parent of every lookup miss below.
	ErrNotFound = errors.New("not found")
	// ErrCustomerNotFound is returned when the customer does not exist.
	ErrCustomerNotFound = notFound("customer not found")
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = notFound("activity not found")
	// ErrConnectionNotFound is returned when no Strava connection is stored for a customer.
	ErrConnectionNotFound = notFound("strava connection not found")
	// ErrTrainingPlanNotFound is returned when a training plan cannot be located.
	ErrTrainingPlanNotFound = notFound("training plan not found")
	// ErrTrainingDayNotFound is returned when a training day cannot be located.
	ErrTrainingDayNotFound = notFound("training day not found")

	// ErrNotConnected indicates the customer has no Strava athlete bound.
	ErrNotConnected = errors.New("strava not connected")
	// ErrConnectionInconsistent indicates the customer believes it is connected but no
	// connection record exists.
	ErrConnectionInconsistent = errors.New("strava connection missing for connected customer")
	// ErrRefreshFailed wraps failures of the token refresh exchange.
	ErrRefreshFailed = errors.New("strava token refresh failed")
	// ErrUpstreamUnavailable covers timeouts and non-2xx answers from Strava.
	ErrUpstreamUnavailable = errors.New("strava unavailable")
	// ErrValidationFailed marks malformed input.
	ErrValidationFailed = errors.New("validation failed")
	// ErrForbidden is returned when the caller may not touch the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateActivity is returned by repositories when (customer, external id) already exists.
	ErrDuplicateActivity = errors.New("activity already imported")
	// ErrTrainingDayClaimed is returned when deleting or re-dating a day that holds a match.
	ErrTrainingDayClaimed = errors.New("training day already matched")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
