package profile

import (
	"errors"
	"net/http"
)

var (
	// ErrInsufficientData means the caller's input cannot anchor an estimate,
	// e.g. no arrivals yet or no completed hour today.
	ErrInsufficientData = errors.New("insufficient data for prediction")

	// ErrProfileUnavailable means the profile set failed to load at startup.
	ErrProfileUnavailable = errors.New("profile unavailable")

	// ErrProfileLookup means a loaded table has a missing or numerically
	// unusable cell for the requested key.
	ErrProfileLookup = errors.New("profile lookup failed")

	// ErrLabelFormat means a triage category label does not follow the
	// <prefix>_<N> convention.
	ErrLabelFormat = errors.New("invalid category label")
)

// Classify returns a short, stable label for err suitable for metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrProfileUnavailable):
		return "unavailable"
	case errors.Is(err, ErrProfileLookup):
		return "lookup"
	case errors.Is(err, ErrLabelFormat):
		return "label_format"
	default:
		return "error"
	}
}

// StatusCode maps a profile error to the HTTP status it is reported with.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, ErrProfileUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
