package fhir

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// IssueTypeForStatus maps an HTTP status to the OperationOutcome issue code
// reported with it.
func IssueTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return IssueTypeInvalid
	case http.StatusUnauthorized:
		return IssueTypeLogin
	case http.StatusForbidden:
		return IssueTypeForbidden
	case http.StatusNotFound:
		return IssueTypeNotFound
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return IssueTypeNotSupported
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return IssueTypeTimeout
	case http.StatusTooManyRequests:
		return IssueTypeThrottled
	case http.StatusBadGateway:
		return IssueTypeTransient
	case http.StatusServiceUnavailable:
		return IssueTypeException
	default:
		return IssueTypeProcessing
	}
}

// ErrorHandler renders every error that reaches echo as an OperationOutcome.
// Joined errors become one issue each.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		cause := err
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				cause = he.Internal
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error().Err(cause).
				Int("status", code).
				Str("path", c.Request().URL.Path).
				Interface("request_id", c.Get("request_id")).
				Msg("request failed")
		}

		issueType := IssueTypeForStatus(code)
		b := NewOutcomeBuilder()
		var joined interface{ Unwrap() []error }
		if errors.As(cause, &joined) && len(joined.Unwrap()) > 1 {
			for _, e := range joined.Unwrap() {
				b.AddIssue(IssueSeverityError, issueType, e.Error())
			}
		} else {
			b.AddIssue(IssueSeverityError, issueType, msg)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, b.Build())
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
