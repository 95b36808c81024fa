package control

import (
	"errors"
	"net/http"

	"fleetwatch/pkg/log"
	"fleetwatch/pkg/machine"
	"fleetwatch/pkg/operation"

	"github.com/labstack/echo/v4"
)

// statusFor maps the machine error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, machine.ErrInvalidInput), errors.Is(err, machine.ErrNoSummary):
		return http.StatusBadRequest
	case errors.Is(err, machine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, machine.ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// failure converts a workflow error into an HTTP error. Server-side
// failures are logged here and reported without internal detail.
func failure(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("operation", operation.Name(c)).
			Msg("Operation failed")
		return echo.NewHTTPError(status, "internal error")
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}

func notImplemented(echo.Context) error {
	return echo.NewHTTPError(http.StatusNotImplemented, "not implemented")
}
