package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/coup-league/coupd/pkg/coreerr"
)

// mapServiceError maps a core sentinel error kind to an echo.HTTPError,
// the single place this module does that translation — store and
// orchestrator code returns pkg/coreerr sentinels, and only this function
// knows which HTTP status each one means.
func mapServiceError(err error) *echo.HTTPError {
	var verr *coreerr.ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	}

	switch {
	case errors.Is(err, coreerr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, coreerr.ErrInvalidState):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, coreerr.ErrPreconditionFailed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, coreerr.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, coreerr.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, coreerr.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, coreerr.ErrTransient):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "transient failure, retry")
	default:
		slog.Error("unmapped service error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
