package restapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tubeboard.app/internal/board"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/upstream"
)

// errBadRequest marks input the client can fix.
var errBadRequest = errors.New("bad request")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (api *RestAPI) logger(r *http.Request) *slog.Logger {
	if logger := logging.FromContext(r.Context()); logger != slog.Default() {
		return logger
	}
	if api.Application != nil && api.Logger != nil {
		return api.Logger
	}
	return slog.Default()
}

// statusFor maps err onto a status code and envelope text: input errors are
// 400, a provider 404 or unknown arrival is 404, other provider failures
// are 502 and anything else is 500.
func statusFor(err error) (int, string) {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, board.ErrNoStation):
		return http.StatusBadRequest, err.Error()
	case upstream.IsNotFound(err), errors.Is(err, board.ErrArrivalNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, board.ErrNoRail), errors.Is(err, rtt.ErrNoCode):
		return http.StatusNotFound, "no rail departures for this station"
	case errors.Is(err, board.ErrSessionClosed):
		return http.StatusConflict, "session expired, please retry"
	case errors.Is(err, board.ErrNoPreferences):
		return http.StatusServiceUnavailable, "preferences are not available"
	case errors.As(err, &apiErr), upstream.IsNetwork(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "upstream provider unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.logger(r), "internal server error", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	api.sendError(w, r, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.sendError(w, r, http.StatusBadRequest, err.Error())
}

func (api *RestAPI) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Client went away.
		return
	}
	code, text := statusFor(err)
	switch {
	case code == http.StatusInternalServerError:
		api.serverErrorResponse(w, r, err)
		return
	case code == http.StatusBadRequest:
		api.validationErrorResponse(w, r, err)
		return
	case code >= http.StatusInternalServerError:
		logging.LogError(api.logger(r), "request failed", err,
			slog.String("path", r.URL.Path), slog.Int("status", code))
	}
	api.sendError(w, r, code, text)
}
