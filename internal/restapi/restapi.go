// Package restapi serves the board's JSON API.
package restapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tubeboard.app/internal/app"
	"tubeboard.app/internal/metrics"
)

// Cache-Control tiers, in seconds.
const (
	cacheStatic   = 300
	cacheRealtime = 5
	cacheNone     = 0
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

func NewRestAPI(a *app.Application) *RestAPI {
	api := &RestAPI{Application: a}
	if a != nil && a.Clock != nil {
		api.rateLimiter = NewRateLimitMiddleware(a.Config.RateLimit, time.Second, a.Clock)
	}
	return api
}

// SetRoutes registers the API endpoints on mux. Everything under /api is
// rate limited per client.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", api.healthHandler)
	if api.Application != nil && api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	api.handle(mux, "GET /api/current-time.json", cacheNone, api.currentTimeHandler)
	api.handle(mux, "GET /api/config.json", cacheStatic, api.configHandler)

	api.handle(mux, "GET /api/lines.json", cacheNone, api.linesHandler)
	api.handle(mux, "GET /api/lines/{lineID}/stations.json", cacheStatic, api.lineStationsHandler)
	api.handle(mux, "GET /api/stations/{stationID}", cacheStatic, api.stationHandler)
	api.handle(mux, "GET /api/stations/{stationID}/arrivals.json", cacheRealtime, api.arrivalsHandler)
	api.handle(mux, "GET /api/stations/{stationID}/rail-arrivals.json", cacheRealtime, api.railArrivalsHandler)
	api.handle(mux, "GET /api/stations-near.json", cacheStatic, api.stationsNearHandler)

	api.handle(mux, "GET /api/favorites.json", cacheNone, api.favoritesHandler)
	api.handle(mux, "POST /api/favorites/{stationID}/toggle.json", cacheNone, api.toggleFavoriteHandler)
	api.handle(mux, "GET /api/filters.json", cacheNone, api.filtersHandler)
	api.handle(mux, "PUT /api/filters.json", cacheNone, api.saveFiltersHandler)

	api.handle(mux, "GET /api/session.json", cacheNone, api.sessionHandler)
	api.handle(mux, "POST /api/session/lines", cacheNone, api.sessionLinesHandler)
	api.handle(mux, "POST /api/session/line/{lineID}", cacheNone, api.sessionLineHandler)
	api.handle(mux, "POST /api/session/station/{stationID}", cacheNone, api.sessionStationHandler)
	api.handle(mux, "POST /api/session/arrival/{arrivalID}", cacheNone, api.sessionArrivalHandler)
	api.handle(mux, "POST /api/session/back", cacheNone, api.sessionBackHandler)
	api.handle(mux, "POST /api/session/line-filter/{lineName}", cacheNone, api.sessionLineFilterHandler)
	api.handle(mux, "DELETE /api/session/notices/{noticeID}", cacheNone, api.dismissNoticeHandler)
}

func (api *RestAPI) handle(mux *http.ServeMux, pattern string, cacheSeconds int, h http.HandlerFunc) {
	var handler http.Handler = CacheControlMiddleware(cacheSeconds, h)
	if api.rateLimiter != nil {
		handler = api.rateLimiter.Handler()(handler)
	}
	mux.Handle(pattern, handler)
}

// Handler wraps next in the server-wide middleware. The first middleware
// listed is the outermost. MetricsHandler must sit directly above the mux so
// that it sees the r.Pattern the mux sets.
func (api *RestAPI) Handler(next http.Handler) http.Handler {
	var logger *slog.Logger
	var m *metrics.Metrics
	if api.Application != nil {
		logger, m = api.Logger, api.Metrics
	}
	return Chain(next,
		RecoveryMiddleware(logger),
		CompressionMiddleware,
		RequestIDMiddleware,
		NewRequestLoggingMiddleware(logger),
		CORSMiddleware,
		MetricsHandler(m),
	)
}

// Shutdown stops the background goroutines owned by the API.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
