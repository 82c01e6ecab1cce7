package app

import (
	"io"
	"log/slog"
	"time"

	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/cache"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/metrics"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/store"
	"tubeboard.app/internal/tfl"
)

// Application holds the dependencies shared by the HTTP handlers, the web
// UI and the middleware.
type Application struct {
	Config   appconf.Config
	Logger   *slog.Logger
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Location *time.Location

	TfL   *tfl.Client
	RTT   *rtt.Client
	Store *store.Store
	Board *board.Manager
	// Cache holds TfL static data; memory or redis.
	Cache cache.Cache

	// LogCloser flushes the rotating log file, if any.
	LogCloser io.Closer
}

// Close releases everything BuildApplication opened, in reverse order.
func (app *Application) Close() {
	if app.Board != nil {
		app.Board.Shutdown()
	}
	if app.Metrics != nil {
		app.Metrics.Shutdown()
	}
	if app.Store != nil {
		logging.SafeCloseWithLogging(app.Store, app.Logger, "preferences store")
	}
	if app.Cache != nil {
		logging.SafeCloseWithLogging(app.Cache, app.Logger, "static data cache")
	}
	if app.LogCloser != nil {
		_ = app.LogCloser.Close()
	}
}

// RailEnabled reports whether Realtime Trains credentials were configured.
func (app *Application) RailEnabled() bool {
	return app.RTT != nil
}
