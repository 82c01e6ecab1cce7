package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tubeboard.app/internal/app"
	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/cache"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/metrics"
	"tubeboard.app/internal/restapi"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/store"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/webui"
)

const (
	londonTimeZone    = "Europe/London"
	tflRequestsPerSec = 8
	upstreamRetries   = 3
	staticCacheSize   = 2048
	dbStatsInterval   = 30 * time.Second
	preloadTimeout    = 2 * time.Minute
)

// ParseRTTCodes reads "stationID=CRS" pairs separated by commas. CRS codes
// are upper-cased.
func ParseRTTCodes(input string) (map[string]string, error) {
	codes := map[string]string{}
	for _, pair := range appconf.ParseList(input) {
		if pair == "" {
			continue
		}
		id, code, ok := strings.Cut(pair, "=")
		id, code = strings.TrimSpace(id), strings.TrimSpace(code)
		if !ok || id == "" || code == "" {
			return nil, fmt.Errorf("invalid rtt code %q, want stationID=CRS", pair)
		}
		codes[id] = strings.ToUpper(code)
	}
	return codes, nil
}

// BuildApplication wires the providers, the preferences store and the board
// manager. The manager is not started.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger, logCloser := logging.NewLogger(logging.Options{
		JSON:  cfg.Env == appconf.Production,
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	fail := func(err error) (*app.Application, error) {
		_ = logCloser.Close()
		return nil, err
	}

	location, err := time.LoadLocation(londonTimeZone)
	if err != nil {
		return fail(fmt.Errorf("failed to load time zone: %w", err))
	}

	ctx := context.Background()
	clk := clock.RealClock{}
	m := metrics.NewWithLogger(logger)

	var staticCache cache.Cache
	if cfg.RedisAddr != "" {
		staticCache, err = cache.NewRedis(ctx, cfg.RedisAddr, "tubeboard:")
		if err != nil {
			return fail(fmt.Errorf("failed to initialize cache: %w", err))
		}
	} else {
		staticCache = cache.NewMemory(staticCacheSize, clk)
	}

	st, err := store.Open(ctx, store.Config{DBPath: cfg.DatabasePath, Env: cfg.Env, Verbose: cfg.Verbose}, clk, logger)
	if err != nil {
		_ = staticCache.Close()
		return fail(fmt.Errorf("failed to open preferences store: %w", err))
	}

	tflClient := tfl.NewClient(tfl.Options{
		BaseURL:           cfg.TfLBaseURL,
		AppKey:            cfg.TfLAppKey,
		Modes:             cfg.Modes,
		RequestsPerSecond: tflRequestsPerSec,
		MaxRetries:        upstreamRetries,
		Cache:             staticCache,
		CacheTTL:          cfg.CacheTTL,
		Logger:            logger,
		Observer:          m,
		Clock:             clk,
	})

	opts := board.Options{
		TfL:      tflClient,
		Prefs:    st,
		Clock:    clk,
		Logger:   logger,
		Metrics:  m,
		Location: location,
		Intervals: board.Intervals{
			ArrivalsRefresh: cfg.ArrivalsRefresh,
			DetailRefresh:   cfg.DetailRefresh,
		},
		SessionTTL: cfg.SessionTTL,
	}

	var railClient *rtt.Client
	if cfg.HasRTTCredentials() {
		railClient = rtt.NewClient(rtt.Options{
			BaseURL:    cfg.RTTBaseURL,
			Username:   cfg.RTTUsername,
			Password:   cfg.RTTPassword,
			Codes:      cfg.RTTCodes,
			MaxRetries: upstreamRetries,
			Logger:     logger,
			Observer:   m,
			Clock:      clk,
		})
		opts.Rail = railClient
	} else {
		logger.Info("realtime trains credentials not set, rail board disabled")
	}

	return &app.Application{
		Config:    cfg,
		Logger:    logger,
		Clock:     clk,
		Metrics:   m,
		Location:  location,
		TfL:       tflClient,
		RTT:       railClient,
		Store:     st,
		Board:     board.NewManager(opts),
		Cache:     staticCache,
		LogCloser: logCloser,
	}, nil
}

// CreateServer mounts the JSON API and the HTML board on one mux.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI, error) {
	api := restapi.NewRestAPI(coreApp)
	ui, err := webui.NewWebUI(coreApp)
	if err != nil {
		api.Shutdown()
		return nil, nil, err
	}

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	ui.SetWebUIRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.Handler(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	return srv, api, nil
}

// Run starts the background work, serves until SIGINT or SIGTERM and then
// shuts everything down.
func Run(srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	logger := coreApp.Logger
	defer coreApp.Close()
	defer api.Shutdown()

	coreApp.Board.Start()
	coreApp.Metrics.StartDBStatsCollector(coreApp.Store.DB(), dbStatsInterval)

	if coreApp.Config.PreloadStations {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), preloadTimeout)
			defer cancel()
			if err := coreApp.Board.Preload(ctx); err != nil {
				logging.LogError(logger, "station preload incomplete", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "server_starting",
			slog.String("addr", srv.Addr),
			slog.String("env", coreApp.Config.Env.String()),
			slog.Bool("rail", coreApp.RailEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.LogOperation(logger, "server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logging.LogOperation(logger, "server_stopped")
	return nil
}
