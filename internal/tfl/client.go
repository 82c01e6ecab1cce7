// Package tfl is a typed client for the parts of the TfL Unified API the
// board uses: lines by mode, stop points of a line, a single stop point and
// live arrivals at a stop point.
package tfl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubeboard.app/internal/cache"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/upstream"
)

const provider = "tfl"

type Options struct {
	BaseURL string
	AppKey  string
	// Modes requested by Lines. Defaults to tube, overground, dlr,
	// elizabeth-line and national-rail.
	Modes []string

	HTTPClient *http.Client
	// RequestsPerSecond caps outbound traffic. TfL allows 500 per minute
	// with a key; zero disables the limiter.
	RequestsPerSecond float64
	MaxRetries        uint64
	RetryBase         time.Duration

	Cache    cache.Cache
	CacheTTL time.Duration

	Logger   *slog.Logger
	Observer upstream.Observer
	Clock    clock.Clock
}

type Client struct {
	baseURL  string
	appKey   string
	modes    []string
	req      *upstream.Requester
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "tfl_client"))

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.tfl.gov.uk"
	}
	modes := opts.Modes
	if len(modes) == 0 {
		modes = []string{"tube", "overground", "dlr", "elizabeth-line", "national-rail"}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewHTTPClient(10 * time.Second)
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Client{
		baseURL: baseURL,
		appKey:  opts.AppKey,
		modes:   modes,
		req: &upstream.Requester{
			Provider:   provider,
			Client:     httpClient,
			Limiter:    upstream.NewLimiter(opts.RequestsPerSecond, 5),
			Logger:     logger,
			Observer:   opts.Observer,
			Clock:      opts.Clock,
			MaxRetries: opts.MaxRetries,
			RetryBase:  opts.RetryBase,
		},
		cache:    opts.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// Modes returns the default mode list used by Lines.
func (c *Client) Modes() []string {
	return append([]string(nil), c.modes...)
}

// Lines returns every line of the configured modes.
func (c *Client) Lines(ctx context.Context) ([]Line, error) {
	return c.LinesForModes(ctx, c.modes)
}

// LinesForModes returns the lines of the given modes in TfL's order.
func (c *Client) LinesForModes(ctx context.Context, modes []string) ([]Line, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("no modes requested")
	}
	escaped := make([]string, len(modes))
	for i, m := range modes {
		escaped[i] = url.PathEscape(strings.TrimSpace(m))
	}
	joined := strings.Join(escaped, ",")

	return cache.Fetch(ctx, c.cache, "tfl:lines:"+joined, c.cacheTTL, func(ctx context.Context) ([]Line, error) {
		var lines []Line
		if err := c.get(ctx, "lines", "/Line/Mode/"+joined, &lines); err != nil {
			return nil, fmt.Errorf("failed to fetch lines: %w", err)
		}
		return lines, nil
	}, c.cacheError)
}

// StationsForLine returns the stop points served by lineID.
func (c *Client) StationsForLine(ctx context.Context, lineID string) ([]Station, error) {
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return nil, fmt.Errorf("line id is required")
	}
	return cache.Fetch(ctx, c.cache, "tfl:line-stations:"+lineID, c.cacheTTL, func(ctx context.Context) ([]Station, error) {
		var stations []Station
		if err := c.get(ctx, "line_stations", "/Line/"+url.PathEscape(lineID)+"/StopPoints", &stations); err != nil {
			return nil, fmt.Errorf("failed to fetch stations for line %s: %w", lineID, err)
		}
		return stations, nil
	}, c.cacheError)
}

// Station returns a single stop point.
func (c *Client) Station(ctx context.Context, stationID string) (Station, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return Station{}, fmt.Errorf("station id is required")
	}
	return cache.Fetch(ctx, c.cache, "tfl:station:"+stationID, c.cacheTTL, func(ctx context.Context) (Station, error) {
		var station Station
		if err := c.get(ctx, "station", "/StopPoint/"+url.PathEscape(stationID), &station); err != nil {
			return Station{}, fmt.Errorf("failed to fetch station %s: %w", stationID, err)
		}
		return station, nil
	}, c.cacheError)
}

// Arrivals returns the live predictions at stationID. Results are never
// cached here.
func (c *Client) Arrivals(ctx context.Context, stationID string) ([]Arrival, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil, fmt.Errorf("station id is required")
	}
	var arrivals []Arrival
	if err := c.get(ctx, "arrivals", "/StopPoint/"+url.PathEscape(stationID)+"/Arrivals", &arrivals); err != nil {
		return nil, fmt.Errorf("failed to fetch arrivals for %s: %w", stationID, err)
	}
	return arrivals, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, out any) error {
	target := c.baseURL + path
	if c.appKey != "" {
		target += "?app_key=" + url.QueryEscape(c.appKey)
	}
	return c.req.GetJSON(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, out)
}

func (c *Client) cacheError(err error) {
	logging.LogError(c.logger, "tfl cache operation failed", err)
}
