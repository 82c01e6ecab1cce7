// Package board owns per-profile board sessions and the shared lookups they
// poll: lines, stations and live arrivals.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"tubeboard.app/internal/cache"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/metrics"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/transit"
)

// TransitSource is the TfL API as the board uses it.
type TransitSource interface {
	Modes() []string
	LinesForModes(ctx context.Context, modes []string) ([]tfl.Line, error)
	StationsForLine(ctx context.Context, lineID string) ([]tfl.Station, error)
	Station(ctx context.Context, stationID string) (tfl.Station, error)
	Arrivals(ctx context.Context, stationID string) ([]tfl.Arrival, error)
}

// RailSource supplies Realtime Trains rows for national rail stations.
type RailSource interface {
	CodeFor(stationID string) (string, bool)
	Board(ctx context.Context, stationID string) ([]rtt.Arrival, error)
}

// Preferences is the per-profile favourites and filter storage.
type Preferences interface {
	Favorites(ctx context.Context, profile string) ([]string, error)
	ToggleFavorite(ctx context.Context, profile, stationID string) (bool, error)
	ActiveFilters(ctx context.Context, profile string) ([]string, error)
	SaveActiveFilters(ctx context.Context, profile string, filters []string) error
}

// ErrNoRail is returned by RailBoard when no rail provider is configured.
var ErrNoRail = errors.New("rail arrivals are not configured")

// Intervals drive the session tickers.
type Intervals struct {
	Countdown       time.Duration
	DetailRefresh   time.Duration
	ArrivalsRefresh time.Duration
	RailRefresh     time.Duration
}

// DefaultIntervals are the polling periods of the board.
var DefaultIntervals = Intervals{
	Countdown:       time.Second,
	DetailRefresh:   15 * time.Second,
	ArrivalsRefresh: 30 * time.Second,
	RailRefresh:     60 * time.Second,
}

type Options struct {
	TfL   TransitSource
	Rail  RailSource
	Prefs Preferences

	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Location *time.Location

	Intervals Intervals
	// SessionTTL is how long an untouched session is kept.
	SessionTTL time.Duration
	// ArrivalsTTL is the window in which arrival fetches for one station
	// are shared between sessions.
	ArrivalsTTL time.Duration
	// FetchTimeout bounds a shared arrivals fetch, which outlives the
	// caller that started it.
	FetchTimeout time.Duration
}

type Manager struct {
	opts     Options
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	loc      *time.Location
	index    *StationIndex
	arrivals cache.Cache
	group    singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	iv := &opts.Intervals
	if iv.Countdown <= 0 {
		iv.Countdown = DefaultIntervals.Countdown
	}
	if iv.DetailRefresh <= 0 {
		iv.DetailRefresh = DefaultIntervals.DetailRefresh
	}
	if iv.ArrivalsRefresh <= 0 {
		iv.ArrivalsRefresh = DefaultIntervals.ArrivalsRefresh
	}
	if iv.RailRefresh <= 0 {
		iv.RailRefresh = DefaultIntervals.RailRefresh
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.ArrivalsTTL <= 0 {
		opts.ArrivalsTTL = 5 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 20 * time.Second
	}

	return &Manager{
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger.With(slog.String("component", "board_manager")),
		metrics:  opts.Metrics,
		loc:      opts.Location,
		index:    NewStationIndex(),
		arrivals: cache.NewMemory(512, opts.Clock),
		sessions: map[string]*Session{},
		stop:     make(chan struct{}),
	}
}

// Start runs the idle-session sweeper until Shutdown.
func (m *Manager) Start() {
	interval := m.opts.SessionTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := m.clock.NewTicker(interval)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if n := m.ExpireIdle(); n > 0 {
					logging.LogOperation(m.logger, "idle_sessions_expired", slog.Int("count", n))
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Shutdown stops the sweeper and closes every session.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.metrics.SetActiveSessions(0)
	_ = m.arrivals.Close()
}

// Session returns the session for id, creating it on first use. Every call
// counts as activity.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if s, ok := m.sessions[id]; ok && !s.isClosed() {
		s.touch(now)
		return s
	}
	s := newSession(id, m, now)
	m.sessions[id] = s
	m.metrics.SetActiveSessions(len(m.sessions))
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ExpireIdle closes sessions untouched for longer than SessionTTL and
// returns how many were removed.
func (m *Manager) ExpireIdle() int {
	now := m.clock.Now()

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if now.Sub(s.lastActive()) > m.opts.SessionTTL {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Location is the zone used for HH:MM times.
func (m *Manager) Location() *time.Location {
	return m.loc
}

func (m *Manager) Clock() clock.Clock {
	return m.clock
}

func (m *Manager) Preferences() Preferences {
	return m.opts.Prefs
}

// Lines returns the lines of the source's modes that match filters. The
// favourites filter is not a mode and is ignored here.
func (m *Manager) Lines(ctx context.Context, filters []string) ([]tfl.Line, error) {
	lines, err := m.opts.TfL.LinesForModes(ctx, m.opts.TfL.Modes())
	if err != nil {
		return nil, err
	}
	return transit.FilterLines(lines, ModeFilters(filters)), nil
}

// LinesForModes returns the lines of explicitly requested TfL modes.
func (m *Manager) LinesForModes(ctx context.Context, modes []string) ([]tfl.Line, error) {
	return m.opts.TfL.LinesForModes(ctx, modes)
}

// Line finds a line by id among the source's modes. ok is false when the
// id is not listed.
func (m *Manager) Line(ctx context.Context, lineID string) (tfl.Line, bool, error) {
	lines, err := m.opts.TfL.LinesForModes(ctx, m.opts.TfL.Modes())
	if err != nil {
		return tfl.Line{}, false, err
	}
	for _, l := range lines {
		if l.ID == lineID {
			return l, true, nil
		}
	}
	return tfl.Line{}, false, nil
}

func (m *Manager) StationsForLine(ctx context.Context, lineID string) ([]tfl.Station, error) {
	stations, err := m.opts.TfL.StationsForLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	m.indexStations(stations...)
	return stations, nil
}

func (m *Manager) Station(ctx context.Context, stationID string) (tfl.Station, error) {
	st, err := m.opts.TfL.Station(ctx, stationID)
	if err != nil {
		return tfl.Station{}, err
	}
	m.indexStations(st)
	return st, nil
}

// FavoriteStations resolves station ids in order. Ids that fail to resolve
// are logged and skipped.
func (m *Manager) FavoriteStations(ctx context.Context, ids []string) []tfl.Station {
	out := make([]tfl.Station, 0, len(ids))
	for _, id := range ids {
		st, err := m.Station(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			logging.LogError(m.logger, "Skipping unresolvable favourite station", err,
				slog.String("station_id", id))
			continue
		}
		out = append(out, st)
	}
	return out
}

// Arrivals returns live arrivals for stationID. Concurrent callers share one
// upstream request and its result is reused for ArrivalsTTL.
func (m *Manager) Arrivals(ctx context.Context, stationID string) ([]tfl.Arrival, error) {
	key := "arrivals:" + stationID

	var cached []tfl.Arrival
	if ok := m.cachedArrivals(ctx, key, &cached); ok {
		m.metrics.ObserveArrivalFetch(true)
		return cached, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.FetchTimeout)
		defer cancel()

		arrivals, err := m.opts.TfL.Arrivals(fetchCtx, stationID)
		if err != nil {
			return nil, err
		}
		if arrivals == nil {
			arrivals = []tfl.Arrival{}
		}
		if raw, err := marshalArrivals(arrivals); err == nil {
			if err := m.arrivals.Set(fetchCtx, key, raw, m.opts.ArrivalsTTL); err != nil {
				logging.LogError(m.logger, "Failed to cache arrivals", err)
			}
		}
		return arrivals, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		m.metrics.ObserveArrivalFetch(res.Shared)
		return slices.Clone(res.Val.([]tfl.Arrival)), nil
	}
}

func (m *Manager) cachedArrivals(ctx context.Context, key string, out *[]tfl.Arrival) bool {
	raw, ok, err := m.arrivals.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	if err := unmarshalArrivals(raw, out); err != nil {
		return false
	}
	return true
}

// HasRail reports whether stationID can be shown on the rail board.
func (m *Manager) HasRail(stationID string) bool {
	if m.opts.Rail == nil {
		return false
	}
	_, ok := m.opts.Rail.CodeFor(stationID)
	return ok
}

// RailBoard returns Realtime Trains arrivals for stationID.
func (m *Manager) RailBoard(ctx context.Context, stationID string) ([]rtt.Arrival, error) {
	if m.opts.Rail == nil {
		return nil, ErrNoRail
	}
	return m.opts.Rail.Board(ctx, stationID)
}

// Nearby returns indexed stations within radius meters, closest first.
func (m *Manager) Nearby(lat, lon, radius float64, limit int) []NearbyStation {
	return m.index.Near(lat, lon, radius, limit)
}

func (m *Manager) indexStations(stations ...tfl.Station) {
	if m.index.Add(stations...) > 0 {
		m.metrics.SetStationsIndexed(m.index.Len())
	}
}

// Preload fetches the stations of every line so that nearby lookups work
// before anyone browses. Failing lines are logged and reported together.
func (m *Manager) Preload(ctx context.Context) error {
	lines, err := m.opts.TfL.LinesForModes(ctx, m.opts.TfL.Modes())
	if err != nil {
		return fmt.Errorf("preload lines: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, line := range lines {
		g.Go(func() error {
			if _, err := m.StationsForLine(gctx, line.ID); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logging.LogError(m.logger, "Failed to preload line stations", err, slog.String("line_id", line.ID))
				mu.Lock()
				errs = append(errs, fmt.Errorf("line %s: %w", line.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logging.LogOperation(m.logger, "stations_preloaded",
		slog.Int("lines", len(lines)),
		slog.Int("stations", m.index.Len()),
		slog.Int("failures", len(errs)))
	return errors.Join(errs...)
}

// ModeFilters drops the favourites toggle from a filter list.
func ModeFilters(filters []string) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		if f != transit.FilterFavorites {
			out = append(out, f)
		}
	}
	return out
}

func marshalArrivals(arrivals []tfl.Arrival) ([]byte, error) {
	return json.Marshal(arrivals)
}

func unmarshalArrivals(raw []byte, out *[]tfl.Arrival) error {
	return json.Unmarshal(raw, out)
}
