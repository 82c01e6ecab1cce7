package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/transit"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrNoStation       = errors.New("no station selected")
	ErrArrivalNotFound = errors.New("arrival not found")
	ErrNoPreferences   = errors.New("preferences are not available")
)

// maxNotices bounds the banners kept on a session.
const maxNotices = 5

// job is a periodic task owned by the current view.
type job struct {
	every     time.Duration
	immediate bool
	run       func(ctx context.Context, gen uint64)
}

// Session is one profile's board: the current view, the tracked arrival and
// the tickers that keep them fresh. Every view runs under its own context;
// navigating cancels it and stops its tickers. Poll results carry the
// generation of the view that started them and are dropped once the view
// has changed.
type Session struct {
	id     string
	m      *Manager
	clock  clock.Clock
	logger *slog.Logger

	root       context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	lastSeen   time.Time
	nav        uint64
	gen        uint64
	cancelView context.CancelFunc
	tickers    []clock.Ticker

	view        View
	filters     []string
	favoriteIDs []string
	favorites   []tfl.Station
	lines       []tfl.Line
	line        tfl.Line
	stations    []tfl.Station
	station     tfl.Station
	arrivals    []tfl.Arrival
	arrivalsAt  time.Time
	rail        []rtt.Arrival
	lineFilter  transit.LineFilter
	tracked     tfl.Arrival
	deadline    time.Time
	updatedAt   time.Time
	notices     []Notice
}

func newSession(id string, m *Manager, now time.Time) *Session {
	root, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		m:          m,
		clock:      m.clock,
		logger:     m.logger.With(slog.String("component", "board_session"), slog.String("session_id", id)),
		root:       root,
		cancelRoot: cancel,
		lastSeen:   now,
		view:       ViewLines,
		lineFilter: transit.LineFilter{},
	}
}

func (s *Session) ID() string {
	return s.id
}

// ShowLines loads the profile's filters and favourites and lists the
// matching lines.
func (s *Session) ShowLines(ctx context.Context) (Snapshot, error) {
	nav, err := s.begin()
	if err != nil {
		return Snapshot{}, err
	}

	filters, favoriteIDs := s.loadPreferences(ctx)
	lines, err := s.m.Lines(ctx, filters)
	if err != nil {
		return s.fail(nav, err)
	}
	showFavorites := slices.Contains(filters, transit.FilterFavorites)
	var favorites []tfl.Station
	if showFavorites {
		favorites = s.m.FavoriteStations(ctx, favoriteIDs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestLocked(nav) {
		s.filters = filters
		s.favoriteIDs = favoriteIDs
		s.favorites = favorites
		s.lines = lines
		s.line = tfl.Line{}
		s.station = tfl.Station{}
		s.commitLocked(ViewLines)
	}
	return s.snapshotLocked(), nil
}

// ShowLine lists the stations of lineID in TfL's order.
func (s *Session) ShowLine(ctx context.Context, lineID string) (Snapshot, error) {
	nav, err := s.begin()
	if err != nil {
		return Snapshot{}, err
	}

	stations, err := s.m.StationsForLine(ctx, lineID)
	if err != nil {
		return s.fail(nav, err)
	}
	line, found, err := s.m.Line(ctx, lineID)
	if err != nil || !found {
		line = tfl.Line{ID: lineID}
	}
	_, favoriteIDs := s.loadPreferences(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestLocked(nav) {
		s.line = line
		s.stations = stations
		s.favoriteIDs = favoriteIDs
		s.station = tfl.Station{}
		s.commitLocked(ViewStations)
	}
	return s.snapshotLocked(), nil
}

// ShowStation shows the platform board of stationID and refreshes it every
// ArrivalsRefresh. The per-station line filter survives only while the
// station stays the same.
func (s *Session) ShowStation(ctx context.Context, stationID string) (Snapshot, error) {
	nav, err := s.begin()
	if err != nil {
		return Snapshot{}, err
	}

	station, err := s.m.Station(ctx, stationID)
	if err != nil {
		return s.fail(nav, err)
	}
	arrivals, err := s.m.Arrivals(ctx, stationID)
	if err != nil {
		return s.fail(nav, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestLocked(nav) {
		if s.station.ID != station.ID {
			s.lineFilter = transit.LineFilter{}
			s.rail = nil
		}
		s.station = station
		s.setArrivalsLocked(arrivals)
		s.enterArrivalsLocked()
	}
	return s.snapshotLocked(), nil
}

// ShowArrival starts a countdown for arrivalID at the current station.
func (s *Session) ShowArrival(ctx context.Context, arrivalID string) (Snapshot, error) {
	nav, err := s.begin()
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	station := s.station
	arrivals, fetchedAt := s.arrivals, s.arrivalsAt
	if station.ID == "" {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrNoStation
	}
	s.mu.Unlock()

	arrival, ok := transit.FindArrival(arrivals, arrivalID)
	if !ok {
		fresh, err := s.m.Arrivals(ctx, station.ID)
		if err != nil {
			return s.fail(nav, err)
		}
		arrivals, fetchedAt = fresh, s.clock.Now()
		if arrival, ok = transit.FindArrival(arrivals, arrivalID); !ok {
			return s.fail(nav, fmt.Errorf("%w: %s", ErrArrivalNotFound, arrivalID))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestLocked(nav) && s.station.ID == station.ID {
		s.arrivals, s.arrivalsAt = arrivals, fetchedAt
		s.trackLocked(arrival)
	}
	return s.snapshotLocked(), nil
}

// Back moves one level up: detail to station, station to line (or the line
// list when the station was opened directly), anything else to the lines.
func (s *Session) Back(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	view, stationID, lineID := s.view, s.station.ID, s.line.ID
	s.mu.Unlock()

	switch {
	case view == ViewDetail && stationID != "":
		return s.ShowStation(ctx, stationID)
	case view == ViewArrivals && lineID != "":
		return s.ShowLine(ctx, lineID)
	default:
		return s.ShowLines(ctx)
	}
}

// ToggleLineFilter switches a line on or off on the station board.
func (s *Session) ToggleLineFilter(lineName string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if s.station.ID == "" {
		return s.snapshotLocked(), ErrNoStation
	}
	s.lineFilter.Toggle(lineName)
	return s.snapshotLocked(), nil
}

// ToggleFavorite flips stationID in the profile's favourites and returns
// whether it is now a favourite.
func (s *Session) ToggleFavorite(ctx context.Context, stationID string) (bool, error) {
	prefs := s.m.Preferences()
	if prefs == nil {
		return false, ErrNoPreferences
	}
	on, err := prefs.ToggleFavorite(ctx, s.id, stationID)
	if err != nil {
		return false, err
	}

	var added tfl.Station
	if on {
		if st, err := s.m.Station(ctx, stationID); err == nil {
			added = st
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.favoriteIDs = slices.DeleteFunc(s.favoriteIDs, func(id string) bool { return id == stationID })
	s.favorites = slices.DeleteFunc(s.favorites, func(st tfl.Station) bool { return st.ID == stationID })
	if on {
		s.favoriteIDs = append(s.favoriteIDs, stationID)
		if added.ID != "" {
			s.favorites = append(s.favorites, added)
		}
	}
	return on, nil
}

// Favorites returns the profile's favourite station ids.
func (s *Session) Favorites(ctx context.Context) ([]string, error) {
	prefs := s.m.Preferences()
	if prefs == nil {
		return nil, ErrNoPreferences
	}
	return prefs.Favorites(ctx, s.id)
}

// Filters returns the profile's active mode filters.
func (s *Session) Filters(ctx context.Context) ([]string, error) {
	prefs := s.m.Preferences()
	if prefs == nil {
		return slices.Clone(transit.DefaultFilters), nil
	}
	return prefs.ActiveFilters(ctx, s.id)
}

// SetFilters saves the mode filters and reloads the line list when it is
// on screen.
func (s *Session) SetFilters(ctx context.Context, filters []string) (Snapshot, error) {
	prefs := s.m.Preferences()
	if prefs == nil {
		return Snapshot{}, ErrNoPreferences
	}
	if err := prefs.SaveActiveFilters(ctx, s.id, filters); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.filters = slices.Clone(filters)
	onLines := s.view == ViewLines
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if onLines {
		return s.ShowLines(ctx)
	}
	return snap, nil
}

// DismissNotice removes a banner before it expires.
func (s *Session) DismissNotice(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.notices)
	s.notices = slices.DeleteFunc(s.notices, func(n Notice) bool { return n.ID == id })
	return len(s.notices) != before
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops the session's tickers and waits for its pollers to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopViewLocked()
	s.cancelRoot()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// begin registers a navigation request. Only the most recent request may
// commit its result.
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	s.nav++
	return s.nav, nil
}

func (s *Session) latestLocked(nav uint64) bool {
	return !s.closed && nav == s.nav
}

// fail raises a notice for err when nav is still the latest request and
// leaves the current view as it was.
func (s *Session) fail(nav uint64, err error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestLocked(nav) {
		s.noticeLocked(err)
	}
	return s.snapshotLocked(), err
}

func (s *Session) loadPreferences(ctx context.Context) (filters, favoriteIDs []string) {
	prefs := s.m.Preferences()
	if prefs == nil {
		return slices.Clone(transit.DefaultFilters), nil
	}
	filters, err := prefs.ActiveFilters(ctx, s.id)
	if err != nil {
		logging.LogError(s.logger, "Failed to load active filters", err)
		filters = slices.Clone(transit.DefaultFilters)
	}
	favoriteIDs, err = prefs.Favorites(ctx, s.id)
	if err != nil {
		logging.LogError(s.logger, "Failed to load favourites", err)
	}
	return filters, favoriteIDs
}

// commitLocked replaces the current view. The previous view's context is
// cancelled and its tickers stopped before the new ones start.
func (s *Session) commitLocked(view View, jobs ...job) uint64 {
	s.stopViewLocked()
	s.gen++
	s.view = view
	s.updatedAt = s.clock.Now()
	gen := s.gen

	if len(jobs) == 0 || s.closed {
		return gen
	}
	if len(jobs) > 2 {
		panic("board: a view runs at most two jobs")
	}

	ctx, cancel := context.WithCancel(s.root)
	s.cancelView = cancel
	s.tickers = make([]clock.Ticker, len(jobs))
	for i, j := range jobs {
		s.tickers[i] = s.clock.NewTicker(j.every)
	}

	s.wg.Add(1)
	go s.loop(ctx, gen, s.tickers, jobs)
	return gen
}

func (s *Session) stopViewLocked() {
	if s.cancelView != nil {
		s.cancelView()
		s.cancelView = nil
	}
	for _, t := range s.tickers {
		t.Stop()
	}
	s.tickers = nil
}

func (s *Session) loop(ctx context.Context, gen uint64, tickers []clock.Ticker, jobs []job) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in session poller", "error", r, "generation", gen)
		}
	}()

	var ch [2]<-chan time.Time
	for i, t := range tickers {
		ch[i] = t.C()
	}
	for _, j := range jobs {
		if j.immediate && ctx.Err() == nil {
			j.run(ctx, gen)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch[0]:
			jobs[0].run(ctx, gen)
		case <-ch[1]:
			jobs[1].run(ctx, gen)
		}
	}
}

func (s *Session) enterArrivalsLocked() {
	s.tracked = tfl.Arrival{}
	s.deadline = time.Time{}
	jobs := []job{{every: s.m.opts.Intervals.ArrivalsRefresh, run: s.pollArrivals}}
	if s.m.HasRail(s.station.ID) {
		jobs = append(jobs, job{every: s.m.opts.Intervals.RailRefresh, immediate: true, run: s.pollRail})
	}
	s.commitLocked(ViewArrivals, jobs...)
}

// trackLocked anchors a countdown deadline for a and shows the detail view.
// TimeToStation is relative to when the arrivals list was received.
func (s *Session) trackLocked(a tfl.Arrival) {
	anchor := s.arrivalsAt
	if anchor.IsZero() {
		anchor = s.clock.Now()
	}
	s.tracked = a
	s.deadline = anchor.Add(time.Duration(a.TimeToStation) * time.Second)
	s.commitLocked(ViewDetail,
		job{every: s.m.opts.Intervals.Countdown, run: s.tickCountdown},
		job{every: s.m.opts.Intervals.DetailRefresh, run: s.refreshDetail},
	)
}

// current returns the station and tracked arrival when gen is still live.
func (s *Session) current(gen uint64) (stationID string, tracked tfl.Arrival, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return "", tfl.Arrival{}, false
	}
	return s.station.ID, s.tracked, true
}

func (s *Session) pollArrivals(ctx context.Context, gen uint64) {
	stationID, _, ok := s.current(gen)
	if !ok {
		return
	}
	arrivals, err := s.m.Arrivals(ctx, stationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || ctx.Err() != nil {
		return
	}
	if err != nil {
		s.noticeLocked(err)
		return
	}
	// An empty refresh keeps the last board on screen.
	if len(arrivals) == 0 {
		return
	}
	s.setArrivalsLocked(arrivals)
	s.updatedAt = s.clock.Now()
}

func (s *Session) setArrivalsLocked(arrivals []tfl.Arrival) {
	s.arrivals = arrivals
	s.arrivalsAt = s.clock.Now()
}

func (s *Session) pollRail(ctx context.Context, gen uint64) {
	stationID, _, ok := s.current(gen)
	if !ok {
		return
	}
	rows, err := s.m.RailBoard(ctx, stationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || ctx.Err() != nil {
		return
	}
	if err != nil {
		logging.LogError(s.logger, "Failed to refresh rail arrivals", err, slog.String("station_id", stationID))
		return
	}
	s.rail = rows
}

func (s *Session) tickCountdown(ctx context.Context, gen uint64) {
	s.mu.Lock()
	due := !s.closed && gen == s.gen && !s.clock.Now().Before(s.deadline)
	s.mu.Unlock()
	if due {
		s.arrivalDue(ctx, gen)
	}
}

// arrivalDue runs when the countdown reaches zero: the next train of the
// same service is tracked, or the board falls back to the station.
func (s *Session) arrivalDue(ctx context.Context, gen uint64) {
	stationID, tracked, ok := s.current(gen)
	if !ok {
		return
	}
	arrivals, err := s.m.Arrivals(ctx, stationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || ctx.Err() != nil {
		return
	}
	if err != nil {
		s.noticeLocked(err)
		s.enterArrivalsLocked()
		return
	}
	if len(arrivals) > 0 {
		s.setArrivalsLocked(arrivals)
	}
	if next, ok := transit.FindNextArrival(arrivals, tracked); ok {
		logging.LogOperation(s.logger, "tracking_next_arrival",
			slog.String("previous", tracked.ID), slog.String("next", next.ID))
		s.trackLocked(next)
		return
	}
	s.addNoticeLocked(NoticeInfo, msgDeparted)
	s.enterArrivalsLocked()
}

// refreshDetail re-associates the tracked arrival with a fresh poll.
func (s *Session) refreshDetail(ctx context.Context, gen uint64) {
	stationID, _, ok := s.current(gen)
	if !ok {
		return
	}
	arrivals, err := s.m.Arrivals(ctx, stationID)

	s.mu.Lock()
	if s.closed || gen != s.gen || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	lastKnown := remainingSeconds(s.deadline, now)
	if lastKnown <= 0 {
		s.mu.Unlock()
		s.arrivalDue(ctx, gen)
		return
	}
	defer s.mu.Unlock()

	if err != nil {
		// Keep counting down from the last good deadline.
		s.noticeLocked(err)
		return
	}

	r := transit.Reconcile(arrivals, s.tracked, lastKnown)
	method := "heuristic"
	if r.ByVehicle {
		method = "vehicle"
	}
	if r.Outcome == transit.Lost {
		method = "none"
	}
	s.m.metrics.ObserveReconciliation(r.Outcome.String(), method)

	switch r.Outcome {
	case transit.Matched:
		s.arrivals, s.arrivalsAt = arrivals, now
		s.tracked = r.Arrival
		s.deadline = now.Add(time.Duration(r.Arrival.TimeToStation) * time.Second)
		s.updatedAt = now
	case transit.Unreliable:
		logging.LogOperation(s.logger, "countdown_unreliable",
			slog.String("arrival_id", s.tracked.ID), slog.Int("drift_seconds", r.Drift))
		s.setArrivalsLocked(arrivals)
		s.addNoticeLocked(NoticeInfo, msgUnreliable)
		s.enterArrivalsLocked()
	default:
		logging.LogOperation(s.logger, "tracked_arrival_lost", slog.String("arrival_id", s.tracked.ID))
		if len(arrivals) > 0 {
			s.setArrivalsLocked(arrivals)
		}
		s.addNoticeLocked(NoticeInfo, msgLost)
		s.enterArrivalsLocked()
	}
}

func (s *Session) noticeLocked(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	kind, msg := ClassifyError(err)
	logging.LogError(s.logger, "Board request failed", err, slog.String("notice", string(kind)))
	s.addNoticeLocked(kind, msg)
}

func (s *Session) addNoticeLocked(kind NoticeKind, msg string) {
	now := s.clock.Now()
	s.notices = pruneNotices(s.notices, now)
	s.notices = append(s.notices, newNotice(kind, msg, now))
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.m.metrics.ObserveNotice(string(kind))
}

func (s *Session) snapshotLocked() Snapshot {
	now := s.clock.Now()
	s.notices = pruneNotices(s.notices, now)

	snap := Snapshot{
		SessionID:  s.id,
		View:       s.view,
		Generation: s.gen,
		Notices:    append([]Notice{}, s.notices...),
		UpdatedAt:  s.updatedAt,
	}

	favorite := make(map[string]bool, len(s.favoriteIDs))
	for _, id := range s.favoriteIDs {
		favorite[id] = true
	}
	if s.line.ID != "" {
		tile := NewLineTile(s.line)
		snap.Line = &tile
	}

	switch s.view {
	case ViewLines:
		snap.Filters = slices.Clone(s.filters)
		snap.ShowFavorites = slices.Contains(s.filters, transit.FilterFavorites)
		for _, st := range s.favorites {
			snap.Favorites = append(snap.Favorites, NewStationTile(st, true, s.m.HasRail(st.ID)))
		}
		for _, l := range s.lines {
			snap.Lines = append(snap.Lines, NewLineTile(l))
		}
	case ViewStations:
		for _, st := range s.stations {
			snap.Stations = append(snap.Stations, NewStationTile(st, favorite[st.ID], s.m.HasRail(st.ID)))
		}
	case ViewArrivals, ViewDetail:
		if s.station.ID != "" {
			tile := NewStationTile(s.station, favorite[s.station.ID], s.m.HasRail(s.station.ID))
			snap.Station = &tile
		}
		if s.view == ViewArrivals {
			board := transit.BuildBoard(s.arrivals, s.lineFilter, now, s.m.loc)
			snap.Board = &board
			snap.Rail = slices.Clone(s.rail)
		} else {
			snap.Detail = detailView(s.tracked, s.deadline, now, s.m.loc)
		}
	}
	return snap
}
