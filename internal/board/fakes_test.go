package board

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/tfl/tfltest"
	"tubeboard.app/internal/transit"
	"tubeboard.app/internal/upstream"
)

var testStart = time.Date(2025, 3, 14, 8, 30, 0, 0, time.UTC)

// fakeTransit serves the tfltest fixtures from memory. Arrivals can be
// held at a gate to simulate a slow upstream.
type fakeTransit struct {
	mu           sync.Mutex
	lines        []tfl.Line
	stations     map[string]tfl.Station
	lineStations map[string][]string
	arrivals     map[string][]tfl.Arrival
	arrivalErr   error
	arrivalCalls map[string]int

	gate    chan struct{}
	entered chan string
}

func newFakeTransit() *fakeTransit {
	return &fakeTransit{
		lines:    tfltest.Lines(),
		stations: tfltest.Stations(),
		lineStations: map[string][]string{
			"victoria": {tfltest.WarrenStreet, tfltest.OxfordCircus},
			"central":  {tfltest.OxfordCircus},
			"mildmay":  {tfltest.Stratford},
		},
		arrivals:     map[string][]tfl.Arrival{},
		arrivalCalls: map[string]int{},
	}
}

func (f *fakeTransit) Modes() []string {
	return []string{"tube", "overground", "elizabeth-line", "dlr", "national-rail"}
}

func (f *fakeTransit) LinesForModes(_ context.Context, modes []string) ([]tfl.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tfl.Line
	for _, l := range f.lines {
		if slices.Contains(modes, l.ModeName) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeTransit) StationsForLine(_ context.Context, lineID string) ([]tfl.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids, ok := f.lineStations[lineID]
	if !ok {
		return nil, notFound("/Line/" + lineID + "/StopPoints")
	}
	out := make([]tfl.Station, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.stations[id])
	}
	return out, nil
}

func (f *fakeTransit) Station(_ context.Context, stationID string) (tfl.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stations[stationID]
	if !ok {
		return tfl.Station{}, notFound("/StopPoint/" + stationID)
	}
	return st, nil
}

func (f *fakeTransit) Arrivals(ctx context.Context, stationID string) ([]tfl.Arrival, error) {
	f.mu.Lock()
	f.arrivalCalls[stationID]++
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- stationID
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.arrivalErr != nil {
		return nil, f.arrivalErr
	}
	if _, ok := f.stations[stationID]; !ok {
		return nil, notFound("/StopPoint/" + stationID + "/Arrivals")
	}
	return slices.Clone(f.arrivals[stationID]), nil
}

func (f *fakeTransit) setArrivals(stationID string, arrivals ...tfl.Arrival) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrivals[stationID] = arrivals
}

func (f *fakeTransit) failArrivals(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrivalErr = err
}

func (f *fakeTransit) calls(stationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.arrivalCalls[stationID]
}

// hold makes subsequent Arrivals calls wait until the returned release is
// called.
func (f *fakeTransit) hold() (entered <-chan string, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	ch := make(chan string, 8)
	f.gate, f.entered = gate, ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate, f.entered = nil, nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

func notFound(path string) error {
	return &upstream.APIError{Provider: "tfl", StatusCode: http.StatusNotFound, URL: path}
}

type fakeRail struct {
	mu    sync.Mutex
	codes map[string]string
	rows  []rtt.Arrival
	err   error
	calls int
}

func (r *fakeRail) CodeFor(stationID string) (string, bool) {
	code, ok := r.codes[stationID]
	return code, ok
}

func (r *fakeRail) Board(_ context.Context, stationID string) ([]rtt.Arrival, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if _, ok := r.codes[stationID]; !ok {
		return nil, rtt.ErrNoCode
	}
	if r.err != nil {
		return nil, r.err
	}
	return slices.Clone(r.rows), nil
}

func (r *fakeRail) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakePrefs struct {
	mu        sync.Mutex
	favorites map[string][]string
	filters   map[string][]string
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{favorites: map[string][]string{}, filters: map[string][]string{}}
}

func (p *fakePrefs) Favorites(_ context.Context, profile string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.favorites[profile]), nil
}

func (p *fakePrefs) ToggleFavorite(_ context.Context, profile, stationID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.favorites[profile]
	if i := slices.Index(list, stationID); i >= 0 {
		p.favorites[profile] = slices.Delete(list, i, i+1)
		return false, nil
	}
	p.favorites[profile] = append(list, stationID)
	return true, nil
}

func (p *fakePrefs) ActiveFilters(_ context.Context, profile string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list, ok := p.filters[profile]
	if !ok {
		return slices.Clone(transit.DefaultFilters), nil
	}
	return slices.Clone(list), nil
}

func (p *fakePrefs) SaveActiveFilters(_ context.Context, profile string, filters []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters[profile] = slices.Clone(filters)
	return nil
}

type testBoard struct {
	manager *Manager
	clock   *clock.MockClock
	tfl     *fakeTransit
	rail    *fakeRail
	prefs   *fakePrefs
}

func newTestBoard(t *testing.T) *testBoard {
	t.Helper()
	tb := &testBoard{
		clock: clock.NewMockClock(testStart),
		tfl:   newFakeTransit(),
		rail:  &fakeRail{codes: map[string]string{tfltest.Stratford: "SRA"}},
		prefs: newFakePrefs(),
	}
	logger, closer := logging.NewLogger(logging.Options{Level: "error"})
	t.Cleanup(func() { _ = closer.Close() })

	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	tb.manager = NewManager(Options{
		TfL:      tb.tfl,
		Rail:     tb.rail,
		Prefs:    tb.prefs,
		Clock:    tb.clock,
		Logger:   logger,
		Location: london,
	})
	t.Cleanup(tb.manager.Shutdown)
	return tb
}

func victoria(id, vehicle string, seconds int) tfl.Arrival {
	return tfl.Arrival{
		ID:              id,
		VehicleID:       vehicle,
		NaptanID:        tfltest.OxfordCircus,
		LineID:          "victoria",
		LineName:        "Victoria",
		PlatformName:    "Northbound - Platform 5",
		DestinationName: "Walthamstow Central Underground Station",
		Towards:         "Walthamstow Central",
		TimeToStation:   seconds,
		ModeName:        "tube",
	}
}

func central(id string, seconds int) tfl.Arrival {
	return tfl.Arrival{
		ID:              id,
		VehicleID:       "000",
		NaptanID:        tfltest.OxfordCircus,
		LineID:          "central",
		LineName:        "Central",
		PlatformName:    "Eastbound - Platform 2",
		DestinationName: "Epping Underground Station",
		Towards:         "Epping",
		TimeToStation:   seconds,
		ModeName:        "tube",
	}
}
