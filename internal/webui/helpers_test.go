package webui

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"tubeboard.app/internal/app"
	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/store"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/tfl/tfltest"
)

var testStart = time.Date(2025, 3, 14, 8, 30, 0, 0, time.UTC)

type testEnv struct {
	ui     *WebUI
	tfl    *tfltest.Server
	clock  *clock.MockClock
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T, mutate ...func(*appconf.Config)) *testEnv {
	t.Helper()

	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.DatabasePath = ":memory:"
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{tfl: tfltest.NewServer(), clock: clock.NewMockClock(testStart)}
	t.Cleanup(env.tfl.Close)

	logger, closer := logging.NewLogger(logging.Options{Level: "error"})
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	st, err := store.Open(context.Background(), store.Config{DBPath: cfg.DatabasePath, Env: cfg.Env}, env.clock, logger)
	require.NoError(t, err)

	tflClient := tfl.NewClient(tfl.Options{BaseURL: env.tfl.URL, Logger: logger, Clock: env.clock})
	application := &app.Application{
		Config:    cfg,
		Logger:    logger,
		LogCloser: closer,
		Clock:     env.clock,
		Location:  london,
		TfL:       tflClient,
		Store:     st,
		Board: board.NewManager(board.Options{
			TfL:      tflClient,
			Prefs:    st,
			Clock:    env.clock,
			Logger:   logger,
			Location: london,
		}),
	}
	t.Cleanup(application.Close)

	env.ui, err = NewWebUI(application)
	require.NoError(t, err)

	mux := http.NewServeMux()
	env.ui.SetWebUIRoutes(mux)
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return env
}

// get fetches path with the env's cookie jar and returns the body.
func (env *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := env.client.Get(env.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (env *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := env.client.Post(env.server.URL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func victoriaArrival(id string, seconds int) tfl.Arrival {
	return tfl.Arrival{
		ID:              id,
		VehicleID:       "201",
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

func centralArrival(id string, seconds int) tfl.Arrival {
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
