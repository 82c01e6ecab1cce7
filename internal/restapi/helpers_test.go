package restapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"tubeboard.app/internal/app"
	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/metrics"
	"tubeboard.app/internal/models"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/store"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/tfl/tfltest"
)

var testStart = time.Date(2025, 3, 14, 8, 30, 0, 0, time.UTC)

const stratfordRail = `{"location":{"name":"Stratford","crs":"SRA"},"services":[
  {"serviceUid":"W12345","atocName":"Elizabeth Line","locationDetail":{"realtimeArrival":"0834","platform":"10A",
   "destination":[{"description":"London Liverpool Street"}]}}]}`

type testEnv struct {
	api    *RestAPI
	tfl    *tfltest.Server
	rail   *httptest.Server
	clock  *clock.MockClock
	server *httptest.Server
}

func newTestEnv(t *testing.T, mutate ...func(*appconf.Config)) *testEnv {
	t.Helper()

	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.DatabasePath = ":memory:"
	cfg.RateLimit = 0
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		tfl:   tfltest.NewServer(),
		clock: clock.NewMockClock(testStart),
	}
	t.Cleanup(env.tfl.Close)
	env.rail = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/SRA/arrivals" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, stratfordRail)
	}))
	t.Cleanup(env.rail.Close)

	logger, closer := logging.NewLogger(logging.Options{Level: "error"})
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	st, err := store.Open(context.Background(), store.Config{DBPath: cfg.DatabasePath, Env: cfg.Env}, env.clock, logger)
	require.NoError(t, err)

	m := metrics.NewWithLogger(logger)
	tflClient := tfl.NewClient(tfl.Options{
		BaseURL:  env.tfl.URL,
		Logger:   logger,
		Observer: m,
		Clock:    env.clock,
	})
	railClient := rtt.NewClient(rtt.Options{
		BaseURL:  env.rail.URL,
		Username: "user",
		Password: "pass",
		Codes:    map[string]string{tfltest.Stratford: "SRA"},
		Logger:   logger,
		Observer: m,
		Clock:    env.clock,
	})

	application := &app.Application{
		Config:    cfg,
		Logger:    logger,
		LogCloser: closer,
		Clock:     env.clock,
		Metrics:   m,
		Location:  london,
		TfL:       tflClient,
		RTT:       railClient,
		Store:     st,
		Board: board.NewManager(board.Options{
			TfL:      tflClient,
			Rail:     railClient,
			Prefs:    st,
			Clock:    env.clock,
			Logger:   logger,
			Metrics:  m,
			Location: london,
		}),
	}
	t.Cleanup(application.Close)

	env.api = NewRestAPI(application)
	t.Cleanup(env.api.Shutdown)

	mux := http.NewServeMux()
	env.api.SetRoutes(mux)
	env.server = httptest.NewServer(env.api.Handler(mux))
	t.Cleanup(env.server.Close)
	return env
}

func createTestApi(t *testing.T) *RestAPI {
	return newTestEnv(t).api
}

// do sends a request as profile and decodes the envelope.
func (env *testEnv) do(t *testing.T, method, path, profile, body string) (*http.Response, models.ResponseModel) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	if profile != "" {
		req.Header.Set(app.ProfileHeader, profile)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var model models.ResponseModel
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &model), string(raw))
	}
	return resp, model
}

func (env *testEnv) get(t *testing.T, path string) (*http.Response, models.ResponseModel) {
	t.Helper()
	return env.do(t, http.MethodGet, path, "", "")
}

func serveAndRetrieveEndpoint(t *testing.T, path string) (*RestAPI, *http.Response, models.ResponseModel) {
	t.Helper()
	env := newTestEnv(t)
	resp, model := env.get(t, path)
	return env.api, resp, model
}

func newProfile() string {
	return uuid.NewString()
}

func entryOf(t *testing.T, model models.ResponseModel) map[string]any {
	t.Helper()
	data, ok := model.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %#v", model.Data)
	entry, ok := data["entry"].(map[string]any)
	require.True(t, ok, "entry is not an object: %#v", data["entry"])
	return entry
}

func listOf(t *testing.T, model models.ResponseModel) []any {
	t.Helper()
	data, ok := model.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %#v", model.Data)
	list, ok := data["list"].([]any)
	require.True(t, ok, "list is not an array: %#v", data["list"])
	return list
}

func victoriaArrival(id, vehicle string, seconds int) tfl.Arrival {
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
