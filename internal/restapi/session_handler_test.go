package restapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/tfl/tfltest"
)

func TestSessionNavigation(t *testing.T) {
	env := newTestEnv(t)
	env.tfl.SetArrivals(tfltest.OxfordCircus, []tfl.Arrival{
		victoriaArrival("v1", "201", 130),
		centralArrival("c1", 45),
	})
	profile := newProfile()

	post := func(path string) map[string]any {
		t.Helper()
		resp, model := env.do(t, http.MethodPost, path, profile, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, model.Text)
		entry := entryOf(t, model)
		assert.Equal(t, profile, entry["sessionId"])
		return entry
	}

	entry := post("/api/session/lines")
	assert.Equal(t, "lines", entry["view"])
	assert.Equal(t, true, entry["showFavorites"])
	assert.NotEmpty(t, entry["lines"])

	entry = post("/api/session/line/victoria")
	assert.Equal(t, "stations", entry["view"])
	assert.Equal(t, "victoria", entry["line"].(map[string]any)["id"])
	assert.Equal(t, []string{tfltest.WarrenStreet, tfltest.OxfordCircus},
		collectAllIdsFromObjects(t, entry["stations"].([]any), "id"))

	entry = post("/api/session/station/" + tfltest.OxfordCircus)
	assert.Equal(t, "arrivals", entry["view"])
	assert.Equal(t, tfltest.OxfordCircus, entry["station"].(map[string]any)["id"])
	assert.Equal(t, false, entry["stale"])
	assert.Len(t, entry["board"].(map[string]any)["platforms"], 2)

	entry = post("/api/session/arrival/v1")
	assert.Equal(t, "detail", entry["view"])
	detail := entry["detail"].(map[string]any)
	assert.Equal(t, "v1", detail["arrivalId"])
	assert.Equal(t, "201", detail["vehicleId"])
	assert.Equal(t, "Walthamstow Central", detail["destination"])
	assert.Equal(t, "08:32", detail["expected"])
	assert.Equal(t, float64(130), detail["countdown"].(map[string]any)["remaining"])

	_, model := env.do(t, http.MethodGet, "/api/session.json", profile, "")
	assert.Equal(t, "detail", entryOf(t, model)["view"])

	assert.Equal(t, "arrivals", post("/api/session/back")["view"])
	assert.Equal(t, "stations", post("/api/session/back")["view"])
	assert.Equal(t, "lines", post("/api/session/back")["view"])
}

func TestSessionArrivalErrors(t *testing.T) {
	env := newTestEnv(t)
	env.tfl.SetArrivals(tfltest.OxfordCircus, []tfl.Arrival{victoriaArrival("v1", "201", 130)})
	profile := newProfile()

	// No station open yet.
	resp, model := env.do(t, http.MethodPost, "/api/session/arrival/v1", profile, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "lines", entryOf(t, model)["view"])
	assert.Empty(t, entryOf(t, model)["notices"])

	env.do(t, http.MethodPost, "/api/session/station/"+tfltest.OxfordCircus, profile, "")
	resp, model = env.do(t, http.MethodPost, "/api/session/arrival/gone", profile, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	entry := entryOf(t, model)
	assert.Equal(t, "arrivals", entry["view"])
	assert.Len(t, entry["notices"], 1)
}

func TestSessionLineFilter(t *testing.T) {
	env := newTestEnv(t)
	env.tfl.SetArrivals(tfltest.OxfordCircus, []tfl.Arrival{
		victoriaArrival("v1", "201", 130),
		centralArrival("c1", 45),
	})
	profile := newProfile()

	resp, _ := env.do(t, http.MethodPost, "/api/session/line-filter/Central", profile, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.do(t, http.MethodPost, "/api/session/station/"+tfltest.OxfordCircus, profile, "")
	resp, model := env.do(t, http.MethodPost, "/api/session/line-filter/Central", profile, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b := entryOf(t, model)["board"].(map[string]any)
	platforms := b["platforms"].([]any)
	require.Len(t, platforms, 1)
	assert.Equal(t, "Northbound - Platform 5", platforms[0].(map[string]any)["name"])

	toggles := b["lines"].([]any)
	require.Len(t, toggles, 2)
	assert.Equal(t, true, toggles[0].(map[string]any)["active"])
	assert.Equal(t, false, toggles[1].(map[string]any)["active"])

	// Switching it back on restores the platform.
	_, model = env.do(t, http.MethodPost, "/api/session/line-filter/Central", profile, "")
	assert.Len(t, entryOf(t, model)["board"].(map[string]any)["platforms"], 2)
}

func TestSessionNoticeDismiss(t *testing.T) {
	env := newTestEnv(t)
	profile := newProfile()

	resp, model := env.do(t, http.MethodPost, "/api/session/station/940GZZLUNOPE", profile, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	entry := entryOf(t, model)
	assert.Equal(t, "lines", entry["view"])
	notices := entry["notices"].([]any)
	require.Len(t, notices, 1)
	notice := notices[0].(map[string]any)
	assert.Equal(t, "not_found", notice["kind"])
	id := notice["id"].(string)

	resp, model = env.do(t, http.MethodDelete, "/api/session/notices/"+id, profile, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, entryOf(t, model)["notices"])

	resp, _ = env.do(t, http.MethodDelete, "/api/session/notices/"+id, profile, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionBoardGoesStale(t *testing.T) {
	env := newTestEnv(t)
	env.tfl.SetArrivals(tfltest.OxfordCircus, []tfl.Arrival{victoriaArrival("v1", "201", 600)})
	profile := newProfile()

	resp, _ := env.do(t, http.MethodPost, "/api/session/station/"+tfltest.OxfordCircus, profile, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Refreshes keep failing so the board is never replaced.
	env.tfl.FailWith("/StopPoint/"+tfltest.OxfordCircus+"/Arrivals", http.StatusServiceUnavailable)
	env.clock.Advance(100 * time.Second)

	_, model := env.do(t, http.MethodGet, "/api/session.json", profile, "")
	entry := entryOf(t, model)
	assert.Equal(t, "arrivals", entry["view"])
	assert.Equal(t, true, entry["stale"])
	assert.Equal(t, float64(100), entry["ageSeconds"])
}

func TestSessionLinesViewHasNoStaleness(t *testing.T) {
	env := newTestEnv(t)
	_, model := env.do(t, http.MethodGet, "/api/session.json", newProfile(), "")
	entry := entryOf(t, model)
	assert.Equal(t, "lines", entry["view"])
	assert.Equal(t, false, entry["stale"])
}
