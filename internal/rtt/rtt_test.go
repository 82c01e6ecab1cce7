package rtt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tubeboard.app/internal/upstream"
)

const stratfordArrivals = `{
  "location": {"name": "Stratford", "crs": "SRA", "tiploc": "STFD"},
  "services": [
    {
      "serviceUid": "W12345", "runDate": "2025-03-14", "atocCode": "XR", "atocName": "Elizabeth Line",
      "locationDetail": {
        "gbttBookedArrival": "0812", "realtimeArrival": "0814", "platform": "10A",
        "destination": [{"description": "London Liverpool Street", "publicTime": "0825"}]
      }
    },
    {
      "serviceUid": "C55555", "runDate": "2025-03-14",
      "locationDetail": {"gbttBookedArrival": "0830"},
      "destination": [{"description": "Shenfield"}]
    },
    {
      "serviceUid": "X00001", "atocName": "c2c",
      "locationDetail": {}
    }
  ]
}`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/search/SRA/arrivals" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Options{
		BaseURL:   url,
		Username:  "user",
		Password:  "pass",
		Codes:     map[string]string{"910GSTFD": "sra"},
		RetryBase: time.Millisecond,
	})
}

func TestBoard(t *testing.T) {
	server := newTestServer(t, http.StatusOK, stratfordArrivals)
	defer server.Close()

	arrivals, err := newTestClient(server.URL).Board(context.Background(), "910GSTFD")
	require.NoError(t, err)
	require.Len(t, arrivals, 3)

	assert.Equal(t, Arrival{
		ServiceUID: "W12345", Time: "08:14", Platform: "Platform 10A",
		Destination: "London Liverpool Street", Operator: "Elizabeth Line", Realtime: true,
	}, arrivals[0])

	assert.Equal(t, "08:30", arrivals[1].Time)
	assert.False(t, arrivals[1].Realtime)
	assert.Equal(t, "Shenfield", arrivals[1].Destination)
	assert.Equal(t, "Unknown platform", arrivals[1].Platform)
	assert.Equal(t, "Unknown operator", arrivals[1].Operator)

	assert.Equal(t, "Due", arrivals[2].Time)
	assert.Equal(t, "Unknown destination", arrivals[2].Destination)
}

func TestBoardNoServices(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"location":{"crs":"SRA"},"services":null}`)
	defer server.Close()

	arrivals, err := newTestClient(server.URL).Board(context.Background(), "SRA")
	require.NoError(t, err)
	assert.Empty(t, arrivals)
}

func TestBoardWrongCredentials(t *testing.T) {
	server := newTestServer(t, http.StatusOK, stratfordArrivals)
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, Username: "user", Password: "wrong"})
	_, err := client.Board(context.Background(), "SRA")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode(err))
}

func TestBoardUnknownStation(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Board(context.Background(), "940GZZLUOXC")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCode))
}

func TestCodeFor(t *testing.T) {
	client := newTestClient("")
	code, ok := client.CodeFor("910GSTFD")
	assert.True(t, ok)
	assert.Equal(t, "SRA", code)

	code, ok = client.CodeFor("pad")
	assert.True(t, ok)
	assert.Equal(t, "PAD", code)

	_, ok = client.CodeFor("940GZZLUOXC")
	assert.False(t, ok)
}

func TestSearchRejectsBadCode(t *testing.T) {
	_, err := newTestClient("").Search(context.Background(), "../etc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid station code")
}

func TestFormatHHMM(t *testing.T) {
	got, ok := formatHHMM("2359")
	assert.True(t, ok)
	assert.Equal(t, "23:59", got)

	got, ok = formatHHMM("0814H")
	assert.True(t, ok)
	assert.Equal(t, "08:14", got)

	_, ok = formatHHMM("8:1")
	assert.False(t, ok)
	_, ok = formatHHMM("ab12")
	assert.False(t, ok)
}
