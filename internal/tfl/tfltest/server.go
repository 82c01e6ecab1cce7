// Package tfltest provides an in-memory TfL Unified API for tests.
package tfltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"tubeboard.app/internal/tfl"
)

const (
	OxfordCircus = "940GZZLUOXC"
	WarrenStreet = "940GZZLUWRR"
	Stratford    = "910GSTFD"
)

// Lines is the fixture returned by /Line/Mode/{modes}.
func Lines() []tfl.Line {
	return []tfl.Line{
		{ID: "victoria", Name: "Victoria", ModeName: "tube"},
		{ID: "central", Name: "Central", ModeName: "tube", Disruptions: []tfl.Disruption{{Category: "RealTime", Description: "Minor delays"}}},
		{ID: "dlr", Name: "DLR", ModeName: "dlr"},
		{ID: "elizabeth", Name: "Elizabeth line", ModeName: "elizabeth-line"},
		{ID: "mildmay", Name: "Mildmay", ModeName: "overground"},
		{ID: "london-overground", Name: "London Overground", ModeName: "overground"},
		{ID: "c2c", Name: "c2c", ModeName: "national-rail"},
	}
}

// Stations is the fixture of known stop points keyed by id.
func Stations() map[string]tfl.Station {
	return map[string]tfl.Station{
		OxfordCircus: {
			ID: OxfordCircus, NaptanID: OxfordCircus, CommonName: "Oxford Circus Underground Station",
			Modes: []string{"tube"},
			Lines: []tfl.LineRef{{ID: "bakerloo", Name: "Bakerloo"}, {ID: "central", Name: "Central"}, {ID: "victoria", Name: "Victoria"}},
			Lat:   51.515224, Lon: -0.141903,
		},
		WarrenStreet: {
			ID: WarrenStreet, NaptanID: WarrenStreet, CommonName: "Warren Street Underground Station",
			Modes: []string{"tube"},
			Lines: []tfl.LineRef{{ID: "northern", Name: "Northern"}, {ID: "victoria", Name: "Victoria"}},
			Lat:   51.524951, Lon: -0.138321,
		},
		Stratford: {
			ID: Stratford, NaptanID: Stratford, CommonName: "Stratford Rail Station",
			Modes: []string{"overground", "elizabeth-line", "national-rail"},
			Lines: []tfl.LineRef{{ID: "mildmay", Name: "Mildmay"}, {ID: "elizabeth", Name: "Elizabeth line"}},
			Lat:   51.541806, Lon: -0.003458,
		},
	}
}

// Server is an httptest server speaking the TfL paths the client uses.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	lines        []tfl.Line
	stations     map[string]tfl.Station
	lineStations map[string][]string
	arrivals     map[string][]tfl.Arrival
	failures     map[string]int
	hits         map[string]int
	appKeys      []string
}

func NewServer() *Server {
	s := &Server{
		lines:    Lines(),
		stations: Stations(),
		lineStations: map[string][]string{
			"victoria": {WarrenStreet, OxfordCircus},
			"central":  {OxfordCircus},
			"mildmay":  {Stratford},
		},
		arrivals: map[string][]tfl.Arrival{},
		failures: map[string]int{},
		hits:     map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// SetArrivals replaces the predictions served for stationID.
func (s *Server) SetArrivals(stationID string, arrivals []tfl.Arrival) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrivals[stationID] = append([]tfl.Arrival(nil), arrivals...)
}

// FailWith makes every request to path answer status until cleared with 0.
func (s *Server) FailWith(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

// Hits returns how many requests path received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// AppKeys returns the app_key values seen, in order.
func (s *Server) AppKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.appKeys...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := r.URL.Path
	s.hits[path]++
	if key := r.URL.Query().Get("app_key"); key != "" {
		s.appKeys = append(s.appKeys, key)
	}
	if status, ok := s.failures[path]; ok {
		http.Error(w, `{"message":"forced failure"}`, status)
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "Line" && parts[1] == "Mode":
		modes := strings.Split(parts[2], ",")
		var out []tfl.Line
		for _, l := range s.lines {
			for _, m := range modes {
				if l.ModeName == m {
					out = append(out, l)
					break
				}
			}
		}
		writeJSON(w, out)
	case len(parts) == 3 && parts[0] == "Line" && parts[2] == "StopPoints":
		ids, ok := s.lineStations[parts[1]]
		if !ok {
			http.Error(w, `{"message":"line not found"}`, http.StatusNotFound)
			return
		}
		out := make([]tfl.Station, 0, len(ids))
		for _, id := range ids {
			out = append(out, s.stations[id])
		}
		writeJSON(w, out)
	case len(parts) == 2 && parts[0] == "StopPoint":
		st, ok := s.stations[parts[1]]
		if !ok {
			http.Error(w, `{"message":"stop point not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, st)
	case len(parts) == 3 && parts[0] == "StopPoint" && strings.EqualFold(parts[2], "Arrivals"):
		if _, ok := s.stations[parts[1]]; !ok {
			http.Error(w, `{"message":"stop point not found"}`, http.StatusNotFound)
			return
		}
		out := s.arrivals[parts[1]]
		if out == nil {
			out = []tfl.Arrival{}
		}
		writeJSON(w, out)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
