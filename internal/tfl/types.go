package tfl

import (
	"strings"
	"time"
)

type Line struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ModeName     string       `json:"modeName"`
	Disruptions  []Disruption `json:"disruptions"`
	LineStatuses []LineStatus `json:"lineStatuses"`
}

type Disruption struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

type LineStatus struct {
	StatusSeverity            int    `json:"statusSeverity"`
	StatusSeverityDescription string `json:"statusSeverityDescription"`
	Reason                    string `json:"reason,omitempty"`
}

// HasDisruption reports whether TfL lists any disruption for the line.
func (l Line) HasDisruption() bool {
	return len(l.Disruptions) > 0
}

type LineRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Station struct {
	ID         string    `json:"id"`
	NaptanID   string    `json:"naptanId"`
	CommonName string    `json:"commonName"`
	Modes      []string  `json:"modes"`
	Lines      []LineRef `json:"lines"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
}

// DisplayName is the common name, or the id when TfL omits it.
func (s Station) DisplayName() string {
	if s.CommonName != "" {
		return s.CommonName
	}
	return s.ID
}

// HasLocation reports whether the stop point carries coordinates.
func (s Station) HasLocation() bool {
	return s.Lat != 0 || s.Lon != 0
}

// Arrival is one prediction from /StopPoint/{id}/Arrivals.
type Arrival struct {
	ID              string    `json:"id"`
	VehicleID       string    `json:"vehicleId"`
	NaptanID        string    `json:"naptanId"`
	StationName     string    `json:"stationName"`
	LineID          string    `json:"lineId"`
	LineName        string    `json:"lineName"`
	PlatformName    string    `json:"platformName"`
	Direction       string    `json:"direction"`
	DestinationName string    `json:"destinationName"`
	Towards         string    `json:"towards"`
	CurrentLocation string    `json:"currentLocation"`
	TimeToStation   int       `json:"timeToStation"`
	ExpectedArrival time.Time `json:"expectedArrival"`
	ModeName        string    `json:"modeName"`
}

// Trackable reports whether VehicleID identifies a physical vehicle. TfL
// sends "000" for predictions that are not tied to one.
func (a Arrival) Trackable() bool {
	v := strings.TrimSpace(a.VehicleID)
	return v != "" && v != "000"
}

// Destination prefers the towards text and falls back to the destination
// name.
func (a Arrival) Destination() string {
	if a.Towards != "" {
		return a.Towards
	}
	return a.DestinationName
}

// ExpectedAt returns ExpectedArrival, or now plus TimeToStation when TfL
// omitted it.
func (a Arrival) ExpectedAt(now time.Time) time.Time {
	if !a.ExpectedArrival.IsZero() {
		return a.ExpectedArrival
	}
	return now.Add(time.Duration(a.TimeToStation) * time.Second)
}
