package board

import (
	"math"
	"time"

	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/transit"
)

// View identifies what a session is showing.
type View string

const (
	ViewLines    View = "lines"
	ViewStations View = "stations"
	ViewArrivals View = "arrivals"
	ViewDetail   View = "detail"
)

// LineTile is a line in the line list.
type LineTile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Mode      string `json:"mode"`
	Color     string `json:"color"`
	Status    string `json:"status"`
	Disrupted bool   `json:"disrupted"`
}

// StationTile is a station in a list or a view header.
type StationTile struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ShortName string   `json:"shortName"`
	Modes     []string `json:"modes,omitempty"`
	Favorite  bool     `json:"favorite"`
	Rail      bool     `json:"rail,omitempty"`
}

// DetailView is the countdown for one tracked arrival.
type DetailView struct {
	ArrivalID   string            `json:"arrivalId"`
	VehicleID   string            `json:"vehicleId,omitempty"`
	LineID      string            `json:"lineId"`
	LineName    string            `json:"lineName"`
	Color       string            `json:"color"`
	Destination string            `json:"destination"`
	Platform    string            `json:"platform"`
	Location    string            `json:"currentLocation,omitempty"`
	Expected    string            `json:"expected"`
	Deadline    time.Time         `json:"deadline"`
	Countdown   transit.Countdown `json:"countdown"`
}

// Snapshot is a copy of a session's state at one instant, ready to render.
type Snapshot struct {
	SessionID  string `json:"sessionId"`
	View       View   `json:"view"`
	Generation uint64 `json:"generation"`

	Filters       []string      `json:"filters,omitempty"`
	ShowFavorites bool          `json:"showFavorites"`
	Favorites     []StationTile `json:"favorites,omitempty"`
	Lines         []LineTile    `json:"lines,omitempty"`

	Line     *LineTile     `json:"line,omitempty"`
	Stations []StationTile `json:"stations,omitempty"`

	Station *StationTile   `json:"station,omitempty"`
	Board   *transit.Board `json:"board,omitempty"`
	Rail    []rtt.Arrival  `json:"rail,omitempty"`

	Detail *DetailView `json:"detail,omitempty"`

	Notices   []Notice  `json:"notices"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewLineTile formats a line for a list.
func NewLineTile(l tfl.Line) LineTile {
	name := l.Name
	if name == "" {
		name = l.ID
	}
	return LineTile{
		ID:        l.ID,
		Name:      name,
		Mode:      l.ModeName,
		Color:     transit.LineColor(l),
		Status:    transit.StatusText(l),
		Disrupted: l.HasDisruption(),
	}
}

// NewStationTile formats a station; rail marks a Realtime Trains board.
func NewStationTile(st tfl.Station, favorite, rail bool) StationTile {
	return StationTile{
		ID:        st.ID,
		Name:      st.DisplayName(),
		ShortName: transit.ShortStationName(st.DisplayName()),
		Modes:     st.Modes,
		Favorite:  favorite,
		Rail:      rail,
	}
}

// remainingSeconds rounds up so a countdown shows 1s until the deadline has
// actually passed.
func remainingSeconds(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func detailView(a tfl.Arrival, deadline, now time.Time, loc *time.Location) *DetailView {
	expected := deadline
	if !a.ExpectedArrival.IsZero() {
		expected = a.ExpectedArrival
	}
	return &DetailView{
		ArrivalID:   a.ID,
		VehicleID:   a.VehicleID,
		LineID:      a.LineID,
		LineName:    a.LineName,
		Color:       transit.ArrivalColor(a),
		Destination: a.Destination(),
		Platform:    transit.PlatformName(a),
		Location:    a.CurrentLocation,
		Expected:    expected.In(loc).Format("15:04"),
		Deadline:    deadline,
		Countdown:   transit.NewCountdown(remainingSeconds(deadline, now)),
	}
}
