package transit

import (
	"fmt"
	"sort"
	"time"

	"tubeboard.app/internal/tfl"
)

// MaxPerPlatform caps the rows shown for a single platform.
const MaxPerPlatform = 5

// BoardRow is one arrival as shown in a platform group.
type BoardRow struct {
	ArrivalID   string `json:"arrivalId"`
	LineID      string `json:"lineId"`
	LineName    string `json:"lineName"`
	Color       string `json:"color"`
	Destination string `json:"destination"`
	Platform    string `json:"platform"`
	TimeText    string `json:"timeText"`
	Expected    string `json:"expected"`
	Seconds     int    `json:"timeToStation"`
	Location    string `json:"currentLocation,omitempty"`
}

type PlatformGroup struct {
	Name     string     `json:"name"`
	Arrivals []BoardRow `json:"arrivals"`
}

// LineToggle is a per-station line filter button.
type LineToggle struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

// Board is a station's arrivals grouped for display.
type Board struct {
	Platforms []PlatformGroup `json:"platforms"`
	Lines     []LineToggle    `json:"lines"`
	// Empty is set when no arrival survives the line filter.
	Empty bool `json:"empty"`
}

// LineFilter tracks which line names are switched off at a station. Lines
// not mentioned are active, so a line that appears on a later poll shows.
type LineFilter map[string]bool

// Active reports whether a line name is shown.
func (f LineFilter) Active(lineName string) bool {
	return !f[lineName]
}

// Toggle flips a line and returns its new active state.
func (f LineFilter) Toggle(lineName string) bool {
	if f[lineName] {
		delete(f, lineName)
		return true
	}
	f[lineName] = true
	return false
}

// UniqueLineNames lists line names in first-seen order.
func UniqueLineNames(arrivals []tfl.Arrival) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range arrivals {
		if !seen[a.LineName] {
			seen[a.LineName] = true
			out = append(out, a.LineName)
		}
	}
	return out
}

// PlatformName returns the platform or "Unknown Platform".
func PlatformName(a tfl.Arrival) string {
	if a.PlatformName == "" {
		return unknownPlatformName
	}
	return a.PlatformName
}

// TimeText is "Due" under a minute, otherwise whole minutes.
func TimeText(seconds int) string {
	minutes := seconds / 60
	if minutes <= 0 {
		return "Due"
	}
	return fmt.Sprintf("%d min", minutes)
}

// ExpectedText formats the expected arrival as HH:MM in loc.
func ExpectedText(a tfl.Arrival, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return a.ExpectedAt(now).In(loc).Format("15:04")
}

// BuildBoard groups arrivals by platform after applying filter. Platforms are
// sorted by name and each lists at most MaxPerPlatform rows by time.
func BuildBoard(arrivals []tfl.Arrival, filter LineFilter, now time.Time, loc *time.Location) Board {
	board := Board{Platforms: []PlatformGroup{}, Lines: []LineToggle{}}

	names := UniqueLineNames(arrivals)
	if len(names) > 1 {
		for _, name := range names {
			board.Lines = append(board.Lines, LineToggle{
				Name:   name,
				Color:  LineColor(tfl.Line{Name: name, ID: lineIDFor(arrivals, name)}),
				Active: filter.Active(name),
			})
		}
	}

	groups := map[string][]tfl.Arrival{}
	for _, a := range arrivals {
		if !filter.Active(a.LineName) {
			continue
		}
		p := PlatformName(a)
		groups[p] = append(groups[p], a)
	}
	if len(groups) == 0 {
		board.Empty = true
		return board
	}

	platforms := make([]string, 0, len(groups))
	for p := range groups {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	for _, p := range platforms {
		list := groups[p]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].TimeToStation < list[j].TimeToStation
		})
		if len(list) > MaxPerPlatform {
			list = list[:MaxPerPlatform]
		}
		group := PlatformGroup{Name: p, Arrivals: make([]BoardRow, 0, len(list))}
		for _, a := range list {
			group.Arrivals = append(group.Arrivals, BoardRow{
				ArrivalID:   a.ID,
				LineID:      a.LineID,
				LineName:    a.LineName,
				Color:       ArrivalColor(a),
				Destination: a.Destination(),
				Platform:    p,
				TimeText:    TimeText(a.TimeToStation),
				Expected:    ExpectedText(a, now, loc),
				Seconds:     a.TimeToStation,
				Location:    a.CurrentLocation,
			})
		}
		board.Platforms = append(board.Platforms, group)
	}
	return board
}

func lineIDFor(arrivals []tfl.Arrival, name string) string {
	for _, a := range arrivals {
		if a.LineName == name {
			return a.LineID
		}
	}
	return ""
}

// FindArrival returns the arrival with the given id.
func FindArrival(arrivals []tfl.Arrival, id string) (tfl.Arrival, bool) {
	for _, a := range arrivals {
		if a.ID == id {
			return a, true
		}
	}
	return tfl.Arrival{}, false
}
