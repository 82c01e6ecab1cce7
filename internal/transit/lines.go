// Package transit holds the board's pure domain rules: which lines a mode
// filter shows, line colours, the platform-grouped arrivals board and the
// re-association of a tracked arrival across polls.
package transit

import (
	"strings"

	"tubeboard.app/internal/tfl"
)

// Mode filter identifiers persisted in a profile's active filters.
const (
	FilterTube          = "tube"
	FilterOverground    = "overground"
	FilterTrain         = "train"
	FilterNationalRail  = "national-rail"
	FilterBus           = "bus"
	FilterFavorites     = "favorites"
	DefaultColor        = "#7B7B7B"
	overgroundColorKey  = "london-overground"
	unknownPlatformName = "Unknown Platform"
)

// DefaultFilters applies when a profile has never saved a filter list.
var DefaultFilters = []string{FilterTube, FilterOverground, FilterTrain, FilterFavorites}

// ModeFilters are the toggles offered under the line list.
var ModeFilters = []string{FilterTube, FilterOverground, FilterTrain, FilterBus}

// overgroundNames are the London Overground line brands.
var overgroundNames = []string{"lioness", "mildmay", "windrush", "weaver", "suffragette", "liberty"}

type colorEntry struct {
	key   string
	color string
}

// lineColors is ordered so that lookups are deterministic; the first key
// contained in a line id wins.
var lineColors = []colorEntry{
	{"bakerloo", "#B36305"},
	{"central", "#E32017"},
	{"circle", "#FFD300"},
	{"district", "#00782A"},
	{"hammersmith-city", "#F3A9BB"},
	{"jubilee", "#A0A5A9"},
	{"metropolitan", "#9B0056"},
	{"northern", "#000000"},
	{"piccadilly", "#003688"},
	{"victoria", "#0098D4"},
	{"waterloo-city", "#95CDBA"},
	{overgroundColorKey, "#EE7C0E"},
	{"dlr", "#00A4A7"},
	{"elizabeth", "#9364CD"},
	{"tram", "#84B817"},
}

func colorFor(key string) string {
	for _, e := range lineColors {
		if e.key == key {
			return e.color
		}
	}
	return DefaultColor
}

// LineColor returns the brand colour for a line. Overground brands are
// matched by name, everything else by a key contained in the id.
func LineColor(line tfl.Line) string {
	name := strings.ToLower(line.Name)
	for _, n := range overgroundNames {
		if strings.Contains(name, n) {
			return colorFor(overgroundColorKey)
		}
	}
	id := strings.ToLower(line.ID)
	if id == "" {
		return DefaultColor
	}
	for _, e := range lineColors {
		if strings.Contains(id, e.key) {
			return e.color
		}
	}
	return DefaultColor
}

// ArrivalColor is LineColor for the line an arrival runs on.
func ArrivalColor(a tfl.Arrival) string {
	return LineColor(tfl.Line{ID: a.LineID, Name: a.LineName})
}

// IsOverground reports whether a line is part of the London Overground.
func IsOverground(line tfl.Line) bool {
	id := strings.ToLower(line.ID)
	name := strings.ToLower(line.Name)
	if strings.Contains(id, "overground") || strings.Contains(name, "overground") {
		return true
	}
	for _, n := range overgroundNames {
		if strings.Contains(name, n) {
			return true
		}
	}
	return false
}

// MatchesFilter reports whether line belongs to the given mode filter.
func MatchesFilter(line tfl.Line, filter string) bool {
	id := strings.ToLower(line.ID)
	name := strings.ToLower(line.Name)
	mode := strings.ToLower(line.ModeName)

	switch filter {
	case FilterOverground:
		return IsOverground(line)
	case FilterTube:
		return mode == "tube" ||
			strings.Contains(id, "tube") ||
			strings.Contains(id, "dlr") ||
			strings.Contains(id, "elizabeth") ||
			strings.Contains(name, "elizabeth")
	case FilterTrain, FilterNationalRail:
		return strings.Contains(mode, "national-rail") || strings.Contains(id, "national-rail")
	default:
		filter = strings.ToLower(filter)
		return (mode != "" && mode == filter) || strings.Contains(id, filter)
	}
}

// FilterLines keeps the lines matching any of filters, preserving order.
// An empty filter list shows every line.
func FilterLines(lines []tfl.Line, filters []string) []tfl.Line {
	if len(filters) == 0 {
		return lines
	}
	out := make([]tfl.Line, 0, len(lines))
	for _, line := range lines {
		for _, f := range filters {
			if f == "" {
				continue
			}
			if MatchesFilter(line, f) {
				out = append(out, line)
				break
			}
		}
	}
	return out
}

// StatusText summarises a line's status for a tile.
func StatusText(line tfl.Line) string {
	if line.HasDisruption() {
		return "Disrupted"
	}
	for _, s := range line.LineStatuses {
		if s.StatusSeverityDescription != "" && s.StatusSeverityDescription != "Good Service" {
			return s.StatusSeverityDescription
		}
	}
	return "Good Service"
}

// ShortStationName drops the " Underground Station" suffix used in headers.
func ShortStationName(name string) string {
	return strings.TrimSuffix(name, " Underground Station")
}
