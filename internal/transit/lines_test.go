package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"tubeboard.app/internal/tfl"
)

func fixtureLines() []tfl.Line {
	return []tfl.Line{
		{ID: "victoria", Name: "Victoria", ModeName: "tube"},
		{ID: "dlr", Name: "DLR", ModeName: "dlr"},
		{ID: "elizabeth", Name: "Elizabeth line", ModeName: "elizabeth-line"},
		{ID: "mildmay", Name: "Mildmay", ModeName: "overground"},
		{ID: "london-overground", Name: "London Overground", ModeName: "overground"},
		{ID: "c2c", Name: "c2c", ModeName: "national-rail"},
		{ID: "25", Name: "25", ModeName: "bus"},
	}
}

func ids(lines []tfl.Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.ID)
	}
	return out
}

func TestFilterLines(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		want    []string
	}{
		{"no filters shows everything", nil, []string{"victoria", "dlr", "elizabeth", "mildmay", "london-overground", "c2c", "25"}},
		{"tube includes dlr and elizabeth", []string{FilterTube}, []string{"victoria", "dlr", "elizabeth"}},
		{"overground", []string{FilterOverground}, []string{"mildmay", "london-overground"}},
		{"train", []string{FilterTrain}, []string{"c2c"}},
		{"national rail alias", []string{FilterNationalRail}, []string{"c2c"}},
		{"bus by mode name", []string{FilterBus}, []string{"25"}},
		{"union keeps input order", []string{FilterTrain, FilterTube}, []string{"victoria", "dlr", "elizabeth", "c2c"}},
		{"favorites alone matches no line", []string{FilterFavorites}, []string{}},
		{"defaults", DefaultFilters, []string{"victoria", "dlr", "elizabeth", "mildmay", "london-overground", "c2c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterLines(fixtureLines(), tt.filters)))
		})
	}
}

func TestLineColor(t *testing.T) {
	tests := []struct {
		line tfl.Line
		want string
	}{
		{tfl.Line{ID: "victoria", Name: "Victoria"}, "#0098D4"},
		{tfl.Line{ID: "hammersmith-city", Name: "Hammersmith & City"}, "#F3A9BB"},
		{tfl.Line{ID: "mildmay", Name: "Mildmay"}, "#EE7C0E"},
		{tfl.Line{ID: "", Name: "Windrush"}, "#EE7C0E"},
		{tfl.Line{ID: "london-overground", Name: "London Overground"}, "#EE7C0E"},
		{tfl.Line{ID: "tram", Name: "Tram"}, "#84B817"},
		{tfl.Line{ID: "c2c", Name: "c2c"}, DefaultColor},
		{tfl.Line{}, DefaultColor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LineColor(tt.line), tt.line.Name)
	}
}

func TestArrivalColorUsesLineID(t *testing.T) {
	a := tfl.Arrival{LineID: "central", LineName: "Central"}
	assert.Equal(t, "#E32017", ArrivalColor(a))
}

func TestIsOverground(t *testing.T) {
	assert.True(t, IsOverground(tfl.Line{ID: "weaver", Name: "Weaver"}))
	assert.True(t, IsOverground(tfl.Line{ID: "london-overground", Name: "London Overground"}))
	assert.False(t, IsOverground(tfl.Line{ID: "victoria", Name: "Victoria"}))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Good Service", StatusText(tfl.Line{}))
	assert.Equal(t, "Minor Delays", StatusText(tfl.Line{
		LineStatuses: []tfl.LineStatus{{StatusSeverity: 9, StatusSeverityDescription: "Minor Delays"}},
	}))
	assert.Equal(t, "Disrupted", StatusText(tfl.Line{
		Disruptions: []tfl.Disruption{{Category: "RealTime"}},
	}))
}

func TestShortStationName(t *testing.T) {
	assert.Equal(t, "Oxford Circus", ShortStationName("Oxford Circus Underground Station"))
	assert.Equal(t, "Stratford", ShortStationName("Stratford"))
}
