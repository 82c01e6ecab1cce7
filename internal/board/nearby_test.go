package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/tfl/tfltest"
)

func TestStationIndexAdd(t *testing.T) {
	fixtures := tfltest.Stations()
	x := NewStationIndex()

	added := x.Add(
		fixtures[tfltest.OxfordCircus],
		fixtures[tfltest.WarrenStreet],
		fixtures[tfltest.OxfordCircus],
		tfl.Station{ID: "HUBNOLOC", CommonName: "No location"},
		tfl.Station{ID: "BAD", Lat: 123, Lon: 0},
		tfl.Station{Lat: 51.5, Lon: -0.1},
	)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, 0, x.Add(fixtures[tfltest.WarrenStreet]))
}

func TestStationIndexNear(t *testing.T) {
	fixtures := tfltest.Stations()
	x := NewStationIndex()
	x.Add(fixtures[tfltest.Stratford], fixtures[tfltest.WarrenStreet], fixtures[tfltest.OxfordCircus])

	// Just north of Oxford Circus.
	lat, lon := 51.5170, -0.1416

	near := x.Near(lat, lon, 1500, 0)
	if assert.Len(t, near, 2) {
		assert.Equal(t, tfltest.OxfordCircus, near[0].Station.ID)
		assert.Equal(t, tfltest.WarrenStreet, near[1].Station.ID)
		assert.Less(t, near[0].Distance, near[1].Distance)
	}

	assert.Len(t, x.Near(lat, lon, 1500, 1), 1)
	assert.Len(t, x.Near(lat, lon, 20000, 0), 3)
	assert.Empty(t, x.Near(lat, lon, 50, 0))
	assert.Empty(t, x.Near(lat, lon, 0, 0))
}

func TestStationIndexNearTiesByID(t *testing.T) {
	x := NewStationIndex()
	x.Add(
		tfl.Station{ID: "b", Lat: 51.5, Lon: -0.1},
		tfl.Station{ID: "a", Lat: 51.5, Lon: -0.1},
	)

	near := x.Near(51.5, -0.1, 100, 0)
	if assert.Len(t, near, 2) {
		assert.Equal(t, "a", near[0].Station.ID)
		assert.Equal(t, "b", near[1].Station.ID)
	}
}
