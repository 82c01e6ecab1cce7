package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBounds(t *testing.T) {
	// Oxford Circus
	lat, lon := 51.515224, -0.141903
	bounds := CalculateBounds(lat, lon, 500)

	assert.InDelta(t, 0.00899, bounds.MaxLat-bounds.MinLat, 0.0001)
	assert.InDelta(t, 0.01444, bounds.MaxLon-bounds.MinLon, 0.0002)
	assert.Equal(t, [2]float64{bounds.MinLon, bounds.MinLat}, bounds.Min())
	assert.Equal(t, [2]float64{bounds.MaxLon, bounds.MaxLat}, bounds.Max())
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		expected  float64
		tolerance float64
	}{
		{"same point", 51.5152, -0.1419, 51.5152, -0.1419, 0, 0.001},
		{"Oxford Circus to Warren Street", 51.515224, -0.141903, 51.524951, -0.138321, 1109, 15},
		{"Oxford Circus to Stratford", 51.515224, -0.141903, 51.541806, -0.003458, 10020, 100},
		{"London to Manchester", 51.5074, -0.1278, 53.4808, -2.2426, 262000, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.tolerance)
		})
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Distance(51.5, -0.1, 51.6, -0.2)
	b := Distance(51.6, -0.2, 51.5, -0.1)
	assert.InDelta(t, a, b, 1e-6)
}

func TestValidCoordinate(t *testing.T) {
	assert.True(t, ValidCoordinate(51.5, -0.12))
	assert.False(t, ValidCoordinate(91, 0))
	assert.False(t, ValidCoordinate(0, -181))
	assert.False(t, ValidCoordinate(math.NaN(), 0))
}
