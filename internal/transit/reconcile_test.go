package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"tubeboard.app/internal/tfl"
)

func victoriaNorthbound(id, vehicle string, seconds int) tfl.Arrival {
	return tfl.Arrival{
		ID:              id,
		VehicleID:       vehicle,
		LineID:          "victoria",
		LineName:        "Victoria",
		PlatformName:    "Northbound - Platform 6",
		DestinationName: "Walthamstow Central Underground Station",
		Towards:         "Walthamstow Central",
		TimeToStation:   seconds,
	}
}

func TestFindUpdatedArrival_VehicleMatchWins(t *testing.T) {
	current := victoriaNorthbound("a", "205", 180)
	arrivals := []tfl.Arrival{
		victoriaNorthbound("b", "207", 175),
		victoriaNorthbound("c", "205", 400),
	}

	got, ok := FindUpdatedArrival(arrivals, current)
	assert.True(t, ok)
	assert.Equal(t, "c", got.ID, "vehicle id beats a closer time")
}

func TestFindUpdatedArrival_VehicleMatchNeedsPositiveTime(t *testing.T) {
	current := victoriaNorthbound("a", "205", 30)
	arrivals := []tfl.Arrival{
		victoriaNorthbound("b", "205", 0),
		victoriaNorthbound("c", "209", 40),
	}

	got, ok := FindUpdatedArrival(arrivals, current)
	assert.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestFindUpdatedArrival_ClosestCandidate(t *testing.T) {
	current := victoriaNorthbound("a", "000", 200)
	arrivals := []tfl.Arrival{
		victoriaNorthbound("b", "000", 90),
		victoriaNorthbound("c", "000", 230),
		victoriaNorthbound("d", "000", 410),
	}

	got, ok := FindUpdatedArrival(arrivals, current)
	assert.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestFindUpdatedArrival_UntrackableVehicleIDsNeverMatch(t *testing.T) {
	current := victoriaNorthbound("a", "000", 200)
	other := victoriaNorthbound("b", "000", 600)
	other.LineName = "Northern"
	closer := victoriaNorthbound("c", "", 210)

	got, ok := FindUpdatedArrival([]tfl.Arrival{other, closer}, current)
	assert.True(t, ok)
	assert.Equal(t, "c", got.ID, "a shared 000 id must not count as the same vehicle")
}

func TestFindUpdatedArrival_MatchesOnTowardsOrDestination(t *testing.T) {
	current := victoriaNorthbound("a", "", 120)

	towardsOnly := victoriaNorthbound("b", "", 125)
	towardsOnly.DestinationName = "Seven Sisters Underground Station"

	destinationOnly := victoriaNorthbound("c", "", 118)
	destinationOnly.Towards = "Check Front of Train"

	neither := victoriaNorthbound("d", "", 121)
	neither.Towards = "Brixton"
	neither.DestinationName = "Brixton Underground Station"

	got, ok := FindUpdatedArrival([]tfl.Arrival{towardsOnly, neither}, current)
	assert.True(t, ok)
	assert.Equal(t, "b", got.ID)

	got, ok = FindUpdatedArrival([]tfl.Arrival{neither, destinationOnly}, current)
	assert.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestFindUpdatedArrival_RequiresSameLineAndPlatform(t *testing.T) {
	current := victoriaNorthbound("a", "", 120)

	otherPlatform := victoriaNorthbound("b", "", 120)
	otherPlatform.PlatformName = "Southbound - Platform 5"
	otherLine := victoriaNorthbound("c", "", 120)
	otherLine.LineName = "Central"

	_, ok := FindUpdatedArrival([]tfl.Arrival{otherPlatform, otherLine}, current)
	assert.False(t, ok)
}

func TestFindNextArrival(t *testing.T) {
	current := victoriaNorthbound("a", "205", 0)
	arrivals := []tfl.Arrival{
		victoriaNorthbound("a", "205", 0),
		victoriaNorthbound("b", "207", 240),
		victoriaNorthbound("c", "211", 95),
	}
	brixton := victoriaNorthbound("d", "300", 10)
	brixton.Towards, brixton.DestinationName = "Brixton", "Brixton Underground Station"
	arrivals = append(arrivals, brixton)

	got, ok := FindNextArrival(arrivals, current)
	assert.True(t, ok)
	assert.Equal(t, "c", got.ID)

	_, ok = FindNextArrival([]tfl.Arrival{brixton}, current)
	assert.False(t, ok)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		current   tfl.Arrival
		lastKnown int
		arrivals  []tfl.Arrival
		outcome   Outcome
		id        string
		byVehicle bool
		drift     int
	}{
		{
			name:      "vehicle match",
			current:   victoriaNorthbound("a", "205", 300),
			lastKnown: 150,
			arrivals:  []tfl.Arrival{victoriaNorthbound("x", "205", 140)},
			outcome:   Matched, id: "x", byVehicle: true, drift: 10,
		},
		{
			name:      "vehicle match ignores drift",
			current:   victoriaNorthbound("a", "205", 300),
			lastKnown: 150,
			arrivals:  []tfl.Arrival{victoriaNorthbound("x", "205", 400)},
			outcome:   Matched, id: "x", byVehicle: true, drift: 250,
		},
		{
			name:      "heuristic within threshold",
			current:   victoriaNorthbound("a", "", 300),
			lastKnown: 150,
			arrivals:  []tfl.Arrival{victoriaNorthbound("x", "", 209), victoriaNorthbound("y", "", 160)},
			outcome:   Matched, id: "y", drift: 10,
		},
		{
			name:      "heuristic at threshold is unreliable",
			current:   victoriaNorthbound("a", "", 300),
			lastKnown: 150,
			arrivals:  []tfl.Arrival{victoriaNorthbound("x", "", 210)},
			outcome:   Unreliable, id: "x", drift: 60,
		},
		{
			name:      "heuristic just under threshold",
			current:   victoriaNorthbound("a", "", 300),
			lastKnown: 150,
			arrivals:  []tfl.Arrival{victoriaNorthbound("x", "", 91)},
			outcome:   Matched, id: "x", drift: 59,
		},
		{
			name:      "compares against last known, not the original time",
			current:   victoriaNorthbound("a", "", 300),
			lastKnown: 100,
			arrivals:  []tfl.Arrival{victoriaNorthbound("x", "", 290), victoriaNorthbound("y", "", 105)},
			outcome:   Matched, id: "y", drift: 5,
		},
		{
			name:      "nothing left",
			current:   victoriaNorthbound("a", "", 300),
			lastKnown: 20,
			arrivals:  []tfl.Arrival{victoriaNorthbound("x", "", 0)},
			outcome:   Lost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.arrivals, tt.current, tt.lastKnown)
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.id, got.Arrival.ID)
			assert.Equal(t, tt.byVehicle, got.ByVehicle)
			assert.Equal(t, tt.drift, got.Drift)
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "matched", Matched.String())
	assert.Equal(t, "unreliable", Unreliable.String())
	assert.Equal(t, "lost", Lost.String())
}

func TestNewCountdown(t *testing.T) {
	c := NewCountdown(125)
	assert.Equal(t, 2, c.Minutes)
	assert.Equal(t, 5, c.Seconds)
	assert.InDelta(t, 125.0/1200.0, c.Ratio, 1e-9)
	assert.InDelta(t, RingCircumference*(1-125.0/1200.0), c.DashOffset, 1e-9)
	assert.Equal(t, "2m 05s", c.String())

	full := NewCountdown(3000)
	assert.Equal(t, 1.0, full.Ratio)
	assert.InDelta(t, 0, full.DashOffset, 1e-9)

	zero := NewCountdown(-4)
	assert.Equal(t, 0, zero.Remaining)
	assert.InDelta(t, RingCircumference, zero.DashOffset, 1e-9)
}
