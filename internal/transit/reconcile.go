package transit

import (
	"math"

	"tubeboard.app/internal/tfl"
)

// UnreliableDrift is the smallest jump, in seconds, between the last known
// countdown and the best heuristic candidate that makes the countdown
// untrustworthy.
const UnreliableDrift = 60

// Outcome classifies how a tracked arrival fared against a fresh poll.
type Outcome int

const (
	// Matched means the countdown can continue from Arrival.
	Matched Outcome = iota
	// Unreliable means the closest candidate drifted by UnreliableDrift or
	// more and the board should return to the station list.
	Unreliable
	// Lost means nothing in the poll resembles the tracked arrival.
	Lost
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Unreliable:
		return "unreliable"
	default:
		return "lost"
	}
}

// Reconciliation is the result of Reconcile.
type Reconciliation struct {
	Outcome Outcome
	Arrival tfl.Arrival
	// ByVehicle is set when the match came from the vehicle id.
	ByVehicle bool
	// Drift is |candidate - last known| in seconds.
	Drift int
}

// sameService reports whether candidate runs the same line from the same
// platform towards the same place as current.
func sameService(candidate, current tfl.Arrival) bool {
	return candidate.LineName == current.LineName &&
		candidate.PlatformName == current.PlatformName &&
		(candidate.Towards == current.Towards || candidate.DestinationName == current.DestinationName)
}

func vehicleMatch(arrivals []tfl.Arrival, current tfl.Arrival) (tfl.Arrival, bool) {
	if !current.Trackable() {
		return tfl.Arrival{}, false
	}
	for _, a := range arrivals {
		if a.VehicleID == current.VehicleID && a.TimeToStation > 0 {
			return a, true
		}
	}
	return tfl.Arrival{}, false
}

// closest returns the same-service candidate with positive time whose time
// to station is nearest to target. Ties keep the earlier entry.
func closest(arrivals []tfl.Arrival, current tfl.Arrival, target int) (tfl.Arrival, int, bool) {
	best := tfl.Arrival{}
	bestDiff := math.MaxInt
	found := false
	for _, a := range arrivals {
		if a.TimeToStation <= 0 || !sameService(a, current) {
			continue
		}
		diff := abs(a.TimeToStation - target)
		if diff < bestDiff {
			best, bestDiff, found = a, diff, true
		}
	}
	return best, bestDiff, found
}

// FindUpdatedArrival locates current in a fresh poll: an exact vehicle id
// match first, then the same-service candidate whose time to station is
// closest to current's.
func FindUpdatedArrival(arrivals []tfl.Arrival, current tfl.Arrival) (tfl.Arrival, bool) {
	if a, ok := vehicleMatch(arrivals, current); ok {
		return a, true
	}
	a, _, ok := closest(arrivals, current, current.TimeToStation)
	return a, ok
}

// FindNextArrival returns the soonest same-service arrival with positive
// time, used once the tracked countdown reaches zero.
func FindNextArrival(arrivals []tfl.Arrival, current tfl.Arrival) (tfl.Arrival, bool) {
	var next tfl.Arrival
	found := false
	for _, a := range arrivals {
		if a.TimeToStation <= 0 || !sameService(a, current) {
			continue
		}
		if !found || a.TimeToStation < next.TimeToStation {
			next, found = a, true
		}
	}
	return next, found
}

// Reconcile re-associates the tracked arrival with a fresh poll.
// lastKnown is the countdown value the board currently shows, in seconds.
// A vehicle id match is accepted whatever its drift; a heuristic match is
// accepted only when it is within UnreliableDrift of lastKnown.
func Reconcile(arrivals []tfl.Arrival, current tfl.Arrival, lastKnown int) Reconciliation {
	if a, ok := vehicleMatch(arrivals, current); ok {
		return Reconciliation{
			Outcome:   Matched,
			Arrival:   a,
			ByVehicle: true,
			Drift:     abs(a.TimeToStation - lastKnown),
		}
	}

	a, diff, ok := closest(arrivals, current, lastKnown)
	if !ok {
		return Reconciliation{Outcome: Lost}
	}
	if diff >= UnreliableDrift {
		return Reconciliation{Outcome: Unreliable, Arrival: a, Drift: diff}
	}
	return Reconciliation{Outcome: Matched, Arrival: a, Drift: diff}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
