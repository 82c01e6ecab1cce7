package restapi

import "time"

// StaleDetector decides whether a session's data is too old to trust, for
// example after its pollers failed repeatedly.
type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{threshold: 90 * time.Second}
}

func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	d.threshold = threshold
	return d
}

// Check reports whether data refreshed at updatedAt is stale at now. A zero
// updatedAt has never been refreshed and is stale.
func (d *StaleDetector) Check(updatedAt, now time.Time) bool {
	if updatedAt.IsZero() {
		return true
	}
	return d.Age(updatedAt, now) > d.threshold
}

func (d *StaleDetector) Age(updatedAt, now time.Time) time.Duration {
	if updatedAt.IsZero() {
		return d.threshold + 1
	}
	return now.Sub(updatedAt)
}
