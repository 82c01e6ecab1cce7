package transit

import (
	"fmt"
	"math"
)

const (
	// RingRadius is the radius of the progress ring in its 100x100 viewBox.
	RingRadius = 45
	// RingMaxSeconds is the countdown that fills the whole ring.
	RingMaxSeconds = 20 * 60
)

// RingCircumference is 2πr for the progress ring.
var RingCircumference = 2 * math.Pi * RingRadius

// Countdown is the detail view's remaining time broken down for display.
type Countdown struct {
	Remaining  int     `json:"remaining"`
	Minutes    int     `json:"minutes"`
	Seconds    int     `json:"seconds"`
	Ratio      float64 `json:"ratio"`
	DashOffset float64 `json:"dashOffset"`
}

// NewCountdown clamps remaining at zero and computes the ring geometry.
func NewCountdown(remaining int) Countdown {
	if remaining < 0 {
		remaining = 0
	}
	ratio := math.Min(float64(remaining)/RingMaxSeconds, 1)
	return Countdown{
		Remaining:  remaining,
		Minutes:    remaining / 60,
		Seconds:    remaining % 60,
		Ratio:      ratio,
		DashOffset: RingCircumference * (1 - ratio),
	}
}

func (c Countdown) String() string {
	return fmt.Sprintf("%dm %02ds", c.Minutes, c.Seconds)
}
