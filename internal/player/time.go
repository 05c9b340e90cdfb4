package player

import (
	"fmt"
	"math"
)

// SeekStep is how far forward and backward seeks jump.
const SeekStep = 15.0

// FormatTime renders seconds as h:mm:ss for hour long positions and mm:ss otherwise.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}

	total := int64(seconds)
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}

	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// ForwardTime returns the position SeekStep after current, capped at duration.
func ForwardTime(current, duration float64) float64 {
	next := current + SeekStep
	if duration > 0 && next > duration {
		return roundMillis(duration)
	}

	return roundMillis(next)
}

// BackwardTime returns the position SeekStep before current, floored at zero.
func BackwardTime(current float64) float64 {
	next := current - SeekStep
	if next < 0 {
		return 0
	}

	return roundMillis(next)
}

func roundMillis(seconds float64) float64 {
	return math.Trunc(seconds*1000) / 1000
}
