package timer

import (
	"fmt"
	"math"
)

// Progress returns the elapsed share of a run in whole percent, clamped to
// [0, 100]. The remaining share is floored on purpose so the first elapsed
// second already counts as 1%.
func Progress(total, left int) int {
	if total <= 0 {
		return 0
	}
	p := 100 - int(math.Floor(100*float64(left)/float64(total)))
	return max(0, min(100, p))
}

// FormatClock renders seconds as zero-padded MM:SS, never negative.
func FormatClock(seconds int) string {
	seconds = max(0, seconds)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
