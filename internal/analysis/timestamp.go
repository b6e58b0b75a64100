package analysis

import (
	"fmt"
	"math"
)

// maxTimestampSeconds is the largest input formatted as-is (2^53, exact in
// both float64 and int64). Larger values, including +Inf, are clamped to it.
const maxTimestampSeconds = 1 << 53

// FormatTimestamp renders seconds as zero-padded HH:MM:SS. Fractions are
// truncated and hours are not wrapped at 24. Negative input renders as 00:00:00.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	if seconds > maxTimestampSeconds {
		seconds = maxTimestampSeconds
	}
	total := int64(math.Floor(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
