package clock

import (
	"fmt"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// Describe returns a one-line human message for a reading, or for its absence
func Describe(r *types.ClockReading) string {
	if r == nil || r.Hours == 0 {
		return "Unable to determine the time from the detected clock."
	}
	if r.Minutes == nil {
		return fmt.Sprintf("Detected hour hand at %02d.", r.Hours)
	}
	return fmt.Sprintf("Detected time: %s.", r.String())
}

// AngleLines returns the overlay text lines for a resolution
func AngleLines(res *Resolution) []string {
	lines := []string{fmt.Sprintf("Hour angle: %.1f", res.HourAngle)}
	if res.MinuteAngle != nil {
		lines = append(lines, fmt.Sprintf("Minute angle: %.1f", *res.MinuteAngle))
	}
	if res.SecondAngle != nil {
		lines = append(lines, fmt.Sprintf("Seconds angle: %.1f", *res.SecondAngle))
	}
	return append(lines, "Time: "+res.Reading.String())
}
