// Package metrics computes time-window and efficiency quantities for a shift.
// All functions are pure; the same inputs must yield the same outputs whether
// called for a live session preview or for persisted shift aggregates.
package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// parseClock converts "HH:MM" to minutes since midnight. ok is false for
// empty or malformed input.
func parseClock(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// OpeningTime returns the shift window in minutes between two "HH:MM" bounds.
// A window that ends before it starts crosses midnight and gains 24h.
// Returns 0 when either bound is absent or malformed.
func OpeningTime(start, end string) int {
	s, ok := parseClock(start)
	if !ok {
		return 0
	}
	e, ok := parseClock(end)
	if !ok {
		return 0
	}
	opening := e - s
	if opening < 0 {
		opening += minutesPerDay
	}
	return opening
}

// LostTime sums lost-time durations in minutes.
func LostTime(durations []int) int {
	total := 0
	for _, d := range durations {
		total += d
	}
	return total
}

// AvailableTime returns opening minus lost, clamped at zero.
func AvailableTime(opening, lost int) int {
	available := opening - lost
	if available < 0 {
		return 0
	}
	return available
}

// LengthFromTime converts available minutes to producible length at the given
// belt speed (length units per minute). Returns 0 when either operand is zero.
func LengthFromTime(minutes int, beltSpeed float64) float64 {
	if minutes <= 0 || beltSpeed <= 0 {
		return 0
	}
	return float64(minutes) * beltSpeed
}

// YieldPercent returns ok/target as a percentage rounded to one decimal.
// A zero or absent target yields 0, never a division by zero.
func YieldPercent(okLength, targetLength float64) float64 {
	if targetLength <= 0 {
		return 0
	}
	return round1(okLength / targetLength * 100)
}

// EfficiencyPercent is the TRS-style composite: the availability ratio times
// the yield ratio, as a percentage rounded to one decimal. Zero-safe on both
// denominators.
func EfficiencyPercent(available, opening int, okLength, targetLength float64) float64 {
	if opening <= 0 || targetLength <= 0 {
		return 0
	}
	availability := float64(available) / float64(opening)
	yield := okLength / targetLength
	return round1(availability * yield * 100)
}

// FormatDuration renders minutes for display: "--" for zero, "Xmin" under an
// hour, "XhYY" otherwise with the minute part zero-padded and omitted when 00.
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "--"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	h := minutes / 60
	m := minutes % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%02d", h, m)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
