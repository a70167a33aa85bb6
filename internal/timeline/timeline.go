// Package timeline maps elapsed narration time to the rik being recited.
package timeline

import "math"

// VerseIndex returns floor(elapsed / (duration / count)) clamped to
// [0, count-1]. ok is false when duration or count is not positive, in which
// case the caller should keep its last valid index.
func VerseIndex(elapsed, duration float64, count int) (index int, ok bool) {
	if count <= 0 || duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, false
	}
	if elapsed <= 0 || math.IsNaN(elapsed) {
		return 0, true
	}

	perVerse := duration / float64(count)
	index = int(math.Floor(elapsed / perVerse))
	if index >= count {
		index = count - 1
	}
	return index, true
}

// Fraction returns the playback fraction at which verse index starts.
func Fraction(index, count int) float64 {
	if count <= 0 || index <= 0 {
		return 0
	}
	if index >= count {
		return 1
	}
	return float64(index) / float64(count)
}
