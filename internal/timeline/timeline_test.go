package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerseIndex(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  float64
		duration float64
		count    int
		want     int
	}{
		{"start", 0, 100, 10, 0},
		{"middle", 55, 100, 10, 5},
		{"boundary", 10, 100, 10, 1},
		{"end", 100, 100, 10, 9},
		{"past end", 140, 100, 10, 9},
		{"negative", -3, 100, 10, 0},
		{"single verse", 99, 100, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := VerseIndex(tt.elapsed, tt.duration, tt.count)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerseIndexUndefined(t *testing.T) {
	_, ok := VerseIndex(5, 0, 10)
	assert.False(t, ok)
	_, ok = VerseIndex(5, 100, 0)
	assert.False(t, ok)
	_, ok = VerseIndex(5, -1, 3)
	assert.False(t, ok)
}

func TestVerseIndexRangeAndMonotonic(t *testing.T) {
	for _, count := range []int{1, 2, 3, 7, 10, 33} {
		for _, duration := range []float64{0.5, 1, 61.7, 100, 523.25} {
			prev := 0
			for step := 0; step <= 1000; step++ {
				elapsed := duration * float64(step) / 1000
				got, ok := VerseIndex(elapsed, duration, count)
				require.True(t, ok)
				require.GreaterOrEqual(t, got, 0)
				require.LessOrEqual(t, got, count-1)
				require.GreaterOrEqual(t, got, prev, "count=%d duration=%v elapsed=%v", count, duration, elapsed)
				prev = got
			}
		}
	}
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 0.0, Fraction(0, 10))
	assert.Equal(t, 0.5, Fraction(5, 10))
	assert.Equal(t, 1.0, Fraction(12, 10))
	assert.Equal(t, 0.0, Fraction(3, 0))
}
