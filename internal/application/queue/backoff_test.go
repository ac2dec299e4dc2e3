package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesFromBase(t *testing.T) {
	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
		{5, 160 * time.Second},
		{6, 320 * time.Second},
		{7, 640 * time.Second},
	}

	for _, tt := range tests {
		d := Backoff(tt.attempt)
		assert.GreaterOrEqual(t, d, tt.base, "attempt %d", tt.attempt)
		assert.Less(t, d, tt.base+time.Second, "attempt %d", tt.attempt)
	}
}

func TestBackoff_CapsAtFifteenMinutes(t *testing.T) {
	for _, attempt := range []int{8, 9, 20, 50} {
		d := Backoff(attempt)
		assert.GreaterOrEqual(t, d, 15*time.Minute, "attempt %d", attempt)
		assert.Less(t, d, 15*time.Minute+time.Second, "attempt %d", attempt)
	}
}

func TestBackoff_AttemptFloor(t *testing.T) {
	// Attempts below 1 behave like the first attempt.
	for _, attempt := range []int{0, -3} {
		d := Backoff(attempt)
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.Less(t, d, 11*time.Second)
	}
}

func TestBackoff_JitterVaries(t *testing.T) {
	seen := make(map[time.Duration]bool)
	for range 50 {
		seen[Backoff(1)] = true
	}
	// 50 draws over a 1000ms jitter window collide on every draw with
	// vanishing probability.
	assert.Greater(t, len(seen), 1)
}
