package queue

import (
	"math/rand/v2"
	"time"
)

const (
	backoffBase = 10 * time.Second
	backoffCap  = 15 * time.Minute

	backoffJitterMS = 1000
)

// Backoff returns the retry delay after the given 1-based failed attempt:
// min(15m, 10s * 2^(attempt-1)) plus a uniform jitter in [0, 1s).
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase
	for i := 1; i < attempt && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d + time.Duration(rand.IntN(backoffJitterMS))*time.Millisecond
}
