// File: internal/shared/random.go

// Package shared holds the services every session of a run shares: a
// random source and the journal. They are built once and passed in; there
// are no package level instances.
package shared

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Random is a random source safe for use by concurrent sessions.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random seeded from the clock.
func NewRandom() *Random { return NewSeededRandom(time.Now().UnixNano()) }

// NewSeededRandom returns a Random with a fixed seed, for reproducible runs.
func NewSeededRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Intn returns a number in [lo, hi). It returns lo when the range is empty.
func (r *Random) Intn(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.Intn(hi-lo)
}

// Float returns a number in [lo, hi).
func (r *Random) Float(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.Float64()*(hi-lo)
}

// Digits returns n random decimal digits. The first digit is never zero so
// the result keeps its length when read as a number.
func (r *Random) Digits(n int) string {
	if n <= 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	b.Grow(n)
	b.WriteByte(byte('1' + r.rng.Intn(9)))
	for i := 1; i < n; i++ {
		b.WriteByte(byte('0' + r.rng.Intn(10)))
	}
	return b.String()
}
