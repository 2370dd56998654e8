package pricing

import (
	"math/rand"
	"sync"
	"time"
)

// Noise supplies standard normal draws for the price process.
type Noise interface {
	NormFloat64() float64
}

// ZeroNoise always returns 0, leaving only the deterministic terms.
type ZeroNoise struct{}

func (ZeroNoise) NormFloat64() float64 { return 0 }

// FixedNoise returns the same draw every time.
type FixedNoise float64

func (f FixedNoise) NormFloat64() float64 { return float64(f) }

// SeededNoise is a math/rand source safe for concurrent use. Instruments
// are advanced in parallel, so draws are serialized.
type SeededNoise struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededNoise creates a noise source. A zero seed seeds from the clock.
func NewSeededNoise(seed int64) *SeededNoise {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SeededNoise{rnd: rand.New(rand.NewSource(seed))}
}

func (s *SeededNoise) NormFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.NormFloat64()
}
