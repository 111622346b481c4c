package call

import (
	"math/rand"
	"sync"
	"time"
)

// Source supplies pseudo-random integers in [0, n). *rand.Rand satisfies it
// but is not safe for concurrent use; see NewSource.
type Source interface {
	Intn(n int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a goroutine-safe Source with a fixed seed.
func NewSource(seed int64) Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSource returns a goroutine-safe Source seeded from the clock.
func NewTimeSource() Source {
	return NewSource(time.Now().UnixNano())
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

// sample picks k distinct indices from [0, n) uniformly using a partial
// Fisher-Yates shuffle.
func sample(rng Source, n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
