package call

import "fmt"

// Timing assigns the artificial delay, in milliseconds, for the i-th response
// of a turn.
type Timing interface {
	Delay(i int, rng Source) int
}

// Simultaneous returns 0 for every response. Callers render responses in
// arrival order.
type Simultaneous struct{}

func (Simultaneous) Delay(int, Source) int { return 0 }

// Staggered spaces responses out to imitate people talking over each other:
// the i-th response waits Base + i*U[Min, Max) milliseconds.
type Staggered struct {
	Base, Min, Max int
}

// DefaultStaggered matches the timing used before simultaneous arrival.
var DefaultStaggered = Staggered{Base: 500, Min: 800, Max: 1500}

func (s Staggered) Delay(i int, rng Source) int {
	if i <= 0 {
		return s.Base
	}
	step := s.Min
	if s.Max > s.Min {
		step += rng.Intn(s.Max - s.Min)
	}
	return s.Base + i*step
}

// ParseTiming maps a configured policy name to a Timing.
func ParseTiming(name string) (Timing, error) {
	switch name {
	case "", "simultaneous":
		return Simultaneous{}, nil
	case "staggered":
		return DefaultStaggered, nil
	default:
		return nil, fmt.Errorf("unknown timing policy %q (valid: simultaneous, staggered)", name)
	}
}
