package spawn

import (
	"math"
	"math/rand"
	"strconv"
)

// Request is one scheduled creation: the generated name and the pose the
// entity should appear at.
type Request struct {
	Name  string
	X     float64
	Y     float64
	Theta float64
}

// Scheduler derives the name and pose of each new entity. The counter is
// pre-incremented, so with the default start of 1 the first name is
// prefix+"2". Names are never reused, even when a creation fails.
type Scheduler struct {
	prefix    string
	counter   int
	placement Placement
	rng       *rand.Rand
}

func NewScheduler(prefix string, initialCounter int, placement Placement, rng *rand.Rand) *Scheduler {
	return &Scheduler{
		prefix:    prefix,
		counter:   initialCounter,
		placement: placement,
		rng:       rng,
	}
}

// Next advances the counter and returns the next request. Position is drawn
// before theta so a seeded source yields the same sequence every run.
func (s *Scheduler) Next() Request {
	s.counter++
	x, y := s.placement.Position(s.counter)
	return Request{
		Name:  s.prefix + strconv.Itoa(s.counter),
		X:     x,
		Y:     y,
		Theta: s.rng.Float64() * 2 * math.Pi,
	}
}

// Counter returns the value used for the most recent name.
func (s *Scheduler) Counter() int {
	return s.counter
}
