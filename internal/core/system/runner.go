package system

import "time"

// Runner executes systems in phase order each tick. Within a phase, systems
// run in registration order.
type Runner struct {
	phases [PhasePersist + 1][]System
}

func NewRunner() *Runner {
	return &Runner{}
}

// Register adds s to its phase. It panics on a phase outside the known range.
func (r *Runner) Register(s System) {
	p := s.Phase()
	if p < PhaseInput || p > PhasePersist {
		panic("system: unknown phase")
	}
	r.phases[p] = append(r.phases[p], s)
}

func (r *Runner) Tick(dt time.Duration) {
	for _, systems := range r.phases {
		for _, s := range systems {
			s.Update(dt)
		}
	}
}

// TickPhase runs only the systems of one phase, e.g. to drain inbound
// requests between full ticks.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	if phase < PhaseInput || phase > PhasePersist {
		return
	}
	for _, s := range r.phases[phase] {
		s.Update(dt)
	}
}

// Len returns the number of registered systems.
func (r *Runner) Len() int {
	n := 0
	for _, systems := range r.phases {
		n += len(systems)
	}
	return n
}
