package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: accept sessions, drain request queues
	PhasePreUpdate               // 1: last tick's events, creation completions
	PhaseUpdate                  // 2: spawn timer
	PhasePostUpdate              // 3: reserved
	PhaseOutput                  // 4: flush session output
	PhasePersist                 // 5: journal flush
)

// System is the interface every loop system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
