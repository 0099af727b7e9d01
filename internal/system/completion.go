package system

import (
	"time"

	coresys "github.com/turtlecatch/spawner/internal/core/system"
)

// Drainer applies finished creation requests. Implemented by
// *gateway.Gateway.
type Drainer interface {
	Drain() int
}

// CompletionSystem commits creation outcomes on the loop goroutine.
// Phase 1 (PreUpdate).
type CompletionSystem struct {
	gw Drainer
}

func NewCompletionSystem(gw Drainer) *CompletionSystem {
	return &CompletionSystem{gw: gw}
}

func (s *CompletionSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *CompletionSystem) Update(_ time.Duration) {
	s.gw.Drain()
}
