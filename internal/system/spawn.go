package system

import (
	"time"

	coresys "github.com/turtlecatch/spawner/internal/core/system"
	"github.com/turtlecatch/spawner/internal/spawn"
	"go.uber.org/zap"
)

// Creator issues a creation request without waiting for it. Implemented by
// *gateway.Gateway.
type Creator interface {
	RequestCreate(req spawn.Request)
}

// SpawnSystem fires one creation request per spawn interval. The first
// request goes out one full interval after start. Phase 2 (Update).
type SpawnSystem struct {
	interval  time.Duration
	elapsed   time.Duration
	scheduler *spawn.Scheduler
	creator   Creator
	log       *zap.Logger
}

func NewSpawnSystem(interval time.Duration, scheduler *spawn.Scheduler, creator Creator, log *zap.Logger) *SpawnSystem {
	return &SpawnSystem{
		interval:  interval,
		scheduler: scheduler,
		creator:   creator,
		log:       log,
	}
}

func (s *SpawnSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SpawnSystem) Update(dt time.Duration) {
	s.elapsed += dt
	// At most one request per tick; a stalled loop does not burst.
	if s.elapsed < s.interval {
		return
	}
	s.elapsed -= s.interval
	if s.elapsed >= s.interval {
		s.elapsed = 0
	}

	req := s.scheduler.Next()
	s.log.Debug("requesting spawn",
		zap.String("name", req.Name),
		zap.Int("counter", s.scheduler.Counter()),
		zap.Float64("x", req.X),
		zap.Float64("y", req.Y),
		zap.Float64("theta", req.Theta),
	)
	s.creator.RequestCreate(req)
}
