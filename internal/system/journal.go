package system

import (
	"context"
	"time"

	"github.com/turtlecatch/spawner/internal/core/event"
	coresys "github.com/turtlecatch/spawner/internal/core/system"
	"github.com/turtlecatch/spawner/internal/persist"
	"go.uber.org/zap"
)

// maxPendingRows bounds the backlog kept while the database is unreachable.
const maxPendingRows = 4096

// JournalSystem records spawn and catch events and writes them in batches
// every flush interval. A failed batch is retried on the next interval.
// Phase 5 (Persist).
type JournalSystem struct {
	bus      *event.Bus
	writer   persist.EventWriter
	interval time.Duration
	elapsed  time.Duration
	timeout  time.Duration
	pending  []persist.EventRow
	log      *zap.Logger
}

func NewJournalSystem(bus *event.Bus, writer persist.EventWriter, interval time.Duration, log *zap.Logger) *JournalSystem {
	s := &JournalSystem{
		bus:      bus,
		writer:   writer,
		interval: interval,
		timeout:  5 * time.Second,
		log:      log,
	}
	event.Subscribe(bus, func(e event.EntitySpawned) {
		s.record(persist.EventRow{Name: e.Name, Kind: persist.KindSpawned, X: e.X, Y: e.Y, Theta: e.Theta})
	})
	event.Subscribe(bus, func(e event.EntityCaught) {
		s.record(persist.EventRow{Name: e.Name, Kind: persist.KindCaught, X: e.X, Y: e.Y, Theta: e.Theta})
	})
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Flush(ctx)
}

// Shutdown delivers the events still buffered on the bus from the last tick,
// then writes everything pending. The loop must have stopped.
func (s *JournalSystem) Shutdown(ctx context.Context) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
	s.Flush(ctx)
}

// Flush writes every pending row now.
func (s *JournalSystem) Flush(ctx context.Context) {
	if len(s.pending) == 0 {
		return
	}
	if err := s.writer.InsertEvents(ctx, s.pending); err != nil {
		s.log.Error("journal flush failed", zap.Int("rows", len(s.pending)), zap.Error(err))
		return
	}
	s.log.Debug("journal flushed", zap.Int("rows", len(s.pending)))
	s.pending = s.pending[:0]
}

// Pending returns the number of rows not yet written.
func (s *JournalSystem) Pending() int {
	return len(s.pending)
}

func (s *JournalSystem) record(row persist.EventRow) {
	if len(s.pending) >= maxPendingRows {
		s.log.Warn("journal backlog full, dropping oldest row", zap.String("name", s.pending[0].Name))
		s.pending = append(s.pending[:0], s.pending[1:]...)
	}
	s.pending = append(s.pending, row)
}
