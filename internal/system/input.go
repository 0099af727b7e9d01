package system

import (
	"time"

	coresys "github.com/turtlecatch/spawner/internal/core/system"
	"github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"go.uber.org/zap"
)

// SessionSource hands newly accepted sessions to the loop. Implemented by
// *net.Server.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// InputSystem adopts new sessions and dispatches their queued requests.
// Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(source SessionSource, registry *packet.Registry, store *net.SessionStore, maxPerTick int, log *zap.Logger) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 16
	}
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptNew()

	var closed []uint64
	s.store.ForEach(func(sess *net.Session) {
		if sess.IsClosed() {
			// A catch sent right before hanging up still counts.
			s.drain(sess, sess.LiveState(), -1)
			closed = append(closed, sess.ID)
			return
		}
		s.drain(sess, sess.State(), s.maxPerTick)
	})
	for _, id := range closed {
		s.store.Remove(id)
		s.log.Info("observer disconnected", zap.Uint64("session", id))
	}
}

func (s *InputSystem) acceptNew() {
	if s.source == nil {
		return
	}
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			return
		}
	}
}

// drain dispatches up to limit queued requests with state; limit < 0 empties
// the queue.
func (s *InputSystem) drain(sess *net.Session, state packet.SessionState, limit int) {
	for i := 0; limit < 0 || i < limit; i++ {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, state, data); err != nil {
				s.log.Debug("packet dispatch failed",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}
