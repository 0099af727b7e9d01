package world

import (
	"github.com/turtlecatch/spawner/internal/core/event"
	"go.uber.org/zap"
)

type collection byte

const (
	inAlive collection = iota + 1
	inQueue
)

// Registry owns the alive and queue collections. Both are kept in insertion
// order; a name is in at most one of them at any time.
// Single-goroutine access only (game loop).
type Registry struct {
	alive []Entity
	queue []Entity
	where map[string]collection

	pub Publisher
	bus *event.Bus // optional
	log *zap.Logger
}

func NewRegistry(pub Publisher, bus *event.Bus, log *zap.Logger) *Registry {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Registry{
		where: make(map[string]collection),
		pub:   pub,
		bus:   bus,
		log:   log,
	}
}

// AddAlive appends e to the alive collection and publishes it. A name that is
// already tracked is rejected and nothing is published.
func (r *Registry) AddAlive(e Entity) bool {
	if c, ok := r.where[e.Name]; ok {
		r.log.Warn("duplicate entity rejected",
			zap.String("name", e.Name),
			zap.Bool("queued", c == inQueue),
		)
		return false
	}
	r.alive = append(r.alive, e)
	r.where[e.Name] = inAlive
	r.pub.PublishAlive(r.Alive())
	if r.bus != nil {
		event.Emit(r.bus, event.EntitySpawned{Name: e.Name, X: e.X, Y: e.Y, Theta: e.Theta})
	}
	return true
}

// MoveToQueue moves the named entity from alive to the end of queue and
// publishes alive then queue. It reports false, with no side effect, when the
// name is not alive.
func (r *Registry) MoveToQueue(name string) bool {
	if r.where[name] != inAlive {
		return false
	}
	idx := -1
	for i := range r.alive {
		if r.alive[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	e := r.alive[idx]
	r.alive = append(r.alive[:idx], r.alive[idx+1:]...)
	r.queue = append(r.queue, e)
	r.where[name] = inQueue

	r.pub.PublishAlive(r.Alive())
	r.pub.PublishQueue(r.Queue())
	if r.bus != nil {
		event.Emit(r.bus, event.EntityCaught{Name: e.Name, X: e.X, Y: e.Y, Theta: e.Theta})
	}
	return true
}

// Alive returns a copy of the alive collection.
func (r *Registry) Alive() []Entity {
	out := make([]Entity, len(r.alive))
	copy(out, r.alive)
	return out
}

// Queue returns a copy of the queue collection.
func (r *Registry) Queue() []Entity {
	out := make([]Entity, len(r.queue))
	copy(out, r.queue)
	return out
}

func (r *Registry) IsAlive(name string) bool  { return r.where[name] == inAlive }
func (r *Registry) IsQueued(name string) bool { return r.where[name] == inQueue }

func (r *Registry) AliveCount() int { return len(r.alive) }
func (r *Registry) QueueCount() int { return len(r.queue) }
