package worldsvc

import (
	"strconv"
	"sync"

	"github.com/turtlecatch/spawner/internal/data"
)

// WorldSize is the edge length of the square simulated world.
const WorldSize = 11.088889

// SimTurtle is one entity held by SimWorld.
type SimTurtle struct {
	Name  string
	X     float64
	Y     float64
	Theta float64
	Pen   data.PenStyle
}

// SimWorld is an in-memory Handler. It starts with one entity, rejects
// duplicate names and positions outside the world, and names unnamed spawns
// itself.
type SimWorld struct {
	mu      sync.Mutex
	turtles map[string]*SimTurtle
	order   []string
	auto    int
}

func NewSimWorld(initial string) *SimWorld {
	w := &SimWorld{turtles: make(map[string]*SimTurtle)}
	if initial != "" {
		w.add(&SimTurtle{Name: initial, X: WorldSize / 2, Y: WorldSize / 2})
	}
	return w
}

func (w *SimWorld) add(t *SimTurtle) {
	w.turtles[t.Name] = t
	w.order = append(w.order, t.Name)
}

func (w *SimWorld) Spawn(req SpawnRequest) SpawnResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	if req.X < 0 || req.X > WorldSize || req.Y < 0 || req.Y > WorldSize {
		return SpawnResponse{}
	}
	name := req.Name
	if name == "" {
		for {
			w.auto++
			name = "turtle" + strconv.Itoa(w.auto)
			if _, taken := w.turtles[name]; !taken {
				break
			}
		}
	}
	if _, taken := w.turtles[name]; taken {
		return SpawnResponse{}
	}
	w.add(&SimTurtle{Name: name, X: req.X, Y: req.Y, Theta: req.Theta})
	return SpawnResponse{Name: name}
}

func (w *SimWorld) SetPen(name string, pen data.PenStyle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.turtles[name]
	if !ok {
		return false
	}
	t.Pen = pen
	return true
}

// Turtle returns a copy of the named entity.
func (w *SimWorld) Turtle(name string) (SimTurtle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.turtles[name]
	if !ok {
		return SimTurtle{}, false
	}
	return *t, true
}

// Names lists entities in creation order.
func (w *SimWorld) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}
