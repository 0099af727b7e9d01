package spawn

import (
	"math/rand"

	"github.com/turtlecatch/spawner/internal/data"
	"github.com/turtlecatch/spawner/internal/scripting"
)

// Placement picks the (x, y) of the spawn identified by counter.
type Placement interface {
	Position(counter int) (x, y float64)
}

// RandomPlacement draws x and y independently and uniformly from bounds.
type RandomPlacement struct {
	rng    *rand.Rand
	bounds data.Bounds
}

func NewRandomPlacement(rng *rand.Rand, bounds data.Bounds) *RandomPlacement {
	return &RandomPlacement{rng: rng, bounds: bounds}
}

func (p *RandomPlacement) Position(int) (float64, float64) {
	span := p.bounds.Max - p.bounds.Min
	x := p.bounds.Min + p.rng.Float64()*span
	y := p.bounds.Min + p.rng.Float64()*span
	return x, y
}

// CornerPlacement walks the fixed slots round-robin, slot (counter-1) mod n.
type CornerPlacement struct {
	slots []data.Point
}

func NewCornerPlacement(slots []data.Point) *CornerPlacement {
	return &CornerPlacement{slots: slots}
}

func (p *CornerPlacement) Position(counter int) (float64, float64) {
	n := len(p.slots)
	i := ((counter-1)%n + n) % n
	return p.slots[i].X, p.slots[i].Y
}

// ScriptPlacement asks Lua first and falls back when the script declines.
type ScriptPlacement struct {
	engine   *scripting.Engine
	fallback Placement
}

func NewScriptPlacement(engine *scripting.Engine, fallback Placement) *ScriptPlacement {
	return &ScriptPlacement{engine: engine, fallback: fallback}
}

func (p *ScriptPlacement) Position(counter int) (float64, float64) {
	if x, y, ok := p.engine.SpawnPosition(counter); ok {
		return x, y
	}
	return p.fallback.Position(counter)
}
