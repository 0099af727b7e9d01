package event

// EntitySpawned is emitted after a confirmed creation is committed to the
// alive collection.
type EntitySpawned struct {
	Name  string
	X     float64
	Y     float64
	Theta float64
}

// EntityCaught is emitted after an entity moves from alive to queue.
type EntityCaught struct {
	Name  string
	X     float64
	Y     float64
	Theta float64
}
