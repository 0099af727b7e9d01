package world

// Entity is a named point pose tracked by the coordinator. The name is the
// identity and never changes once assigned.
type Entity struct {
	Name  string
	X     float64
	Y     float64
	Theta float64
}

// Publisher receives the full contents of a collection after it changes.
// Implementations must not retain the slice beyond the call.
type Publisher interface {
	PublishAlive(alive []Entity)
	PublishQueue(queue []Entity)
}

// NopPublisher discards snapshots.
type NopPublisher struct{}

func (NopPublisher) PublishAlive([]Entity) {}
func (NopPublisher) PublishQueue([]Entity) {}
