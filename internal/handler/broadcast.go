package handler

import (
	"github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"github.com/turtlecatch/spawner/internal/world"
)

// EncodeSnapshot builds a snapshot packet: [count H] then per entity
// [name S][x F][y F][theta F].
func EncodeSnapshot(opcode byte, entities []world.Entity) []byte {
	w := packet.NewWriterWithOpcode(opcode)
	w.WriteH(uint16(len(entities)))
	for _, e := range entities {
		w.WriteS(e.Name)
		w.WriteF(e.X)
		w.WriteF(e.Y)
		w.WriteF(e.Theta)
	}
	return w.Bytes()
}

// DecodeSnapshot parses a packet built by EncodeSnapshot.
func DecodeSnapshot(data []byte) (opcode byte, entities []world.Entity) {
	r := packet.NewReader(data)
	n := int(r.ReadH())
	entities = make([]world.Entity, 0, n)
	for i := 0; i < n; i++ {
		e := world.Entity{Name: r.ReadS()}
		e.X = r.ReadF()
		e.Y = r.ReadF()
		e.Theta = r.ReadF()
		entities = append(entities, e)
	}
	return r.Opcode(), entities
}

// Broadcaster publishes registry snapshots to every session subscribed to
// the topic. One packet is built per publish and shared by all receivers.
type Broadcaster struct {
	sessions *net.SessionStore
}

func NewBroadcaster(sessions *net.SessionStore) *Broadcaster {
	return &Broadcaster{sessions: sessions}
}

func (b *Broadcaster) PublishAlive(alive []world.Entity) {
	b.broadcast(packet.TopicAlive, EncodeSnapshot(packet.S_OPCODE_ALIVE_SNAPSHOT, alive))
}

func (b *Broadcaster) PublishQueue(queue []world.Entity) {
	b.broadcast(packet.TopicQueue, EncodeSnapshot(packet.S_OPCODE_QUEUE_SNAPSHOT, queue))
}

func (b *Broadcaster) broadcast(topic byte, data []byte) {
	b.sessions.ForEach(func(s *net.Session) {
		if s.Topics&topic != 0 {
			s.Send(data)
		}
	})
}
