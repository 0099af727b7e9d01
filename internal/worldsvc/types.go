// Package worldsvc speaks the request/response protocol of the simulated
// world service: spawn an entity, configure its pen, probe readiness.
package worldsvc

import (
	"errors"

	"github.com/turtlecatch/spawner/internal/data"
	"github.com/turtlecatch/spawner/internal/net/packet"
)

var (
	// ErrUnavailable is returned when the bounded readiness wait runs out.
	ErrUnavailable = errors.New("world service unavailable")
	// ErrConnLost fails requests that were in flight when the connection dropped.
	ErrConnLost = errors.New("world service connection lost")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("world service client closed")
)

type SpawnRequest struct {
	X     float64
	Y     float64
	Theta float64
	Name  string
}

// SpawnResponse echoes the created name; an empty name means the world
// refused the request.
type SpawnResponse struct {
	Name string
}

func encodeSpawn(id uint32, req SpawnRequest) []byte {
	w := packet.NewWriterWithOpcode(packet.W_OPCODE_SPAWN)
	w.WriteD(id)
	w.WriteF(req.X)
	w.WriteF(req.Y)
	w.WriteF(req.Theta)
	w.WriteS(req.Name)
	return w.Bytes()
}

func decodeSpawn(r *packet.Reader) (uint32, SpawnRequest) {
	id := r.ReadD()
	req := SpawnRequest{X: r.ReadF(), Y: r.ReadF(), Theta: r.ReadF()}
	req.Name = r.ReadS()
	return id, req
}

func encodeSpawnAck(id uint32, resp SpawnResponse) []byte {
	w := packet.NewWriterWithOpcode(packet.W_OPCODE_SPAWN_ACK)
	w.WriteD(id)
	w.WriteS(resp.Name)
	return w.Bytes()
}

func encodeSetPen(id uint32, name string, pen data.PenStyle) []byte {
	w := packet.NewWriterWithOpcode(packet.W_OPCODE_SET_PEN)
	w.WriteD(id)
	w.WriteS(name)
	w.WriteC(pen.R)
	w.WriteC(pen.G)
	w.WriteC(pen.B)
	w.WriteC(pen.Width)
	w.WriteBool(pen.Off)
	return w.Bytes()
}

func decodeSetPen(r *packet.Reader) (uint32, string, data.PenStyle) {
	id := r.ReadD()
	name := r.ReadS()
	pen := data.PenStyle{R: r.ReadC(), G: r.ReadC(), B: r.ReadC(), Width: r.ReadC()}
	pen.Off = r.ReadC() != 0
	return id, name, pen
}

func encodeSetPenAck(id uint32, ok bool) []byte {
	w := packet.NewWriterWithOpcode(packet.W_OPCODE_SET_PEN_ACK)
	w.WriteD(id)
	w.WriteBool(ok)
	return w.Bytes()
}

func encodePing(op byte, id uint32) []byte {
	w := packet.NewWriterWithOpcode(op)
	w.WriteD(id)
	return w.Bytes()
}
