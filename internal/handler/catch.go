package handler

import (
	"github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"go.uber.org/zap"
)

// HandleCatch processes C_CATCH: move the named entity from alive to queue.
// The requester is always told success; whether the name was actually alive
// is only visible in the log and through Catch.
func HandleCatch(sess *net.Session, r *packet.Reader, deps *Deps) {
	name := r.ReadS()
	Catch(name, deps)

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CATCH_RESULT)
	w.WriteBool(true)
	sess.Send(w.Bytes())
}

// Catch moves name into the queue and reports whether it was alive.
func Catch(name string, deps *Deps) bool {
	found := deps.Registry.MoveToQueue(name)
	if !found {
		deps.Log.Warn("catch of unknown entity", zap.String("name", name))
		return false
	}
	deps.Log.Info("turtle caught",
		zap.String("name", name),
		zap.Int("alive", deps.Registry.AliveCount()),
		zap.Int("queue", deps.Registry.QueueCount()),
	)
	return true
}
