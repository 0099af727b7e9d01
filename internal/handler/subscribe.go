package handler

import (
	"github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"go.uber.org/zap"
)

// HandleSubscribe processes C_SUBSCRIBE. The topic mask replaces any earlier
// one; the session then gets the current contents of each subscribed topic so
// it does not have to wait for the next change.
func HandleSubscribe(sess *net.Session, r *packet.Reader, deps *Deps) {
	topics := r.ReadC() & (packet.TopicAlive | packet.TopicQueue)
	sess.Topics = topics
	if topics == 0 {
		sess.SetState(packet.StateConnected)
		return
	}
	sess.SetState(packet.StateSubscribed)
	deps.Log.Debug("session subscribed", zap.Uint64("session", sess.ID), zap.Uint8("topics", topics))

	if topics&packet.TopicAlive != 0 {
		sess.Send(EncodeSnapshot(packet.S_OPCODE_ALIVE_SNAPSHOT, deps.Registry.Alive()))
	}
	if topics&packet.TopicQueue != 0 {
		sess.Send(EncodeSnapshot(packet.S_OPCODE_QUEUE_SNAPSHOT, deps.Registry.Queue()))
	}
}
