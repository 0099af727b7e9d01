package handler

import (
	"github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"github.com/turtlecatch/spawner/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Registry *world.Registry
	Log      *zap.Logger
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	anyState := []packet.SessionState{packet.StateConnected, packet.StateSubscribed}

	reg.Register(packet.C_OPCODE_CATCH, anyState,
		func(sess any, r *packet.Reader) {
			HandleCatch(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_SUBSCRIBE, anyState,
		func(sess any, r *packet.Reader) {
			HandleSubscribe(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_PING, anyState,
		func(sess any, r *packet.Reader) {
			sess.(*net.Session).Send([]byte{packet.S_OPCODE_PONG})
		},
	)
}
