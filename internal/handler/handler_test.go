package handler

import (
	gonet "net"
	"testing"

	"github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"github.com/turtlecatch/spawner/internal/world"
	"go.uber.org/zap"
)

type fixture struct {
	store *net.SessionStore
	reg   *world.Registry
	deps  *Deps
	pkts  *packet.Registry
}

func newFixture() *fixture {
	store := net.NewSessionStore()
	reg := world.NewRegistry(NewBroadcaster(store), nil, zap.NewNop())
	deps := &Deps{Registry: reg, Log: zap.NewNop()}
	pkts := packet.NewRegistry(zap.NewNop())
	RegisterAll(pkts, deps)
	return &fixture{store: store, reg: reg, deps: deps, pkts: pkts}
}

// addSession registers an unstarted session; its output can be read back
// from OutQueue after FlushOutput.
func (f *fixture) addSession(t *testing.T, id uint64) *net.Session {
	t.Helper()
	a, b := gonet.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	s := net.NewSession(a, id, net.SessionOptions{InQueueSize: 8, OutQueueSize: 64}, zap.NewNop())
	f.store.Add(s)
	return s
}

func (f *fixture) dispatch(t *testing.T, s *net.Session, data []byte) {
	t.Helper()
	if err := f.pkts.Dispatch(s, s.State(), data); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func sent(s *net.Session) [][]byte {
	s.FlushOutput()
	var out [][]byte
	for {
		select {
		case p := <-s.OutQueue:
			out = append(out, p)
		default:
			return out
		}
	}
}

func catchPacket(name string) []byte {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_CATCH)
	w.WriteS(name)
	return w.Bytes()
}

func names(es []world.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Name
	}
	return out
}

func TestCatchAlwaysRepliesSuccess(t *testing.T) {
	f := newFixture()
	s := f.addSession(t, 1)
	f.reg.AddAlive(world.Entity{Name: "turtle2"})

	for _, name := range []string{"turtle2", "turtleX", "turtle2"} {
		f.dispatch(t, s, catchPacket(name))
		out := sent(s)
		if len(out) != 1 {
			t.Fatalf("catch %s: %d packets", name, len(out))
		}
		r := packet.NewReader(out[0])
		if r.Opcode() != packet.S_OPCODE_CATCH_RESULT || r.ReadC() != 1 {
			t.Fatalf("catch %s reply = %v", name, out[0])
		}
	}
	if f.reg.AliveCount() != 0 || f.reg.QueueCount() != 1 {
		t.Fatalf("alive=%d queue=%d", f.reg.AliveCount(), f.reg.QueueCount())
	}
}

func TestCatchReportsFoundInternally(t *testing.T) {
	f := newFixture()
	f.reg.AddAlive(world.Entity{Name: "turtle2"})
	if !Catch("turtle2", f.deps) {
		t.Fatalf("alive entity not found")
	}
	if Catch("turtle2", f.deps) || Catch("turtleX", f.deps) {
		t.Fatalf("absent entity reported found")
	}
}

func TestSpawnThenCatchScenario(t *testing.T) {
	f := newFixture()
	obs := f.addSession(t, 1)
	f.dispatch(t, obs, []byte{packet.C_OPCODE_SUBSCRIBE, packet.TopicAlive | packet.TopicQueue})
	if obs.State() != packet.StateSubscribed {
		t.Fatalf("state = %s", obs.State())
	}
	initial := sent(obs)
	if len(initial) != 2 {
		t.Fatalf("initial snapshots = %d", len(initial))
	}
	for _, p := range initial {
		if _, es := DecodeSnapshot(p); len(es) != 0 {
			t.Fatalf("initial snapshot not empty: %+v", es)
		}
	}

	f.reg.AddAlive(world.Entity{Name: "turtle2", X: 2.1, Y: 8.9, Theta: 1})
	f.reg.AddAlive(world.Entity{Name: "turtle3", X: 8.9, Y: 8.9, Theta: 2})
	spawns := sent(obs)
	if len(spawns) != 2 {
		t.Fatalf("spawn publishes = %d, want 2", len(spawns))
	}
	op, es := DecodeSnapshot(spawns[1])
	if op != packet.S_OPCODE_ALIVE_SNAPSHOT || len(es) != 2 {
		t.Fatalf("alive snapshot = %#x %+v", op, es)
	}
	if es[0] != (world.Entity{Name: "turtle2", X: 2.1, Y: 8.9, Theta: 1}) {
		t.Fatalf("entity = %+v", es[0])
	}

	requester := f.addSession(t, 2)
	f.dispatch(t, requester, catchPacket("turtle2"))

	out := sent(obs)
	if len(out) != 2 {
		t.Fatalf("catch publishes = %d, want alive + queue", len(out))
	}
	op, alive := DecodeSnapshot(out[0])
	if op != packet.S_OPCODE_ALIVE_SNAPSHOT || len(alive) != 1 || alive[0].Name != "turtle3" {
		t.Fatalf("alive after catch = %#x %v", op, names(alive))
	}
	op, queue := DecodeSnapshot(out[1])
	if op != packet.S_OPCODE_QUEUE_SNAPSHOT || len(queue) != 1 || queue[0].Name != "turtle2" {
		t.Fatalf("queue after catch = %#x %v", op, names(queue))
	}

	// The requester never subscribed, so it only gets its reply.
	if got := sent(requester); len(got) != 1 || got[0][0] != packet.S_OPCODE_CATCH_RESULT {
		t.Fatalf("requester got %v", got)
	}
}

func TestCatchOfUnknownPublishesNothing(t *testing.T) {
	f := newFixture()
	obs := f.addSession(t, 1)
	f.dispatch(t, obs, []byte{packet.C_OPCODE_SUBSCRIBE, packet.TopicAlive | packet.TopicQueue})
	sent(obs)

	f.dispatch(t, obs, catchPacket("turtleX"))
	out := sent(obs)
	if len(out) != 1 || out[0][0] != packet.S_OPCODE_CATCH_RESULT {
		t.Fatalf("unexpected output %v", out)
	}
	if f.reg.AliveCount() != 0 || f.reg.QueueCount() != 0 {
		t.Fatalf("collections changed")
	}
}

func TestSubscribeTopicsFilterBroadcasts(t *testing.T) {
	f := newFixture()
	aliveOnly := f.addSession(t, 1)
	queueOnly := f.addSession(t, 2)
	f.dispatch(t, aliveOnly, []byte{packet.C_OPCODE_SUBSCRIBE, packet.TopicAlive})
	f.dispatch(t, queueOnly, []byte{packet.C_OPCODE_SUBSCRIBE, packet.TopicQueue})
	sent(aliveOnly)
	sent(queueOnly)

	f.reg.AddAlive(world.Entity{Name: "turtle2"})
	f.reg.MoveToQueue("turtle2")

	for _, p := range sent(aliveOnly) {
		if p[0] != packet.S_OPCODE_ALIVE_SNAPSHOT {
			t.Fatalf("alive-only session got %#x", p[0])
		}
	}
	q := sent(queueOnly)
	if len(q) != 1 || q[0][0] != packet.S_OPCODE_QUEUE_SNAPSHOT {
		t.Fatalf("queue-only session got %v", q)
	}

	// Unsubscribing drops back to Connected and stops broadcasts.
	f.dispatch(t, aliveOnly, []byte{packet.C_OPCODE_SUBSCRIBE, 0})
	if aliveOnly.State() != packet.StateConnected {
		t.Fatalf("state = %s", aliveOnly.State())
	}
	f.reg.AddAlive(world.Entity{Name: "turtle3"})
	if got := sent(aliveOnly); len(got) != 0 {
		t.Fatalf("unsubscribed session got %d packets", len(got))
	}
}

func TestPing(t *testing.T) {
	f := newFixture()
	s := f.addSession(t, 1)
	f.dispatch(t, s, []byte{packet.C_OPCODE_PING})
	if got := sent(s); len(got) != 1 || got[0][0] != packet.S_OPCODE_PONG {
		t.Fatalf("ping reply = %v", got)
	}
}
