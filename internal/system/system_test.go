package system

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	gonet "net"
	"sync"
	"testing"
	"time"

	"github.com/turtlecatch/spawner/internal/core/event"
	coresys "github.com/turtlecatch/spawner/internal/core/system"
	"github.com/turtlecatch/spawner/internal/data"
	"github.com/turtlecatch/spawner/internal/gateway"
	"github.com/turtlecatch/spawner/internal/handler"
	"github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"github.com/turtlecatch/spawner/internal/persist"
	"github.com/turtlecatch/spawner/internal/spawn"
	"github.com/turtlecatch/spawner/internal/world"
	"github.com/turtlecatch/spawner/internal/worldsvc"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingCreator struct {
	reqs []spawn.Request
}

func (c *recordingCreator) RequestCreate(req spawn.Request) { c.reqs = append(c.reqs, req) }

func cornerScheduler() *spawn.Scheduler {
	corners := data.DefaultSpawnLayout().Corners
	return spawn.NewScheduler("turtle", 1, spawn.NewCornerPlacement(corners), rand.New(rand.NewSource(75)))
}

func TestSpawnSystemFiresOncePerInterval(t *testing.T) {
	c := &recordingCreator{}
	s := NewSpawnSystem(3*time.Second, cornerScheduler(), c, zap.NewNop())

	for i := 0; i < 29; i++ {
		s.Update(100 * time.Millisecond)
	}
	if len(c.reqs) != 0 {
		t.Fatalf("fired before the first interval elapsed")
	}
	s.Update(100 * time.Millisecond)
	if len(c.reqs) != 1 || c.reqs[0].Name != "turtle2" {
		t.Fatalf("requests = %+v", c.reqs)
	}
	if c.reqs[0].X != 2.1 || c.reqs[0].Y != 8.9 {
		t.Fatalf("turtle2 at (%v, %v)", c.reqs[0].X, c.reqs[0].Y)
	}
	for i := 0; i < 30; i++ {
		s.Update(100 * time.Millisecond)
	}
	if len(c.reqs) != 2 || c.reqs[1].Name != "turtle3" {
		t.Fatalf("requests = %+v", c.reqs)
	}
}

func TestSpawnSystemDoesNotBurstAfterStall(t *testing.T) {
	c := &recordingCreator{}
	s := NewSpawnSystem(time.Second, cornerScheduler(), c, zap.NewNop())
	s.Update(10 * time.Second)
	s.Update(0)
	if len(c.reqs) != 1 {
		t.Fatalf("stalled tick produced %d requests", len(c.reqs))
	}
}

func TestSpawnSystemLogsCounter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := &recordingCreator{}
	s := NewSpawnSystem(time.Second, cornerScheduler(), c, zap.New(core))
	s.Update(time.Second)

	entries := logs.FilterMessage("requesting spawn").All()
	if len(entries) != 1 {
		t.Fatalf("spawn log entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["name"] != "turtle2" || fields["counter"] != int64(2) {
		t.Fatalf("spawn log fields = %v", fields)
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	rows []persist.EventRow
	err  error
}

func (w *fakeWriter) InsertEvents(_ context.Context, rows []persist.EventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, rows...)
	return nil
}

func (w *fakeWriter) written() []persist.EventRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]persist.EventRow(nil), w.rows...)
}

func TestJournalBatchesAndRetries(t *testing.T) {
	bus := event.NewBus()
	w := &fakeWriter{err: errors.New("db down")}
	j := NewJournalSystem(bus, w, time.Second, zap.NewNop())

	event.Emit(bus, event.EntitySpawned{Name: "turtle2", X: 2.1, Y: 8.9})
	event.Emit(bus, event.EntityCaught{Name: "turtle2", X: 2.1, Y: 8.9})
	bus.SwapBuffers()
	bus.DispatchAll()
	if j.Pending() != 2 {
		t.Fatalf("pending = %d", j.Pending())
	}

	j.Update(500 * time.Millisecond)
	if len(w.written()) != 0 {
		t.Fatalf("flushed before the interval")
	}
	j.Update(500 * time.Millisecond)
	if j.Pending() != 2 {
		t.Fatalf("failed batch was discarded")
	}

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	j.Update(time.Second)
	rows := w.written()
	if len(rows) != 2 || rows[0].Kind != persist.KindSpawned || rows[1].Kind != persist.KindCaught {
		t.Fatalf("rows = %+v", rows)
	}
	if j.Pending() != 0 {
		t.Fatalf("pending after flush = %d", j.Pending())
	}
}

func TestJournalShutdownWritesLastTickEvents(t *testing.T) {
	bus := event.NewBus()
	w := &fakeWriter{}
	j := NewJournalSystem(bus, w, time.Hour, zap.NewNop())
	dispatch := NewEventDispatchSystem(bus)
	reg := world.NewRegistry(nil, bus, zap.NewNop())

	dispatch.Update(0)
	reg.AddAlive(world.Entity{Name: "turtle2", X: 2.1, Y: 8.9})
	reg.MoveToQueue("turtle2")

	j.Shutdown(context.Background())
	rows := w.written()
	if len(rows) != 2 || rows[0].Kind != persist.KindSpawned || rows[1].Kind != persist.KindCaught {
		t.Fatalf("rows written on shutdown = %+v", rows)
	}
	if bus.Pending() != 0 {
		t.Fatalf("bus still holds %d events", bus.Pending())
	}
}

type chanSource chan *net.Session

func (c chanSource) NewSessions() <-chan *net.Session { return c }

func newPipeSession(t *testing.T, id uint64) *net.Session {
	t.Helper()
	a, b := gonet.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return net.NewSession(a, id, net.SessionOptions{InQueueSize: 8, OutQueueSize: 64}, zap.NewNop())
}

func TestInputSystemAdoptsDispatchesAndReaps(t *testing.T) {
	reg := world.NewRegistry(nil, nil, zap.NewNop())
	reg.AddAlive(world.Entity{Name: "turtle2"})
	pkts := packet.NewRegistry(zap.NewNop())
	handler.RegisterAll(pkts, &handler.Deps{Registry: reg, Log: zap.NewNop()})

	store := net.NewSessionStore()
	src := make(chanSource, 4)
	in := NewInputSystem(src, pkts, store, 4, zap.NewNop())

	sess := newPipeSession(t, 1)
	src <- sess
	in.Update(0)
	if store.Get(1) == nil {
		t.Fatalf("session not adopted")
	}

	w := packet.NewWriterWithOpcode(packet.C_OPCODE_CATCH)
	w.WriteS("turtle2")
	sess.InQueue <- w.Bytes()
	sess.Close()
	in.Update(0)

	if !reg.IsQueued("turtle2") {
		t.Fatalf("catch queued before disconnect was lost")
	}
	if store.Count() != 0 {
		t.Fatalf("closed session kept")
	}
}

func TestInputSystemDrainsEveryRequestOfClosedSession(t *testing.T) {
	reg := world.NewRegistry(nil, nil, zap.NewNop())
	pkts := packet.NewRegistry(zap.NewNop())
	handler.RegisterAll(pkts, &handler.Deps{Registry: reg, Log: zap.NewNop()})
	store := net.NewSessionStore()
	in := NewInputSystem(nil, pkts, store, 16, zap.NewNop())

	a, b := gonet.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	sess := net.NewSession(a, 1, net.SessionOptions{InQueueSize: 64, OutQueueSize: 64}, zap.NewNop())
	store.Add(sess)
	sess.SetState(packet.StateSubscribed)

	const n = 20
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("turtle%d", i+2)
		reg.AddAlive(world.Entity{Name: name})
		w := packet.NewWriterWithOpcode(packet.C_OPCODE_CATCH)
		w.WriteS(name)
		sess.InQueue <- w.Bytes()
	}
	sess.Close()
	in.Update(0)

	if reg.QueueCount() != n || reg.AliveCount() != 0 {
		t.Fatalf("queue=%d alive=%d, want every queued catch applied", reg.QueueCount(), reg.AliveCount())
	}
	if store.Count() != 0 {
		t.Fatalf("closed session kept")
	}
}

func TestInputSystemHonoursPerTickLimit(t *testing.T) {
	pkts := packet.NewRegistry(zap.NewNop())
	handler.RegisterAll(pkts, &handler.Deps{Registry: world.NewRegistry(nil, nil, zap.NewNop()), Log: zap.NewNop()})
	store := net.NewSessionStore()
	in := NewInputSystem(nil, pkts, store, 2, zap.NewNop())

	sess := newPipeSession(t, 1)
	store.Add(sess)
	for i := 0; i < 5; i++ {
		sess.InQueue <- []byte{packet.C_OPCODE_PING}
	}
	in.Update(0)
	if got := len(sess.InQueue); got != 3 {
		t.Fatalf("left %d queued, want 3", got)
	}
}

// TestLoopSpawnsAndCatches runs the assembled loop against an in-process
// world service.
func TestLoopSpawnsAndCatches(t *testing.T) {
	sim := worldsvc.NewSimWorld("turtle1")
	srv, err := worldsvc.NewServer("127.0.0.1:0", sim, zap.NewNop())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve()
	defer srv.Shutdown()

	client := worldsvc.NewClient(srv.Addr().String(), worldsvc.ClientOptions{ReadyTimeout: 50 * time.Millisecond, ReadyAttempts: 5}, zap.NewNop())
	defer client.Close()

	log := zap.NewNop()
	bus := event.NewBus()
	store := net.NewSessionStore()
	reg := world.NewRegistry(handler.NewBroadcaster(store), bus, log)
	layout := data.DefaultSpawnLayout()
	gw := gateway.New(client, reg, layout.Pen, gateway.Options{RequestTimeout: time.Second}, log)
	defer gw.Close()

	pkts := packet.NewRegistry(log)
	handler.RegisterAll(pkts, &handler.Deps{Registry: reg, Log: log})
	journal := &fakeWriter{}
	jsys := NewJournalSystem(bus, journal, time.Hour, log)

	runner := coresys.NewRunner()
	runner.Register(NewInputSystem(nil, pkts, store, 16, log))
	runner.Register(NewEventDispatchSystem(bus))
	runner.Register(NewCompletionSystem(gw))
	runner.Register(NewSpawnSystem(time.Second, cornerScheduler(), gw, log))
	runner.Register(NewOutputSystem(store))
	runner.Register(jsys)

	obs := newPipeSession(t, 1)
	store.Add(obs)
	obs.InQueue <- []byte{packet.C_OPCODE_SUBSCRIBE, packet.TopicAlive | packet.TopicQueue}

	runner.Tick(time.Second) // subscribes, fires turtle2
	runner.Tick(time.Second) // fires turtle3
	deadline := time.Now().Add(2 * time.Second)
	for reg.AliveCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		runner.Tick(10 * time.Millisecond)
	}
	if reg.AliveCount() < 2 {
		t.Fatalf("alive = %+v", reg.Alive())
	}

	w := packet.NewWriterWithOpcode(packet.C_OPCODE_CATCH)
	w.WriteS("turtle2")
	obs.InQueue <- w.Bytes()
	runner.Tick(10 * time.Millisecond)

	if !reg.IsQueued("turtle2") || reg.IsAlive("turtle2") {
		t.Fatalf("turtle2 not moved to queue")
	}
	if got, ok := sim.Turtle("turtle2"); !ok || got.X != 2.1 || got.Y != 8.9 {
		t.Fatalf("world turtle2 = %+v", got)
	}

	jsys.Shutdown(context.Background())
	var kinds []persist.EventKind
	for _, row := range journal.written() {
		if row.Name == "turtle2" {
			kinds = append(kinds, row.Kind)
		}
	}
	if len(kinds) != 2 || kinds[0] != persist.KindSpawned || kinds[1] != persist.KindCaught {
		t.Fatalf("journal for turtle2 = %v", kinds)
	}

	var sawQueue bool
	for len(obs.OutQueue) > 0 {
		op, es := handler.DecodeSnapshot(<-obs.OutQueue)
		if op == packet.S_OPCODE_QUEUE_SNAPSHOT && len(es) == 1 && es[0].Name == "turtle2" {
			sawQueue = true
		}
	}
	if !sawQueue {
		t.Fatalf("observer never saw turtle2 in the queue")
	}
}
