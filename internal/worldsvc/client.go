package worldsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtlecatch/spawner/internal/data"
	gonet "github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"go.uber.org/zap"
)

// ClientOptions configures readiness polling.
type ClientOptions struct {
	ReadyTimeout  time.Duration // budget of one readiness probe
	ReadyAttempts int           // probes before ErrUnavailable
}

// Client is a multiplexed connection to the world service. It is safe for
// concurrent use: every request carries an id and waits only for its own
// reply, so any number of requests may be in flight.
type Client struct {
	addr string
	opts ClientOptions
	log  *zap.Logger

	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
	nextID atomic.Uint32

	mu      sync.Mutex // guards conn, pending, closed
	conn    net.Conn
	pending map[uint32]chan []byte
	closed  bool

	writeMu sync.Mutex // serialises frame writes on conn
}

func NewClient(addr string, opts ClientOptions, log *zap.Logger) *Client {
	if opts.ReadyAttempts < 1 {
		opts.ReadyAttempts = 1
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = time.Second
	}
	var dialer net.Dialer
	return &Client{
		dial:    dialer.DialContext,
		addr:    addr,
		opts:    opts,
		log:     log.With(zap.String("world", addr)),
		pending: make(map[uint32]chan []byte),
	}
}

// WaitReady probes the service until it answers a ping, at most
// ReadyAttempts times, each probe bounded by ReadyTimeout.
func (c *Client) WaitReady(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.ReadyAttempts; attempt++ {
		start := time.Now()
		pctx, cancel := context.WithTimeout(ctx, c.opts.ReadyTimeout)
		lastErr = c.Ping(pctx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrClosed) || ctx.Err() != nil {
			return lastErr
		}
		c.log.Info("service not available, waiting again...",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt == c.opts.ReadyAttempts {
			break
		}
		// A refused dial returns at once; keep probes ReadyTimeout apart.
		wait := c.opts.ReadyTimeout - time.Since(start)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, c.opts.ReadyAttempts, lastErr)
}

// Ping sends a readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, func(id uint32) []byte {
		return encodePing(packet.W_OPCODE_PING, id)
	})
	return err
}

// Spawn asks the world to create an entity at the given pose.
func (c *Client) Spawn(ctx context.Context, req SpawnRequest) (SpawnResponse, error) {
	reply, err := c.roundTrip(ctx, func(id uint32) []byte {
		return encodeSpawn(id, req)
	})
	if err != nil {
		return SpawnResponse{}, fmt.Errorf("spawn %s: %w", req.Name, err)
	}
	r := packet.NewReader(reply)
	if r.Opcode() != packet.W_OPCODE_SPAWN_ACK {
		return SpawnResponse{}, fmt.Errorf("spawn %s: unexpected reply opcode 0x%02X", req.Name, r.Opcode())
	}
	r.ReadD()
	return SpawnResponse{Name: r.ReadS()}, nil
}

// SetPen configures the pen of the named entity.
func (c *Client) SetPen(ctx context.Context, name string, pen data.PenStyle) error {
	reply, err := c.roundTrip(ctx, func(id uint32) []byte {
		return encodeSetPen(id, name, pen)
	})
	if err != nil {
		return fmt.Errorf("set pen %s: %w", name, err)
	}
	r := packet.NewReader(reply)
	r.ReadD()
	if r.Opcode() != packet.W_OPCODE_SET_PEN_ACK || r.ReadC() == 0 {
		return fmt.Errorf("set pen %s: rejected", name)
	}
	return nil
}

// Close drops the connection and fails every pending request.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, build func(id uint32) []byte) ([]byte, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	id := c.nextID.Add(1)
	ch := make(chan []byte, 1)
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return nil, ErrConnLost
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetWriteDeadline(time.Time{})
	}
	err = gonet.WriteFrame(conn, build(id))
	c.writeMu.Unlock()
	if err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("%w: %v", ErrConnLost, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrConnLost
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect returns the live connection, dialing if there is none. The dial
// runs without c.mu held; when two callers race, the first to publish wins
// and the other closes its connection.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial world service: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		conn.Close()
		return nil, ErrClosed
	case c.conn != nil:
		conn.Close()
		return c.conn, nil
	}
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

// readLoop routes replies to their waiting request by id.
func (c *Client) readLoop(conn net.Conn) {
	defer c.drop(conn)
	for {
		payload, err := gonet.ReadFrame(conn)
		if err != nil {
			c.log.Debug("world read error", zap.Error(err))
			return
		}
		r := packet.NewReader(payload)
		id := r.ReadD()

		c.mu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if !ok {
			c.log.Debug("reply for unknown request", zap.Uint32("id", id))
			continue
		}
		ch <- payload
	}
}

// drop forgets conn and fails the requests that were waiting on it.
func (c *Client) drop(conn net.Conn) {
	conn.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
