package worldsvc

import (
	"net"
	"sync"

	"github.com/turtlecatch/spawner/internal/data"
	gonet "github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"go.uber.org/zap"
)

// Handler answers world requests. It is called from one goroutine per
// connection and must be safe for concurrent use.
type Handler interface {
	Spawn(req SpawnRequest) SpawnResponse
	SetPen(name string, pen data.PenStyle) bool
}

// Server exposes a Handler over the framed world protocol.
type Server struct {
	listener net.Listener
	handler  Handler
	log      *zap.Logger

	closeCh chan struct{}
	wg      sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(bindAddr string, h Handler, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		handler:  h,
		log:      log,
		closeCh:  make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		payload, err := gonet.ReadFrame(conn)
		if err != nil {
			return
		}
		reply := s.handle(payload)
		if reply == nil {
			continue
		}
		if err := gonet.WriteFrame(conn, reply); err != nil {
			s.log.Debug("world write error", zap.Error(err))
			return
		}
	}
}

func (s *Server) handle(payload []byte) []byte {
	r := packet.NewReader(payload)
	switch r.Opcode() {
	case packet.W_OPCODE_PING:
		return encodePing(packet.W_OPCODE_PONG, r.ReadD())
	case packet.W_OPCODE_SPAWN:
		id, req := decodeSpawn(r)
		resp := s.handler.Spawn(req)
		s.log.Debug("spawn", zap.String("requested", req.Name), zap.String("created", resp.Name))
		return encodeSpawnAck(id, resp)
	case packet.W_OPCODE_SET_PEN:
		id, name, pen := decodeSetPen(r)
		return encodeSetPenAck(id, s.handler.SetPen(name, pen))
	default:
		s.log.Debug("unknown world opcode", zap.Uint8("opcode", r.Opcode()))
		return nil
	}
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown stops accepting, closes every connection and waits for them.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
