package rpc

import (
	"net"
	"sync"

	"github.com/nimbus-bt/nimbus/internal/logger"
)

// Handler answers one Request with a Response.
type Handler func(Request) Response

// Server accepts UI connections on a Unix or TCP listener and serves
// Requests sequentially per connection.
type Server struct {
	ln      net.Listener
	handler Handler
	log     logger.Logger

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	closeC   chan struct{}
}

// NewServer wraps an already-bound listener (the daemon decides whether
// that's a Unix socket or a loopback TCP port).
func NewServer(ln net.Listener, handler Handler, log logger.Logger) *Server {
	return &Server{ln: ln, handler: handler, log: log, conns: make(map[net.Conn]struct{}), closeC: make(chan struct{})}
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closeC:
				return nil
			default:
				return err
			}
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()
	for {
		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			return
		}
		resp := s.handler(req)
		resp.Version = ProtocolVersion
		resp.ID = req.ID
		if err := WriteFrame(conn, resp); err != nil {
			return
		}
	}
}

// Close stops accepting and closes every open connection.
func (s *Server) Close() error {
	close(s.closeC)
	err := s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	return err
}
