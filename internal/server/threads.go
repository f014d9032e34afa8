package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// ThreadServer runs one goroutine per live connection and keeps the
// bookkeeping inline: a conns set for forced unblock on shutdown and a
// WaitGroup to join every worker. Mutual exclusion over the graph lives
// entirely inside the store, so no admission queue is needed here.
type ThreadServer struct {
	host string
	port int
	deps Deps

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewThreadServer(host string, port int, deps Deps) *ThreadServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &ThreadServer{
		host:   host,
		port:   port,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[net.Conn]struct{}),
	}
}

func (s *ThreadServer) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *ThreadServer) Port() int {
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *ThreadServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			log.Printf("threads: accept: %v", err)
			return
		}
		s.track(conn)
	}
}

func (s *ThreadServer) track(conn net.Conn) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			conn.Close()
		}()

		sess := newSessionFor(conn, s.deps)
		serveConn(s.ctx, conn, sess)
	}()
}

// Shutdown closes the listener and every live connection to unblock pending
// receives, then joins all workers.
func (s *ThreadServer) Shutdown() {
	s.cancel()
	if s.ln != nil {
		s.ln.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
