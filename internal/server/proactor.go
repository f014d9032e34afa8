package server

import (
	"context"
	"fmt"
	"net"

	"github.com/hulld/hulld/internal/proactor"
	"github.com/hulld/hulld/internal/protocol"
)

// ProactorServer is behaviorally identical to ThreadServer but delegates all
// worker lifecycle (spawn, tracking, cancellation, joining) to the proactor
// supervisor instead of duplicating it here.
type ProactorServer struct {
	host string
	port int
	deps Deps

	ln net.Listener
	p  *proactor.Proactor
}

func NewProactorServer(host string, port int, deps Deps) *ProactorServer {
	return &ProactorServer{
		host: host,
		port: port,
		deps: deps,
		p:    proactor.New(),
	}
}

func (s *ProactorServer) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.ln = ln

	return s.p.Serve(ln, func(ctx context.Context, conn net.Conn) {
		serveConn(ctx, conn, newSessionFor(conn, s.deps))
	})
}

func (s *ProactorServer) Port() int {
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// ActiveWorkers reports the supervisor's live worker count.
func (s *ProactorServer) ActiveWorkers() int { return s.p.ActiveWorkers() }

func (s *ProactorServer) Shutdown() {
	s.p.Shutdown()
}

// newSessionFor creates the per-connection protocol state machine, identified
// by the peer address.
func newSessionFor(conn net.Conn, deps Deps) *protocol.Session {
	return protocol.NewSession(conn.RemoteAddr().String(), deps.Store, deps.Sink)
}
