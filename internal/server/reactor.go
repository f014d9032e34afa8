package server

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net"

	"golang.org/x/sys/unix"

	"github.com/hulld/hulld/internal/protocol"
	"github.com/hulld/hulld/internal/reactor"
)

// rconn is the reactor-side connection record: the descriptor, its protocol
// session, and the partial-line buffer between readiness events.
type rconn struct {
	fd   int
	sess *protocol.Session
	buf  []byte
}

// ReactorServer is the cooperative single-threaded variant: the reactor loop
// is the only goroutine that ever touches sockets, sessions, or the admission
// queue. Sockets are owned at the fd level because readiness polling needs
// raw descriptors; all of them are nonblocking so no handler can stall the
// loop indefinitely.
type ReactorServer struct {
	host string
	port int
	deps Deps

	r         *reactor.Reactor
	lfd       int
	admission *protocol.Admission

	// Touched only from the reactor goroutine while it runs, and from
	// Shutdown strictly after the loop is joined.
	conns     map[int]*rconn
	bySession map[*protocol.Session]*rconn
}

func NewReactorServer(host string, port int, deps Deps) *ReactorServer {
	return &ReactorServer{
		host:      host,
		port:      port,
		deps:      deps,
		r:         reactor.New(),
		lfd:       -1,
		admission: protocol.NewAdmission(),
		conns:     make(map[int]*rconn),
		bySession: make(map[*protocol.Session]*rconn),
	}
}

func (s *ReactorServer) Start() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: s.port}
	if ip := net.ParseIP(s.host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind %s:%d: %w", s.host, s.port, err)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen: %w", err)
	}

	s.lfd = fd
	if err := s.r.Register(fd, s.acceptReady); err != nil {
		unix.Close(fd)
		return err
	}
	s.r.Start()
	return nil
}

func (s *ReactorServer) Port() int {
	if s.lfd < 0 {
		return 0
	}
	sa, err := unix.Getsockname(s.lfd)
	if err != nil {
		return 0
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return sa4.Port
	}
	return 0
}

// Shutdown stops the loop, then closes every descriptor. Ordering matters:
// the loop is joined first so no handler can race the closes.
func (s *ReactorServer) Shutdown() {
	s.r.Stop()
	for fd := range s.conns {
		unix.Close(fd)
	}
	s.conns = make(map[int]*rconn)
	s.bySession = make(map[*protocol.Session]*rconn)
	if s.lfd >= 0 {
		unix.Close(s.lfd)
		s.lfd = -1
	}
}

// acceptReady drains the pending accept queue. "Nothing pending" is the
// expected exit of the drain, never an error.
func (s *ReactorServer) acceptReady(lfd int) {
	for {
		fd, _, err := unix.Accept(lfd)
		if err != nil {
			switch err {
			case unix.EAGAIN: // == EWOULDBLOCK on Linux
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			default:
				log.Printf("reactor server: accept: %v", err)
				return
			}
		}

		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			continue
		}

		c := &rconn{
			fd:   fd,
			sess: protocol.NewSession(fmt.Sprintf("fd-%d", fd), s.deps.Store, s.deps.Sink),
		}
		s.conns[fd] = c
		s.bySession[c.sess] = c

		if err := writeFdLines(fd, banner...); err != nil {
			s.disconnect(c)
			continue
		}
		if err := s.r.Register(fd, s.connReady); err != nil {
			s.disconnect(c)
		}
	}
}

// connReady consumes whatever is readable on fd and feeds complete lines
// through the admission queue, delivering replies to whichever sessions they
// belong to.
func (s *ReactorServer) connReady(fd int) {
	c, ok := s.conns[fd]
	if !ok {
		return
	}

	buf := make([]byte, 1024)
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		s.disconnect(c)
		return
	}
	if n == 0 {
		// Peer closed.
		s.disconnect(c)
		return
	}

	c.buf = append(c.buf, buf[:n]...)
	for {
		i := bytes.IndexByte(c.buf, '\n')
		if i < 0 {
			return
		}
		line := string(c.buf[:i])
		c.buf = c.buf[i+1:]

		if closed := s.deliver(s.admission.Submit(c.sess, line)); closed[c.sess] {
			return
		}
	}
}

// deliver writes each reply to the connection owning its session and closes
// sessions that asked for it. Returns the set of sessions closed so a caller
// mid line-split can stop touching a freed connection.
func (s *ReactorServer) deliver(replies []protocol.Reply) map[*protocol.Session]bool {
	closed := make(map[*protocol.Session]bool)
	for _, r := range replies {
		c, ok := s.bySession[r.Session]
		if !ok {
			continue
		}
		if err := writeFdLines(c.fd, r.Result.Replies...); err != nil {
			s.disconnect(c)
			closed[r.Session] = true
			continue
		}
		if r.Result.Close {
			s.disconnect(c)
			closed[r.Session] = true
		}
	}
	return closed
}

// disconnect tears down one connection: unregisters it, releases any
// exclusive graph ownership, and delivers whatever the released queue drained.
func (s *ReactorServer) disconnect(c *rconn) {
	if _, ok := s.conns[c.fd]; !ok {
		return
	}
	log.Printf("reactor server: session %s disconnected", c.sess.ID())
	delete(s.conns, c.fd)
	delete(s.bySession, c.sess)
	s.r.Unregister(c.fd)
	unix.Close(c.fd)

	s.deliver(s.admission.Release(c.sess))
}

// errWriteStalled reports a peer that stayed unwritable for the whole stall
// budget. Callers treat it like any other write failure and disconnect.
var errWriteStalled = errors.New("connection write stalled")

// writeStallBudget caps how many consecutive writability waits one reply may
// spend before the peer is declared dead. The loop is single-threaded, so an
// unwritable socket must never hold it for more than the budget (10 waits of
// 100 ms each).
const writeStallBudget = 10

// writeFdLines writes newline-terminated lines to a nonblocking descriptor,
// waiting for writability on short writes. Replies are small; in practice the
// fast path is a single write.
func writeFdLines(fd int, lines ...string) error {
	stalls := 0
	for _, line := range lines {
		data := []byte(line + "\n")
		for len(data) > 0 {
			n, err := unix.Write(fd, data)
			if n > 0 {
				data = data[n:]
				stalls = 0
			}
			if err != nil {
				if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
					stalls++
					if stalls > writeStallBudget {
						return errWriteStalled
					}
					pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
					unix.Poll(pfd, 100)
					continue
				}
				if err == unix.EINTR {
					continue
				}
				return err
			}
		}
	}
	return nil
}
