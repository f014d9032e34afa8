// Package reactor implements a single-threaded readiness-driven dispatcher:
// one background goroutine polls the registered descriptors and invokes the
// matching handler synchronously whenever one becomes readable. Handlers run
// on the loop goroutine and must not block for unbounded time.
package reactor

import (
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Handler is invoked on the reactor goroutine when its descriptor is readable.
// The handler is responsible for consuming the readable data; poll is
// level-triggered and will report the descriptor again otherwise.
type Handler func(fd int)

// ErrNotRegistered is returned by Unregister for an unknown descriptor. It is
// a reported no-op, never fatal.
var ErrNotRegistered = errors.New("reactor: fd not registered")

// pollTimeout bounds each poll call so the loop observes Stop and registry
// changes at least this often.
const pollTimeout = 100 * time.Millisecond

type Reactor struct {
	mu       sync.Mutex
	handlers map[int]Handler
	started  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func New() *Reactor {
	return &Reactor{
		handlers: make(map[int]Handler),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop in a background goroutine. Starting twice is a
// no-op.
func (r *Reactor) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.loop()
}

// Stop terminates the loop and joins it. Registered descriptors are left open;
// closing them is the owner's responsibility.
func (r *Reactor) Stop() {
	r.mu.Lock()
	if !r.started {
		r.started = true // keep a late Start from spawning a loop
		r.mu.Unlock()
		close(r.done)
		return
	}
	r.mu.Unlock()

	select {
	case <-r.done:
	default:
		close(r.done)
	}
	r.wg.Wait()
}

// Register adds fd with its handler, taking effect before the next poll
// iteration. Registering an already-registered descriptor overwrites its
// handler.
func (r *Reactor) Register(fd int, h Handler) error {
	if fd < 0 {
		return errors.New("reactor: negative fd")
	}
	if h == nil {
		return errors.New("reactor: nil handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[fd] = h
	return nil
}

// Unregister removes fd from the registry before the next poll iteration.
func (r *Reactor) Unregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[fd]; !ok {
		return ErrNotRegistered
	}
	delete(r.handlers, fd)
	return nil
}

func (r *Reactor) loop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		default:
		}

		r.mu.Lock()
		fds := make([]unix.PollFd, 0, len(r.handlers))
		for fd := range r.handlers {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		}
		r.mu.Unlock()

		if len(fds) == 0 {
			select {
			case <-r.done:
				return
			case <-time.After(pollTimeout):
			}
			continue
		}

		n, err := unix.Poll(fds, int(pollTimeout.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Printf("reactor: poll: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		for _, pfd := range fds {
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			fd := int(pfd.Fd)

			r.mu.Lock()
			h, ok := r.handlers[fd]
			r.mu.Unlock()
			if !ok {
				// Unregistered by an earlier handler in this sweep.
				continue
			}
			r.dispatch(fd, h)
		}
	}
}

// dispatch isolates handler panics so one misbehaving handler cannot stop the
// loop or affect other descriptors.
func (r *Reactor) dispatch(fd int, h Handler) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("reactor: handler for fd %d panicked: %v", fd, p)
		}
	}()
	h(fd)
}
