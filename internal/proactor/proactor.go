// Package proactor centralizes per-connection worker lifecycle: a dedicated
// accept loop spawns one worker goroutine per accepted connection, tracks it,
// and can cancel, unblock and join any worker or the whole service.
package proactor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// Handler serves one connection to completion. It must return promptly once
// ctx is cancelled or the connection is closed under it.
type Handler func(ctx context.Context, conn net.Conn)

type worker struct {
	id     uint64
	conn   net.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

type Proactor struct {
	mu      sync.Mutex
	workers map[uint64]*worker
	nextID  uint64
	ln      net.Listener
	serving bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Proactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Proactor{
		workers: make(map[uint64]*worker),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Serve starts the accept loop on ln in its own goroutine, dispatching every
// accepted connection to a new worker running h. It returns immediately.
func (p *Proactor) Serve(ln net.Listener, h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("proactor: already shut down")
	}
	if p.serving {
		return errors.New("proactor: already serving")
	}
	p.serving = true
	p.ln = ln

	p.wg.Add(1)
	go p.acceptLoop(ln, h)
	return nil
}

func (p *Proactor) acceptLoop(ln net.Listener, h Handler) {
	defer p.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			// Transient conditions (no pending connection, interrupted
			// accept) are expected; retry after a short pause.
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			log.Printf("proactor: accept: %v", err)
			return
		}
		p.spawn(conn, h)
	}
}

// spawn starts a tracked worker for conn. A connection that arrives after
// shutdown began cannot be dispatched and is closed instead.
func (p *Proactor) spawn(conn net.Conn, h Handler) (uint64, bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return 0, false
	}
	p.nextID++
	id := p.nextID
	wctx, cancel := context.WithCancel(p.ctx)
	w := &worker{id: id, conn: conn, cancel: cancel, done: make(chan struct{})}
	p.workers[id] = w
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer close(w.done)
		defer func() {
			p.mu.Lock()
			delete(p.workers, id)
			p.mu.Unlock()
			conn.Close()
			cancel()
		}()
		h(wctx, conn)
	}()
	return id, true
}

// StopWorker cancels one worker, forcibly unblocks it by closing its
// connection, and joins it.
func (p *Proactor) StopWorker(id uint64) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("proactor: no worker %d", id)
	}
	w.cancel()
	w.conn.Close()
	<-w.done
	return nil
}

// Shutdown cancels the accept loop, then every still-active worker, closing
// their connections to unblock pending receives, and joins all of them before
// returning. Safe to call more than once.
func (p *Proactor) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	ln := p.ln
	conns := make([]net.Conn, 0, len(p.workers))
	for _, w := range p.workers {
		conns = append(conns, w.conn)
	}
	p.mu.Unlock()

	p.cancel()
	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	p.wg.Wait()
}

// ActiveWorkers returns the number of workers currently tracked.
func (p *Proactor) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// WorkerIDs returns the identities of all tracked workers.
func (p *Proactor) WorkerIDs() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint64, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	return ids
}
