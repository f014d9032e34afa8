// Package server wires the protocol core to the three dispatch models:
// cooperative single-threaded (reactor), goroutine-per-connection with inline
// bookkeeping (threads), and goroutine-per-connection via the proactor
// supervisor. All variants speak the same wire protocol.
package server

import (
	"fmt"

	"github.com/hulld/hulld/internal/config"
	"github.com/hulld/hulld/internal/graph"
	"github.com/hulld/hulld/internal/protocol"
)

// banner is sent to every newly admitted connection.
var banner = []string{
	"Convex Hull Server Ready",
	"Commands: Newgraph n, CH, Newpoint x,y, Removepoint x,y, exit",
}

// Deps bundles the shared collaborators every variant drives.
type Deps struct {
	Store *graph.Store
	Sink  protocol.AreaSink
}

// Server is the common lifecycle of the three variants. Start binds and
// begins accepting; Port reports the bound port (useful with port 0);
// Shutdown unblocks and joins everything before returning.
type Server interface {
	Start() error
	Port() int
	Shutdown()
}

// New builds the variant selected by cfg.Mode.
func New(cfg config.ServerConfig, deps Deps) (Server, error) {
	switch cfg.Mode {
	case config.ModeReactor:
		return NewReactorServer(cfg.Host, cfg.Port, deps), nil
	case config.ModeThreads:
		return NewThreadServer(cfg.Host, cfg.Port, deps), nil
	case config.ModeProactor:
		return NewProactorServer(cfg.Host, cfg.Port, deps), nil
	default:
		return nil, fmt.Errorf("unknown server mode %q", cfg.Mode)
	}
}
