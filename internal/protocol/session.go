// Package protocol implements the per-connection command state machine shared
// by every server variant. A Session consumes one trimmed input line at a time
// and produces reply lines; it never touches the network itself.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hulld/hulld/internal/geometry"
	"github.com/hulld/hulld/internal/graph"
)

// AreaSink receives the area of every hull recomputation. Recomputations
// happen on CH and on completed Newgraph sequences only; Newpoint and
// Removepoint intentionally do not trigger one.
type AreaSink interface {
	Publish(area float64)
}

// AreaSinkFunc adapts a function to the AreaSink interface.
type AreaSinkFunc func(area float64)

func (f AreaSinkFunc) Publish(area float64) { f(area) }

type State int

const (
	StateIdle State = iota
	StateAwaitingPoints
)

// Result is the outcome of handling one input line.
type Result struct {
	Replies []string
	Close   bool
}

type Session struct {
	id       string
	state    State
	expected int
	received int
	store    *graph.Store
	sink     AreaSink
}

// NewSession creates a session bound to the shared graph store. sink may be
// nil when no threshold monitoring is wired.
func NewSession(id string, store *graph.Store, sink AreaSink) *Session {
	return &Session{id: id, store: store, sink: sink}
}

func (s *Session) ID() string { return s.id }

// EnteringPoints reports whether the session is mid Newgraph point entry and
// therefore holds exclusive use of the graph in the cooperative deployment.
func (s *Session) EnteringPoints() bool { return s.state == StateAwaitingPoints }

// IsGraphCommand reports whether the trimmed line is one of the commands that
// touch the shared graph and are subject to admission queuing.
func IsGraphCommand(line string) bool {
	return line == "CH" ||
		strings.HasPrefix(line, "Newgraph ") ||
		strings.HasPrefix(line, "Newpoint ") ||
		strings.HasPrefix(line, "Removepoint ")
}

// HandleLine processes one protocol line and returns the replies to send.
// Blank lines are ignored. Malformed input produces an error reply and leaves
// both session and graph state unchanged.
func (s *Session) HandleLine(line string) Result {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{}
	}

	if s.state == StateAwaitingPoints {
		return s.handlePointLine(line)
	}

	switch {
	case strings.HasPrefix(line, "Newgraph "):
		return s.handleNewgraph(strings.TrimSpace(line[len("Newgraph "):]))

	case line == "CH":
		return s.handleCH()

	case strings.HasPrefix(line, "Newpoint "):
		return s.handleNewpoint(strings.TrimSpace(line[len("Newpoint "):]))

	case strings.HasPrefix(line, "Removepoint "):
		return s.handleRemovepoint(strings.TrimSpace(line[len("Removepoint "):]))

	case line == "exit" || line == "quit":
		return Result{Replies: []string{"Goodbye!"}, Close: true}

	default:
		return Result{Replies: []string{"Error: Unknown command"}}
	}
}

func (s *Session) handleNewgraph(arg string) Result {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return Result{Replies: []string{"Error: Invalid number of points"}}
	}

	s.store.Reset()
	s.state = StateAwaitingPoints
	s.expected = n
	s.received = 0
	return Result{Replies: []string{fmt.Sprintf("Enter %d points (x,y):", n)}}
}

func (s *Session) handlePointLine(line string) Result {
	p, err := geometry.ParsePoint(line)
	if err != nil {
		// Does not consume an expected-point slot.
		return Result{Replies: []string{"Error: Invalid point format: " + err.Error()}}
	}

	s.store.Add(p)
	s.received++
	replies := []string{fmt.Sprintf("Point %d accepted", s.received)}

	if s.received >= s.expected {
		s.state = StateIdle
		replies = append(replies, fmt.Sprintf("Graph created with %d points", s.received))
		s.publishArea()
	}
	return Result{Replies: replies}
}

func (s *Session) handleCH() Result {
	pts := s.store.Snapshot()
	if len(pts) < 3 {
		s.publish(0)
		return Result{Replies: []string{"0.0"}}
	}
	area := geometry.HullArea(pts)
	s.publish(area)
	return Result{Replies: []string{strconv.FormatFloat(area, 'f', 1, 64)}}
}

func (s *Session) handleNewpoint(arg string) Result {
	p, err := geometry.ParsePoint(arg)
	if err != nil {
		return Result{Replies: []string{"Error: Invalid point format: " + err.Error()}}
	}
	s.store.Add(p)
	return Result{Replies: []string{"Point added"}}
}

func (s *Session) handleRemovepoint(arg string) Result {
	p, err := geometry.ParsePoint(arg)
	if err != nil {
		return Result{Replies: []string{"Error: Invalid point format: " + err.Error()}}
	}
	if s.store.Remove(p) {
		return Result{Replies: []string{"Point removed"}}
	}
	return Result{Replies: []string{"Point not found"}}
}

// publishArea recomputes the hull area from a fresh snapshot and forwards it.
func (s *Session) publishArea() {
	pts := s.store.Snapshot()
	if len(pts) < 3 {
		s.publish(0)
		return
	}
	s.publish(geometry.HullArea(pts))
}

func (s *Session) publish(area float64) {
	if s.sink != nil {
		s.sink.Publish(area)
	}
}
