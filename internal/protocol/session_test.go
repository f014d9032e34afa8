package protocol

import (
	"strings"
	"testing"

	"github.com/hulld/hulld/internal/geometry"
	"github.com/hulld/hulld/internal/graph"
)

func point(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

// recordingSink captures every published area for assertions.
type recordingSink struct {
	areas []float64
}

func (r *recordingSink) Publish(area float64) { r.areas = append(r.areas, area) }

func newTestSession() (*Session, *graph.Store, *recordingSink) {
	store := graph.NewStore()
	sink := &recordingSink{}
	return NewSession("test", store, sink), store, sink
}

// run feeds lines to the session and returns all replies flattened.
func run(t *testing.T, s *Session, lines ...string) []string {
	t.Helper()
	var replies []string
	for _, line := range lines {
		res := s.HandleLine(line)
		replies = append(replies, res.Replies...)
	}
	return replies
}

func TestNewgraphAndCH(t *testing.T) {
	s, _, _ := newTestSession()

	replies := run(t, s,
		"Newgraph 4",
		"0,0",
		"0,1",
		"1,1",
		"2,0",
		"CH",
	)

	want := []string{
		"Enter 4 points (x,y):",
		"Point 1 accepted",
		"Point 2 accepted",
		"Point 3 accepted",
		"Point 4 accepted",
		"Graph created with 4 points",
		"1.5",
	}
	if len(replies) != len(want) {
		t.Fatalf("got %d replies %v, want %d", len(replies), replies, len(want))
	}
	for i := range want {
		if replies[i] != want[i] {
			t.Errorf("reply[%d] = %q, want %q", i, replies[i], want[i])
		}
	}
}

func TestCHFewerThanThreePoints(t *testing.T) {
	s, _, _ := newTestSession()
	replies := run(t, s, "Newgraph 2", "0,0", "5,5", "CH")
	if got := replies[len(replies)-1]; got != "0.0" {
		t.Errorf("CH with 2 points = %q, want %q", got, "0.0")
	}
}

func TestCHIdempotent(t *testing.T) {
	s, _, _ := newTestSession()
	run(t, s, "Newgraph 3", "0,0", "4,0", "0,4")

	first := s.HandleLine("CH").Replies[0]
	second := s.HandleLine("CH").Replies[0]
	if first != second {
		t.Errorf("CH twice without mutation: %q then %q", first, second)
	}
	if first != "8.0" {
		t.Errorf("CH = %q, want 8.0", first)
	}
}

func TestNewgraphInvalidCount(t *testing.T) {
	s, store, _ := newTestSession()
	store.Add(point(1, 1))

	for _, in := range []string{"Newgraph 0", "Newgraph -3", "Newgraph abc", "Newgraph "} {
		res := s.HandleLine(in)
		if len(res.Replies) != 1 || res.Replies[0] != "Error: Invalid number of points" {
			t.Errorf("HandleLine(%q) = %v, want invalid count error", in, res.Replies)
		}
		if s.EnteringPoints() {
			t.Errorf("HandleLine(%q) changed state", in)
		}
	}
	if store.Len() != 1 {
		t.Error("invalid Newgraph must not reset the graph")
	}
}

func TestBareNewgraphIsUnknown(t *testing.T) {
	s, _, _ := newTestSession()
	res := s.HandleLine("Newgraph")
	if res.Replies[0] != "Error: Unknown command" {
		t.Errorf("bare Newgraph = %q, want unknown command", res.Replies[0])
	}
}

func TestMalformedPointDoesNotConsumeSlot(t *testing.T) {
	s, store, _ := newTestSession()
	run(t, s, "Newgraph 2", "0,0")

	res := s.HandleLine("not-a-point")
	if len(res.Replies) != 1 || !strings.HasPrefix(res.Replies[0], "Error: Invalid point format:") {
		t.Fatalf("malformed point reply = %v", res.Replies)
	}
	if !s.EnteringPoints() {
		t.Error("session left point entry on malformed input")
	}
	if store.Len() != 1 {
		t.Errorf("store has %d points, want 1", store.Len())
	}

	// The slot is still open for a valid point.
	replies := run(t, s, "1,1")
	if replies[0] != "Point 2 accepted" || replies[1] != "Graph created with 2 points" {
		t.Errorf("recovery replies = %v", replies)
	}
}

func TestNewpoint(t *testing.T) {
	s, store, sink := newTestSession()

	res := s.HandleLine("Newpoint 3,4")
	if res.Replies[0] != "Point added" {
		t.Errorf("Newpoint reply = %q", res.Replies[0])
	}
	if store.Len() != 1 {
		t.Errorf("store has %d points, want 1", store.Len())
	}
	if len(sink.areas) != 0 {
		t.Error("Newpoint must not trigger a recomputation event")
	}
}

func TestNewpointMalformed(t *testing.T) {
	s, store, _ := newTestSession()
	res := s.HandleLine("Newpoint abc")
	if !strings.HasPrefix(res.Replies[0], "Error: Invalid point format:") {
		t.Errorf("Newpoint abc = %q", res.Replies[0])
	}
	if store.Len() != 0 {
		t.Error("malformed Newpoint must leave graph unchanged")
	}
}

func TestRemovepoint(t *testing.T) {
	s, _, sink := newTestSession()
	run(t, s, "Newpoint 1,2")

	if got := s.HandleLine("Removepoint 1,2").Replies[0]; got != "Point removed" {
		t.Errorf("Removepoint = %q, want %q", got, "Point removed")
	}
	if got := s.HandleLine("Removepoint 9,9").Replies[0]; got != "Point not found" {
		t.Errorf("Removepoint on empty = %q, want %q", got, "Point not found")
	}
	if len(sink.areas) != 0 {
		t.Error("Removepoint must not trigger a recomputation event")
	}
}

func TestRemovepointEmptyGraph(t *testing.T) {
	s, _, _ := newTestSession()
	if got := s.HandleLine("Removepoint 9,9").Replies[0]; got != "Point not found" {
		t.Errorf("Removepoint 9,9 on empty graph = %q, want %q", got, "Point not found")
	}
}

func TestExitAndQuit(t *testing.T) {
	for _, cmd := range []string{"exit", "quit"} {
		s, _, _ := newTestSession()
		res := s.HandleLine(cmd)
		if !res.Close {
			t.Errorf("%q did not request close", cmd)
		}
		if res.Replies[0] != "Goodbye!" {
			t.Errorf("%q reply = %q, want Goodbye!", cmd, res.Replies[0])
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	s, _, _ := newTestSession()
	for _, in := range []string{"hello", "ch", "CH extra", "NEWPOINT 1,2"} {
		res := s.HandleLine(in)
		if res.Replies[0] != "Error: Unknown command" {
			t.Errorf("HandleLine(%q) = %q, want unknown command", in, res.Replies[0])
		}
		if res.Close {
			t.Errorf("HandleLine(%q) requested close", in)
		}
	}
}

func TestBlankLineIgnored(t *testing.T) {
	s, _, _ := newTestSession()
	res := s.HandleLine("   \r")
	if len(res.Replies) != 0 || res.Close {
		t.Errorf("blank line produced %v", res)
	}
}

func TestRecomputationEvents(t *testing.T) {
	s, _, sink := newTestSession()

	// Completed Newgraph publishes once, CH publishes once more.
	run(t, s, "Newgraph 3", "0,0", "20,0", "0,20")
	if len(sink.areas) != 1 || sink.areas[0] != 200 {
		t.Fatalf("after Newgraph completion sink = %v, want [200]", sink.areas)
	}

	run(t, s, "CH")
	if len(sink.areas) != 2 || sink.areas[1] != 200 {
		t.Fatalf("after CH sink = %v, want [200 200]", sink.areas)
	}

	// CH on a tiny graph publishes area 0.
	run(t, s, "Newgraph 1", "1,1", "CH")
	if got := sink.areas[len(sink.areas)-1]; got != 0 {
		t.Errorf("CH with <3 points published %f, want 0", got)
	}
}

func TestCommandsTolerateSurroundingSpace(t *testing.T) {
	s, _, _ := newTestSession()
	if got := s.HandleLine("  Newpoint 1,2  ").Replies[0]; got != "Point added" {
		t.Errorf("padded Newpoint = %q", got)
	}
	if got := s.HandleLine("\tCH\r").Replies[0]; got != "0.0" {
		t.Errorf("padded CH = %q", got)
	}
}

func TestSessionID(t *testing.T) {
	sess := NewSession("fd-7", graph.NewStore(), nil)
	if got := sess.ID(); got != "fd-7" {
		t.Errorf("ID() = %q, want %q", got, "fd-7")
	}
}

func TestIsGraphCommand(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"CH", true},
		{"Newgraph 3", true},
		{"Newpoint 1,2", true},
		{"Removepoint 1,2", true},
		{"exit", false},
		{"quit", false},
		{"help", false},
		{"Newgraph", false},
		{"1,2", false},
	}
	for _, tt := range tests {
		if got := IsGraphCommand(tt.line); got != tt.want {
			t.Errorf("IsGraphCommand(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
