package protocol

import (
	"fmt"
	"strings"
)

// Admission serializes graph-touching commands while one session holds
// exclusive use of the graph mid point entry. It exists for the cooperative
// single-threaded deployment only and is confined to the reactor loop
// goroutine, so it carries no lock of its own.
type Admission struct {
	owner *Session
	queue []pendingCommand
}

// pendingCommand is a queued (session, raw command) pair awaiting the release
// of exclusive graph access. FIFO order is arrival order.
type pendingCommand struct {
	sess *Session
	line string
}

func NewAdmission() *Admission {
	return &Admission{}
}

// Reply pairs an execution result with the session it must be delivered to.
// Draining the queue can produce replies for sessions other than the
// submitting one.
type Reply struct {
	Session *Session
	Result  Result
}

// Submit routes one input line from sess: point-entry lines and commands from
// the current owner execute immediately, graph commands from other sessions
// are queued while the graph is exclusively held, everything else executes in
// place. Completing a point-entry sequence releases ownership and drains the
// queue in arrival order until empty or until a drained command takes
// ownership itself.
func (a *Admission) Submit(sess *Session, line string) []Reply {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if sess.EnteringPoints() {
		res := sess.HandleLine(line)
		out := []Reply{{Session: sess, Result: res}}
		if !sess.EnteringPoints() && a.owner == sess {
			a.owner = nil
			out = append(out, a.drain()...)
		}
		return out
	}

	if a.owner != nil && a.owner != sess && IsGraphCommand(line) {
		a.queue = append(a.queue, pendingCommand{sess: sess, line: line})
		reply := fmt.Sprintf("Command queued (position %d)", len(a.queue))
		return []Reply{{Session: sess, Result: Result{Replies: []string{reply}}}}
	}

	return a.exec(sess, line)
}

// Release drops any queued commands from sess and, if sess holds exclusive
// access, releases it and drains the queue. Called when a session disconnects.
func (a *Admission) Release(sess *Session) []Reply {
	kept := a.queue[:0]
	for _, p := range a.queue {
		if p.sess != sess {
			kept = append(kept, p)
		}
	}
	a.queue = kept

	if a.owner == sess {
		a.owner = nil
		return a.drain()
	}
	return nil
}

// QueueLen returns the number of commands currently waiting.
func (a *Admission) QueueLen() int { return len(a.queue) }

// Owner returns the session holding exclusive graph access, or nil.
func (a *Admission) Owner() *Session { return a.owner }

func (a *Admission) exec(sess *Session, line string) []Reply {
	res := sess.HandleLine(line)
	out := []Reply{{Session: sess, Result: res}}
	if sess.EnteringPoints() {
		a.owner = sess
	}
	return out
}

func (a *Admission) drain() []Reply {
	var out []Reply
	for a.owner == nil && len(a.queue) > 0 {
		p := a.queue[0]
		a.queue = a.queue[1:]
		out = append(out, a.exec(p.sess, p.line)...)
	}
	return out
}
