package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"time"

	"github.com/hulld/hulld/internal/protocol"
)

// readTimeout bounds each blocking receive so a worker observes shutdown at
// least once per second.
const readTimeout = time.Second

// serveConn drives one session over a blocking connection until the peer
// disconnects, the session requests close, or ctx is cancelled. Used by the
// threads and proactor variants; the reactor variant owns its sockets at the
// fd level instead.
func serveConn(ctx context.Context, conn net.Conn, sess *protocol.Session) {
	if err := writeLines(conn, banner...); err != nil {
		return
	}

	buf := make([]byte, 1024)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := string(pending[:i])
				pending = pending[i+1:]

				res := sess.HandleLine(line)
				if err := writeLines(conn, res.Replies...); err != nil {
					return
				}
				if res.Close {
					return
				}
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// Peer disconnect or socket failure ends only this session.
			return
		}
	}
}

func writeLines(w io.Writer, lines ...string) error {
	for _, line := range lines {
		if _, err := w.Write([]byte(line + "\n")); err != nil {
			return err
		}
	}
	return nil
}
