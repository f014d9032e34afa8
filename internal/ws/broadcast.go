package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hulld/hulld/internal/geometry"
	"github.com/hulld/hulld/internal/graph"
	"github.com/hulld/hulld/internal/monitor"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans graph events out to every connected observer.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	store   *graph.Store

	snapshotTicker *time.Ticker
	done           chan struct{}
	closeOnce      sync.Once
}

func NewBroadcaster(store *graph.Store, snapshotInterval time.Duration) *Broadcaster {
	b := &Broadcaster{
		clients: make(map[*client]bool),
		store:   store,
		done:    make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// AddClient registers a websocket connection and primes it with a snapshot.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)
	data, _ := json.Marshal(b.snapshotMessage())

	b.mu.Lock()
	b.clients[c] = true
	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}
	b.mu.Unlock()

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// BroadcastArea announces a hull recomputation.
func (b *Broadcaster) BroadcastArea(area float64) {
	b.broadcast(WSMessage{
		Type:    MsgArea,
		Payload: AreaPayload{Area: area},
	})
}

// BroadcastThreshold announces a threshold crossing.
func (b *Broadcaster) BroadcastThreshold(c monitor.Crossing) {
	b.broadcast(WSMessage{
		Type: MsgThreshold,
		Payload: ThresholdPayload{
			Above:   c.Up,
			Area:    c.Area,
			Message: c.Message(),
		},
	})
}

func (b *Broadcaster) snapshotMessage() WSMessage {
	points := b.store.Snapshot()
	return WSMessage{
		Type: MsgSnapshot,
		Payload: SnapshotPayload{
			Points: points,
			Area:   geometry.HullArea(points),
		},
	}
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.snapshotTicker.C:
			b.broadcast(b.snapshotMessage())
		case <-b.done:
			return
		}
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	// Sends happen under the read lock: a client channel is only ever closed
	// under the write lock (RemoveClient, Close), so no send can hit a closed
	// channel. The sends are nonblocking, keeping the critical section short.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		// Client can't keep up, disconnect it
		log.Printf("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close stops the snapshot loop and disconnects every client.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.done)

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			c.close()
		}
		b.mu.Unlock()
	})
}
