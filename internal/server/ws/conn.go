package ws

import (
	"context"
	"sync"
	"time"

	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	outboundQueueSize = 64
	writeWait         = 10 * time.Second
)

// Conn is one client connection. It implements presence.Session and
// session.Session: events are queued on a buffered channel drained by a
// single writer goroutine, so Send never blocks and is safe from any
// goroutine. A full queue or a closed connection drops the frame.
//
// A fresh Conn is gated: live events are held back until the history batch
// has been queued, so the client always observes replay before live traffic.
type Conn struct {
	id     string
	sock   *websocket.Conn
	logger logging.Logger

	out  chan wire.Frame
	done chan struct{}

	mu      sync.Mutex
	gated   bool
	pending []wire.Frame

	closeOnce sync.Once
}

func newConn(sock *websocket.Conn, l logging.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		sock:   sock,
		logger: l.With("sid", id),
		out:    make(chan wire.Frame, outboundQueueSize),
		done:   make(chan struct{}),
		gated:  true,
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues a live event for delivery. While the connection is still
// gated the frame is parked until SendHistory releases it.
func (c *Conn) Send(event string, payload any) {
	frame, err := wire.NewFrame(event, payload)
	if err != nil {
		c.logger.Error(context.Background(), "encode frame", "event", event, "error", err.Error())
		return
	}

	c.mu.Lock()
	if c.gated {
		c.pending = append(c.pending, frame)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.enqueue(frame)
}

// SendHistory queues the replay batch, then releases any live events that
// arrived since registration, preserving their order behind the batch.
func (c *Conn) SendHistory(packets []wire.Packet) {
	frame, err := wire.NewFrame(wire.EventHistoryPackets, packets)
	if err != nil {
		c.logger.Error(context.Background(), "encode history", "error", err.Error())
		return
	}

	c.mu.Lock()
	parked := c.pending
	c.pending = nil
	c.gated = false
	c.mu.Unlock()

	c.enqueue(frame)
	for _, f := range parked {
		c.enqueue(f)
	}
}

func (c *Conn) enqueue(f wire.Frame) {
	select {
	case c.out <- f:
	case <-c.done:
	default:
		c.logger.Warn(context.Background(), "outbound queue full, frame dropped", "event", f.Event)
	}
}

// writePump drains the outbound queue onto the socket. It is the only
// goroutine writing to the socket.
func (c *Conn) writePump() {
	for {
		select {
		case frame := <-c.out:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(frame); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close shuts the connection down. Safe to call more than once; pending
// sends become no-ops.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}
