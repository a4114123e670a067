// Package peerconn turns a handshaked net.Conn into a pair of goroutines
// that decode incoming wire messages onto a channel and serialize outgoing
// ones from a channel, so the owning peer actor never touches the socket
// directly.
package peerconn

import (
	"net"
	"sync"

	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

// Conn reads and writes framed peer-protocol messages over an underlying
// net.Conn on dedicated goroutines.
type Conn struct {
	net.Conn

	Messages chan peerprotocol.Message
	writeC   chan peerprotocol.Message
	stopC    chan struct{}
	stopOnce sync.Once
	doneC    chan struct{}
}

// New wraps conn and starts its reader and writer goroutines. messagesCap
// bounds how many decoded messages may queue before the reader blocks,
// providing backpressure against a fast peer and a slow owner.
func New(conn net.Conn, messagesCap int) *Conn {
	c := &Conn{
		Conn:     conn,
		Messages: make(chan peerprotocol.Message, messagesCap),
		writeC:   make(chan peerprotocol.Message, messagesCap),
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Send queues m for writing. It does not block on the network; it blocks
// only if the internal write queue is full, applying backpressure to the
// caller rather than silently dropping messages.
func (c *Conn) Send(m peerprotocol.Message) error {
	select {
	case c.writeC <- m:
		return nil
	case <-c.stopC:
		return net.ErrClosed
	}
}

// Close stops both goroutines and closes the underlying connection.
func (c *Conn) Close() error {
	c.stopOnce.Do(func() { close(c.stopC) })
	err := c.Conn.Close()
	<-c.doneC
	return err
}

func (c *Conn) readLoop() {
	defer close(c.Messages)
	for {
		m, err := peerprotocol.ReadMessage(c.Conn)
		if err != nil {
			return
		}
		if m == nil {
			continue // keep-alive
		}
		select {
		case c.Messages <- m:
		case <-c.stopC:
			return
		}
	}
}

func (c *Conn) writeLoop() {
	defer close(c.doneC)
	for {
		select {
		case m := <-c.writeC:
			if err := peerprotocol.WriteMessage(c.Conn, m); err != nil {
				return
			}
		case <-c.stopC:
			return
		}
	}
}
