package rpc

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// Client is a connection to the daemon's RPC server, serializing
// request/response pairs over one persistent stream.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
	next int64
}

// Dial connects to the daemon at addr (a Unix socket path or host:port).
func Dial(network, addr string) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Call sends req and waits for its matching response; the client holds a
// lock across the round trip, so concurrent Call invocations serialize
// rather than interleave frames on the wire.
func (c *Client) Call(req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req.Version = ProtocolVersion
	req.ID = atomic.AddInt64(&c.next, 1)

	if err := WriteFrame(c.conn, req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := ReadFrame(c.conn, &resp); err != nil {
		return Response{}, err
	}
	if resp.ID != req.ID {
		return Response{}, fmt.Errorf("rpc: response id %d does not match request id %d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("rpc: %s", resp.Error)
	}
	return resp, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
