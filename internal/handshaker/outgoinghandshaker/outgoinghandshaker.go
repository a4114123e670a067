// Package outgoinghandshaker dials a single peer address and performs the
// BitTorrent handshake on its own goroutine, so the torrent actor's select
// loop never blocks on network I/O.
package outgoinghandshaker

import (
	"net"
	"time"

	"github.com/nimbus-bt/nimbus/internal/btconn"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

// Result is posted back to the torrent actor once the dial/handshake
// attempt finishes, successfully or not.
type Result struct {
	Handshaker *OutgoingHandshaker
	Conn       net.Conn
	Extensions peerprotocol.Handshake
	PeerID     [20]byte
	Error      error
}

// OutgoingHandshaker owns one dial attempt to one address.
type OutgoingHandshaker struct {
	Addr       net.Addr
	resultC    chan Result
	closeC     chan struct{}
	dial       func(network, addr string) (net.Conn, error)
	timeout    time.Duration
	infoHash   [20]byte
	ourID      [20]byte
	extensions func() [8]byte
}

// New starts dialing addr in a new goroutine and returns immediately.
// resultC receives exactly one Result when the attempt concludes.
func New(addr net.Addr, infoHash, ourID [20]byte, extensions func() [8]byte, timeout time.Duration, resultC chan Result) *OutgoingHandshaker {
	h := &OutgoingHandshaker{
		Addr:       addr,
		resultC:    resultC,
		closeC:     make(chan struct{}),
		dial:       net.Dial,
		timeout:    timeout,
		infoHash:   infoHash,
		ourID:      ourID,
		extensions: extensions,
	}
	go h.run()
	return h
}

func (h *OutgoingHandshaker) Close() { close(h.closeC) }

func (h *OutgoingHandshaker) run() {
	conn, err := h.dial(h.Addr.Network(), h.Addr.String())
	if err != nil {
		h.resultC <- Result{Handshaker: h, Error: err}
		return
	}

	rwConn, remote, err := btconn.Dial(conn, h.timeout, h.infoHash, h.ourID, h.extensions)
	if err != nil {
		conn.Close()
		h.resultC <- Result{Handshaker: h, Error: err}
		return
	}

	select {
	case h.resultC <- Result{Handshaker: h, Conn: rwConn, Extensions: remote, PeerID: remote.PeerID}:
	case <-h.closeC:
		rwConn.Close()
	}
}
