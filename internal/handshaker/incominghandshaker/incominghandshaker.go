// Package incominghandshaker completes the BitTorrent handshake on an
// already-accepted net.Conn, on its own goroutine.
package incominghandshaker

import (
	"net"
	"time"

	"github.com/nimbus-bt/nimbus/internal/btconn"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

// Result is posted back once the handshake concludes, successfully or not.
type Result struct {
	Handshaker *IncomingHandshaker
	Conn       net.Conn
	Extensions peerprotocol.Handshake
	InfoHash   [20]byte
	PeerID     [20]byte
	Error      error
}

// IncomingHandshaker owns the handshake on one freshly accepted connection.
type IncomingHandshaker struct {
	Conn    net.Conn
	resultC chan Result
	closeC  chan struct{}
}

// New starts the handshake in a new goroutine and returns immediately.
// hasTorrent resolves whether we are serving the info hash the remote
// requests; ourID/extensions identify us once that info hash is accepted.
func New(conn net.Conn, ourID [20]byte, extensions func() [8]byte, hasTorrent func([20]byte) bool, timeout time.Duration, resultC chan Result) *IncomingHandshaker {
	h := &IncomingHandshaker{Conn: conn, resultC: resultC, closeC: make(chan struct{})}
	go h.run(ourID, extensions, hasTorrent, timeout)
	return h
}

func (h *IncomingHandshaker) Close() { close(h.closeC) }

func (h *IncomingHandshaker) run(ourID [20]byte, extensions func() [8]byte, hasTorrent func([20]byte) bool, timeout time.Duration) {
	rwConn, remote, infoHash, err := btconn.Accept(h.Conn, timeout, ourID, extensions, hasTorrent)
	if err != nil {
		h.Conn.Close()
		h.resultC <- Result{Handshaker: h, Error: err}
		return
	}

	select {
	case h.resultC <- Result{Handshaker: h, Conn: rwConn, Extensions: remote, InfoHash: infoHash, PeerID: remote.PeerID}:
	case <-h.closeC:
		rwConn.Close()
	}
}
