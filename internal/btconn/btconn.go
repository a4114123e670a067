// Package btconn performs the outgoing/incoming BitTorrent handshake over a
// freshly dialed or accepted net.Conn and hands back a validated connection.
package btconn

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

// ErrInfoHashMismatch is returned when the remote's handshake carries an
// info hash different from the one we dialed for.
var ErrInfoHashMismatch = errors.New("btconn: info hash mismatch")

// ErrOwnConnection is returned when the remote's peer id matches ours,
// meaning we connected to ourselves (e.g. via a loopback tracker entry).
var ErrOwnConnection = errors.New("btconn: connected to self")

// rwConn pairs a net.Conn with a buffered reader so handshake bytes already
// peeked for framing are not lost to the next reader.
type rwConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *rwConn) Read(p []byte) (int, error) { return c.r.Read(p) }

// Dial performs the outgoing handshake: we send our handshake first, then
// validate the remote's. The remote's handshake must carry the same
// infoHash we sent.
func Dial(conn net.Conn, timeout time.Duration, infoHash, ourID [20]byte, ourExtensions func() [8]byte) (net.Conn, peerprotocol.Handshake, error) {
	_ = conn.SetDeadline(time.Now().Add(timeout))
	defer conn.SetDeadline(time.Time{})

	h := peerprotocol.NewHandshake(infoHash, ourID)
	if ourExtensions != nil {
		h.Extensions = ourExtensions()
	}
	if err := peerprotocol.WriteHandshake(conn, h); err != nil {
		return nil, peerprotocol.Handshake{}, err
	}

	br := bufio.NewReader(conn)
	remote, err := peerprotocol.ReadHandshake(br)
	if err != nil {
		return nil, peerprotocol.Handshake{}, err
	}
	if remote.InfoHash != infoHash {
		return nil, peerprotocol.Handshake{}, ErrInfoHashMismatch
	}
	if remote.PeerID == ourID {
		return nil, peerprotocol.Handshake{}, ErrOwnConnection
	}
	return &rwConn{Conn: conn, r: br}, remote, nil
}

// Accept performs the incoming handshake: we must read the remote's
// handshake first to learn which info hash it wants, consult hasTorrent to
// accept or reject it, then answer with our own handshake for that torrent.
func Accept(conn net.Conn, timeout time.Duration, ourID [20]byte, ourExtensions func() [8]byte, hasTorrent func(infoHash [20]byte) bool) (net.Conn, peerprotocol.Handshake, [20]byte, error) {
	_ = conn.SetDeadline(time.Now().Add(timeout))
	defer conn.SetDeadline(time.Time{})

	br := bufio.NewReader(conn)
	remote, err := peerprotocol.ReadHandshake(br)
	if err != nil {
		return nil, peerprotocol.Handshake{}, [20]byte{}, err
	}
	if !hasTorrent(remote.InfoHash) {
		return nil, peerprotocol.Handshake{}, [20]byte{}, fmt.Errorf("btconn: unknown info hash %x", remote.InfoHash)
	}
	if remote.PeerID == ourID {
		return nil, peerprotocol.Handshake{}, [20]byte{}, ErrOwnConnection
	}

	h := peerprotocol.NewHandshake(remote.InfoHash, ourID)
	if ourExtensions != nil {
		h.Extensions = ourExtensions()
	}
	if err := peerprotocol.WriteHandshake(conn, h); err != nil {
		return nil, peerprotocol.Handshake{}, [20]byte{}, err
	}
	return &rwConn{Conn: conn, r: br}, remote, remote.InfoHash, nil
}
