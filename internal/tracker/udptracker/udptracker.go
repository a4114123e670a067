// Package udptracker implements the BEP-15 UDP tracker protocol: a
// connect/announce handshake over a single datagram socket, with the
// spec's increasing-timeout retry schedule.
package udptracker

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/nimbus-bt/nimbus/internal/tracker"
)

const protocolMagic = 0x41727101980

const (
	actionConnect  int32 = 0
	actionAnnounce int32 = 1
	actionError    int32 = 3
)

// maxRetries and the base retry timeout follow BEP-15's suggested backoff:
// 15 * 2^n seconds, capped at 3 attempts for one announce call.
const (
	maxRetries  = 3
	baseTimeout = 15 * time.Second
)

// Tracker announces over a UDP tracker's connect/announce exchange.
type Tracker struct {
	rawURL string
	addr   string
}

// New builds a UDP tracker client for addr (host:port, scheme stripped).
func New(rawURL, addr string) *Tracker {
	return &Tracker{rawURL: rawURL, addr: addr}
}

func (t *Tracker) URL() string { return t.rawURL }

func (t *Tracker) Announce(ctx context.Context, tr tracker.Torrent) (*tracker.Response, error) {
	raddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	connID, err := t.connect(ctx, conn)
	if err != nil {
		return nil, err
	}
	return t.announce(ctx, conn, connID, tr)
}

func (t *Tracker) connect(ctx context.Context, conn *net.UDPConn) (int64, error) {
	txID := rand.Int31()
	req := make([]byte, 16)
	binary.BigEndian.PutUint64(req[0:8], protocolMagic)
	binary.BigEndian.PutUint32(req[8:12], uint32(actionConnect))
	binary.BigEndian.PutUint32(req[12:16], uint32(txID))

	resp, err := t.roundTrip(ctx, conn, req, 16)
	if err != nil {
		return 0, err
	}
	if err := checkHeader(resp, actionConnect, txID); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(resp[8:16])), nil
}

func (t *Tracker) announce(ctx context.Context, conn *net.UDPConn, connID int64, tr tracker.Torrent) (*tracker.Response, error) {
	txID := rand.Int31()
	req := make([]byte, 98)
	binary.BigEndian.PutUint64(req[0:8], uint64(connID))
	binary.BigEndian.PutUint32(req[8:12], uint32(actionAnnounce))
	binary.BigEndian.PutUint32(req[12:16], uint32(txID))
	copy(req[16:36], tr.InfoHash[:])
	copy(req[36:56], tr.PeerID[:])
	binary.BigEndian.PutUint64(req[56:64], uint64(tr.BytesDownloaded))
	binary.BigEndian.PutUint64(req[64:72], uint64(tr.BytesLeft))
	binary.BigEndian.PutUint64(req[72:80], uint64(tr.BytesUploaded))
	binary.BigEndian.PutUint32(req[80:84], uint32(tr.Event))
	// IP address: 0 lets the tracker use the packet's source address.
	binary.BigEndian.PutUint32(req[84:88], 0)
	binary.BigEndian.PutUint32(req[88:92], uint32(rand.Int31()))
	numWant := tr.NumWant
	if numWant == 0 {
		numWant = -1
	}
	binary.BigEndian.PutUint32(req[92:96], uint32(numWant))
	binary.BigEndian.PutUint16(req[96:98], tr.Port)

	resp, err := t.roundTrip(ctx, conn, req, 20)
	if err != nil {
		return nil, err
	}
	if err := checkHeader(resp, actionAnnounce, txID); err != nil {
		return nil, err
	}

	interval := int32(binary.BigEndian.Uint32(resp[8:12]))
	leechers := int32(binary.BigEndian.Uint32(resp[12:16]))
	seeders := int32(binary.BigEndian.Uint32(resp[16:20]))

	peerBytes := resp[20:]
	if len(peerBytes)%6 != 0 {
		return nil, fmt.Errorf("udptracker: peer list length %d not a multiple of 6", len(peerBytes))
	}
	peers := make([]*net.TCPAddr, 0, len(peerBytes)/6)
	for i := 0; i < len(peerBytes); i += 6 {
		ip := net.IP(peerBytes[i : i+4])
		port := int(binary.BigEndian.Uint16(peerBytes[i+4 : i+6]))
		peers = append(peers, &net.TCPAddr{IP: ip, Port: port})
	}

	return &tracker.Response{Interval: interval, Leechers: leechers, Seeders: seeders, Peers: peers}, nil
}

// roundTrip sends req and waits for a response of at least minLen bytes,
// retrying up to maxRetries times with BEP-15's doubling timeout.
func (t *Tracker) roundTrip(ctx context.Context, conn *net.UDPConn, req []byte, minLen int) ([]byte, error) {
	buf := make([]byte, 2048)
	timeout := baseTimeout
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, err := conn.Write(req); err != nil {
			return nil, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := conn.Read(buf)
		if err != nil {
			lastErr = err
			timeout *= 2
			continue
		}
		if n < minLen {
			lastErr = fmt.Errorf("udptracker: short response (%d bytes)", n)
			continue
		}
		out := make([]byte, n)
		copy(out, buf[:n])
		return out, nil
	}
	return nil, fmt.Errorf("udptracker: giving up after %d attempts: %w", maxRetries, lastErr)
}

func checkHeader(resp []byte, wantAction int32, wantTxID int32) error {
	action := int32(binary.BigEndian.Uint32(resp[0:4]))
	txID := int32(binary.BigEndian.Uint32(resp[4:8]))
	if txID != wantTxID {
		return fmt.Errorf("udptracker: transaction id mismatch")
	}
	if action == actionError {
		return fmt.Errorf("udptracker: tracker error: %s", string(resp[8:]))
	}
	if action != wantAction {
		return fmt.Errorf("udptracker: unexpected action %d", action)
	}
	return nil
}
