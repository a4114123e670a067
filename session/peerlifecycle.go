package session

import (
	"net"

	"github.com/nimbus-bt/nimbus/internal/addrlist"
	"github.com/nimbus-bt/nimbus/internal/handshaker/outgoinghandshaker"
	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/peerconn"
)

// messagesCap bounds how many decoded wire messages a peer connection
// buffers before its read loop blocks, matching the actor-channel capacity
// used across the rest of the pipeline.
const messagesCap = 300

// dialMore starts outgoing handshakes against queued addresses until
// either the queue empties or MaxPeersPerTorrent connections (established
// plus in flight) is reached.
func (t *torrent) dialMore() {
	limit := t.cfg.MaxPeersPerTorrent
	inFlight := len(t.peers) + len(t.outgoing)
	for inFlight < limit {
		addr, _, ok := t.addrs.Pop()
		if !ok {
			return
		}
		h := outgoinghandshaker.New(addr, t.infoHash, t.ourID, t.ourExtensions, t.cfg.HandshakeTimeout, t.outgoingResultC)
		t.outgoing[addr.String()] = h
		inFlight++
	}
}

func (t *torrent) handleOutgoingResult(res outgoinghandshaker.Result) {
	delete(t.outgoing, res.Handshaker.Addr.String())
	if res.Error != nil {
		t.log.Debugln("outgoing handshake failed:", res.Error)
		return
	}
	t.addPeer(res.Conn, res.PeerID, res.Extensions.Extensions)
}

// handleIncomingResult completes handshakes accepted by the session's
// shared listener and routed here once the requested info hash matched
// this torrent.
func (t *torrent) handleIncomingResult(conn net.Conn, peerID [20]byte, extensions [8]byte) {
	t.addPeer(conn, peerID, extensions)
}

func (t *torrent) addPeer(conn net.Conn, peerID [20]byte, extensions [8]byte) {
	key := conn.RemoteAddr().String()
	if _, ok := t.peers[key]; ok {
		conn.Close()
		return
	}
	numPieces := 0
	if t.info != nil {
		numPieces = int(t.info.NumPieces)
	}
	pc := peerconn.New(conn, messagesCap)
	p := peer.New(pc, peerID, conn.RemoteAddr(), numPieces, t.log)
	p.PeerExtensionBitfield = extensions
	t.peers[key] = p
	go p.Run(t.peerEvents)

	if t.bitfield != nil {
		_ = p.SendBitfield(t.bitfield)
	}
	// We always set our own extension-protocol bit (ourExtensions), so the
	// handshake only goes out when the peer's side also declared it.
	if !t.hasInfo() && p.SupportsExtensionProtocol() {
		_ = p.SendExtensionHandshake(0, "", "")
	}
}

func (t *torrent) removePeer(p *peer.Peer) {
	key := p.Addr.String()
	delete(t.peers, key)
	delete(t.strikes, key)
	t.abandonPieceDownload(p)
	for addr, d := range t.infoDownloaders {
		if d.Peer == p {
			delete(t.infoDownloaders, addr)
		}
	}
	if t.bitfield != nil {
		t.picker.HandlePeerGone(p.Bitfield)
	}
	p.Close()
}

// pushDiscoveredAddrs queues addresses a tracker or the AddPeers command
// handed us, deduplicated against what is already queued or connected.
func (t *torrent) pushDiscoveredAddrs(addrs []*net.TCPAddr, source addrlist.Source) {
	for _, a := range addrs {
		if _, connected := t.peers[a.String()]; connected {
			continue
		}
		t.addrs.Push(a, source)
	}
}

func parseAddrs(raw []string) []*net.TCPAddr {
	var out []*net.TCPAddr
	for _, s := range raw {
		a, err := net.ResolveTCPAddr("tcp", s)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}
