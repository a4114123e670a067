package session

import (
	"time"

	"github.com/nimbus-bt/nimbus/internal/addrlist"
	"github.com/nimbus-bt/nimbus/internal/handshaker/incominghandshaker"
	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
	"github.com/nimbus-bt/nimbus/internal/resumer"
)

// Run is the coordinator's single goroutine: every field on t is read and
// written only from here, so nothing below needs a lock.
func (t *torrent) Run() {
	defer close(t.doneC)
	defer t.shutdown()

	t.start()

	dialTicker := time.NewTicker(5 * time.Second)
	defer dialTicker.Stop()
	unchokeTicker := time.NewTicker(t.cfg.UnchokeInterval)
	defer unchokeTicker.Stop()
	optimisticTicker := time.NewTicker(t.cfg.OptimisticUnchokeInterval)
	defer optimisticTicker.Stop()
	speedTicker := time.NewTicker(t.cfg.SpeedCounterInterval)
	defer speedTicker.Stop()
	statsTicker := time.NewTicker(t.cfg.StatsWriteInterval)
	defer statsTicker.Stop()
	blockTimeoutTicker := time.NewTicker(5 * time.Second)
	defer blockTimeoutTicker.Stop()

	for {
		select {
		case cmd := <-t.commandC:
			if t.handleCommand(cmd) {
				return
			}

		case ev := <-t.peerEvents:
			t.handlePeerEvent(ev)

		case res := <-t.outgoingResultC:
			t.handleOutgoingResult(res)

		case res := <-t.incomingResultC:
			t.handleIncomingHandshakeResult(res)

		case res := <-t.allocResultC:
			t.handleAllocResult(res)

		case res := <-t.verifyResultC:
			t.handleVerifyResult(res)

		case res := <-t.writeResultC:
			t.handleWriteResult(res)

		case ar := <-t.announceResultC:
			t.handleAnnounceResult(ar)
			t.dialMore()

		case <-dialTicker.C:
			if !t.paused {
				t.dialMore()
			}

		case <-unchokeTicker.C:
			if !t.paused {
				t.tickUnchoke()
			}

		case <-optimisticTicker.C:
			if !t.paused {
				t.tickOptimisticUnchoke()
			}

		case <-speedTicker.C:
			t.tickSpeed()

		case <-statsTicker.C:
			t.persist()

		case <-blockTimeoutTicker.C:
			if !t.paused {
				t.checkBlockTimeouts()
			}

		case <-t.closeC:
			return
		}
	}
}

// handleCommand applies one UI-facing command; it returns true when the
// coordinator should stop its loop (cmdQuit).
func (t *torrent) handleCommand(cmd command) bool {
	switch c := cmd.(type) {
	case cmdPause:
		t.paused = true
		for _, p := range t.peers {
			_ = p.SendNotInterested()
		}
	case cmdResume:
		t.paused = false
		for _, p := range t.peers {
			t.updateInterest(p)
		}
	case cmdStats:
		c.reply <- t.snapshot()
	case cmdPeers:
		c.reply <- t.peerInfos()
	case cmdTrackers:
		c.reply <- t.trackerInfos()
	case cmdAddPeers:
		t.pushDiscoveredAddrs(parseAddrs(c.addrs), addrlist.SourceManual)
		t.dialMore()
	case cmdQuit:
		close(c.reply)
		return true
	}
	return false
}

// handlePeerEvent reacts to one decoded wire event from a connected peer,
// dispatched by kind.
func (t *torrent) handlePeerEvent(ev peer.Event) {
	p := ev.Peer
	switch ev.Kind {
	case peer.EventDisconnected:
		t.removePeer(p)

	case peer.EventChoke:
		t.handleChokeEvent(p)

	case peer.EventUnchoke:
		if !t.paused {
			t.assignPiece(p)
		}

	case peer.EventInterested, peer.EventNotInterested:
		// Choking decisions are made on the unchoke ticker, not per event.

	case peer.EventHave:
		if t.picker != nil {
			t.picker.HandleHave(int(ev.Have))
		}
		if !t.paused {
			t.updateInterest(p)
			t.assignPiece(p)
		}

	case peer.EventBitfield:
		if t.picker != nil {
			t.picker.HandleBitfield(p.Bitfield)
		}
		if !t.paused {
			t.updateInterest(p)
			t.assignPiece(p)
		}

	case peer.EventRequest:
		t.handleBlockRequest(p, ev.Block)

	case peer.EventPiece:
		t.handlePieceMessage(p, ev.Piece)
		if !t.paused {
			t.assignPiece(p)
		}

	case peer.EventCancel:
		// Outstanding upload reads for this block, if any, are left to
		// finish; BitTorrent cancels are a courtesy, not a guarantee.

	case peer.EventExtensionHandshake:
		if !t.paused {
			t.startMetadataDownload(p)
		}

	case peer.EventMetadataRequest:
		t.handleMetadataRequest(p, ev.Meta)

	case peer.EventMetadataData:
		t.handleMetadataData(p, ev.Meta)

	case peer.EventMetadataReject:
		t.handleMetadataReject(p)
	}
}

func (t *torrent) handleIncomingHandshakeResult(res incominghandshaker.Result) {
	if res.Error != nil {
		t.log.Debugln("incoming handshake failed:", res.Error)
		return
	}
	t.handleIncomingResult(res.Conn, res.PeerID, res.Extensions.Extensions)
}

// handleBlockRequest serves one upload request by reading the requested
// block from the piece cache and sending it back, unless we are currently
// choking this peer.
func (t *torrent) handleBlockRequest(p *peer.Peer, req peerprotocol.RequestMessage) {
	if p.AmChoking || t.disk == nil {
		return
	}
	data, err := t.disk.ReadBlock(req.Index, req.Begin, req.Length)
	if err != nil {
		return
	}
	t.bytesUploaded += int64(len(data))
	_ = p.SendPiece(req.Index, req.Begin, data)
}

// handleMetadataRequest answers a ut_metadata request for one piece of our
// own info dict, rejecting it if we don't have the info yet ourselves.
func (t *torrent) handleMetadataRequest(p *peer.Peer, m peerprotocol.ExtensionMetadataMessage) {
	extID, ok := p.SupportsMetadataExtension()
	if !ok {
		return
	}
	if t.info == nil {
		_ = p.SendMetadataReject(extID, m.Piece)
		return
	}
	const pieceLen = 16 * 1024
	begin := int(m.Piece) * pieceLen
	if begin >= len(t.info.Bytes) {
		_ = p.SendMetadataReject(extID, m.Piece)
		return
	}
	end := begin + pieceLen
	if end > len(t.info.Bytes) {
		end = len(t.info.Bytes)
	}
	_ = p.SendMetadataData(extID, m.Piece, uint32(len(t.info.Bytes)), t.info.Bytes[begin:end])
}

// shutdown tears down every goroutine and connection this torrent owns.
func (t *torrent) shutdown() {
	for _, h := range t.outgoing {
		h.Close()
	}
	for _, p := range t.peers {
		p.Close()
	}
	t.stopAnnouncers()
	if t.disk != nil {
		t.disk.Close()
	}
	t.persist()
}

// persist writes the current resume Spec so a restart can skip
// re-verifying every piece.
func (t *torrent) persist() {
	if t.resumer == nil {
		return
	}
	spec := resumer.Spec{
		InfoHash:        t.infoHash[:],
		Name:            t.name,
		Port:            int(t.cfg.PeerPort),
		Trackers:        t.trackerURLs,
		DataDir:         t.dataDir,
		Paused:          t.paused,
		BytesDownloaded: t.bytesDownloaded,
		BytesUploaded:   t.bytesUploaded,
	}
	if t.bitfield != nil {
		spec.Bitfield = t.bitfield.Bytes()
	}
	if t.info != nil {
		spec.Info = t.info.Bytes
	}
	_ = t.resumer.Write(t.infoHashHex(), spec)
}
