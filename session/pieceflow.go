package session

import (
	"time"

	"github.com/nimbus-bt/nimbus/internal/infodownloader"
	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/piece"
	"github.com/nimbus-bt/nimbus/internal/piecedownloader"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

// endgame switches piece selection into endgame mode once few enough
// pieces remain that redundant requests are worth the waste, per
// cfg.EndgameThreshold.
func (t *torrent) endgame() bool {
	if t.info == nil {
		return false
	}
	remaining := int(t.info.NumPieces) - t.picker.Downloaded()
	return remaining > 0 && remaining <= t.cfg.EndgameThreshold
}

// updateInterest sets AmInterested on p based on whether it has any piece
// we still want, sending Interested/NotInterested only on change.
func (t *torrent) updateInterest(p *peer.Peer) {
	if t.bitfield == nil {
		return
	}
	want := false
	for i := 0; i < p.Bitfield.Len(); i++ {
		if p.Bitfield.Test(i) && !t.bitfield.Test(i) {
			want = true
			break
		}
	}
	if want {
		_ = p.SendInterested()
	} else {
		_ = p.SendNotInterested()
	}
}

// assignPiece starts a new PieceDownloader against p if it is unchoking us
// and has a piece our picker wants, and we are not already downloading a
// piece from it. In endgame mode the picker may hand back an index another
// peer is already downloading; that's intentional, and pieceDownloaders
// being keyed by peer lets both coexist.
func (t *torrent) assignPiece(p *peer.Peer) {
	if p.PeerChoking || t.info == nil {
		return
	}
	if _, ok := t.pieceDownloaders[p]; ok {
		return
	}
	index, ok := t.picker.Next(p.Bitfield, t.endgame())
	if !ok {
		return
	}
	t.picker.MarkRequested(index)
	pc := piece.New(uint32(index), uint32(t.info.PieceLen(index)), t.info.PieceHash(index))
	d := piecedownloader.New(pc, p)
	t.pieceDownloaders[p] = d
	if _, err := d.RequestBlocks(); err != nil {
		t.abandonPieceDownload(p)
	}
}

// abandonPieceDownload drops p's in-flight piece download. The picker's
// requested flag is only cleared if no other peer is still working the
// same piece, which only happens in endgame.
func (t *torrent) abandonPieceDownload(p *peer.Peer) {
	d, ok := t.pieceDownloaders[p]
	if !ok {
		return
	}
	delete(t.pieceDownloaders, p)
	for _, other := range t.pieceDownloaders {
		if other.Piece.Index == d.Piece.Index {
			return
		}
	}
	t.picker.UnmarkRequested(int(d.Piece.Index))
}

// handlePieceMessage feeds a received block to its PieceDownloader,
// completing and handing the piece to disk once every block has arrived.
// On completion it cancels any other peer racing to deliver the same piece
// in endgame mode.
func (t *torrent) handlePieceMessage(p *peer.Peer, m peerprotocol.PieceMessage) {
	d, ok := t.pieceDownloaders[p]
	if !ok || d.Piece.Index != m.Index {
		return
	}
	done, ok := d.GotBlock(m.Begin, m.Data)
	if !ok {
		return
	}
	t.bytesDownloaded += int64(len(m.Data))
	if !done {
		if sent, err := d.RequestBlocks(); err != nil || sent == 0 {
			return
		}
		return
	}
	delete(t.pieceDownloaders, p)
	t.pieceOwner[int(m.Index)] = p
	t.disk.WritePiece(int(m.Index), d.Bytes())
	t.cancelRivalDownloaders(m.Index, p)
}

// cancelRivalDownloaders sends Cancel for every block still outstanding to
// any other peer that was also downloading index, per spec for an endgame
// cancel race: whichever peer's copy completes first notifies the
// coordinator, which cancels the rest.
func (t *torrent) cancelRivalDownloaders(index uint32, winner *peer.Peer) {
	for p, d := range t.pieceDownloaders {
		if p == winner || d.Piece.Index != index {
			continue
		}
		for _, b := range d.Requested() {
			_ = p.SendCancel(b.Index, b.Begin, b.Length)
		}
		delete(t.pieceDownloaders, p)
	}
}

// handleChokeEvent abandons whatever piece download was in flight against
// a peer that just choked us, so another peer can pick it up.
func (t *torrent) handleChokeEvent(p *peer.Peer) {
	if d, ok := t.pieceDownloaders[p]; ok {
		d.Choked()
		t.abandonPieceDownload(p)
	}
}

// checkBlockTimeouts releases any block that has been outstanding against
// its peer longer than piecedownloader.BlockTimeout, so it can be
// re-requested, per the per-block timeout invariant. A peer that can't
// accept the retry (connection already gone) has its download abandoned so
// another peer can pick the piece up instead.
func (t *torrent) checkBlockTimeouts() {
	now := time.Now()
	for p, d := range t.pieceDownloaders {
		timedOut := d.TimedOutBlocks(now)
		if len(timedOut) == 0 {
			continue
		}
		for _, begin := range timedOut {
			d.Release(begin)
		}
		if _, err := d.RequestBlocks(); err != nil {
			t.abandonPieceDownload(p)
		}
	}
}

// startMetadataDownload begins fetching the info dict from a peer that has
// advertised ut_metadata support, if we don't have the info yet and aren't
// already fetching it from someone else.
func (t *torrent) startMetadataDownload(p *peer.Peer) {
	if t.hasInfo() || p.ExtensionHandshake == nil || p.ExtensionHandshake.MetadataSize == 0 {
		return
	}
	if len(t.infoDownloaders) > 0 {
		return
	}
	if _, ok := p.SupportsMetadataExtension(); !ok {
		return
	}
	d := infodownloader.New(p, uint32(p.ExtensionHandshake.MetadataSize))
	t.infoDownloaders[p.Addr.String()] = d
	_ = d.RequestBlocks()
}

// handleMetadataData feeds one ut_metadata data message to its
// InfoDownloader, and on completion validates and installs the info dict.
func (t *torrent) handleMetadataData(p *peer.Peer, m peerprotocol.ExtensionMetadataMessage) {
	d, ok := t.infoDownloaders[p.Addr.String()]
	if !ok {
		return
	}
	done, err := d.GotBlock(m)
	if err != nil {
		delete(t.infoDownloaders, p.Addr.String())
		return
	}
	if !done {
		return
	}
	delete(t.infoDownloaders, p.Addr.String())
	t.installInfo(d.Bytes())
}

func (t *torrent) handleMetadataReject(p *peer.Peer) {
	delete(t.infoDownloaders, p.Addr.String())
}
