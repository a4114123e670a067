package session

import (
	"errors"

	"github.com/nimbus-bt/nimbus/internal/allocator"
	"github.com/nimbus-bt/nimbus/internal/bitfield"
	"github.com/nimbus-bt/nimbus/internal/disk"
	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/piecepicker"
	"github.com/nimbus-bt/nimbus/internal/piecewriter"
	"github.com/nimbus-bt/nimbus/internal/tracker"
	"github.com/nimbus-bt/nimbus/internal/verifier"
)

var errInfoHashMismatch = errors.New("session: assembled info dict does not hash to the requested info hash")

// installInfo is called once the info dict is known, either because the
// torrent was added from a .torrent file or because BEP-9 metadata
// exchange just finished. It begins allocating storage.
func (t *torrent) installInfo(infoBytes []byte) {
	if !metainfo.VerifyHash(infoBytes, t.infoHash) {
		t.fail(errInfoHashMismatch)
		return
	}
	info, err := metainfo.NewInfo(infoBytes)
	if err != nil {
		t.fail(err)
		return
	}
	t.info = info
	t.name = info.Name
	t.startAllocation()
}

// startAllocation begins on-disk storage allocation, the first stage of
// the disk pipeline shared by torrents whose info was known at creation
// and torrents that just finished BEP-9 metadata exchange.
func (t *torrent) startAllocation() {
	t.status = StatusConnectingTrackers
	allocator.New(t.dataDir, t.info, make(chan allocator.Progress, 1), t.allocResultC)
}

func (t *torrent) handleAllocResult(res allocator.Result) {
	if res.Error != nil {
		t.fail(res.Error)
		return
	}
	t.disk = disk.New(t.info, res.Storage, t.cfg.PieceCacheBytes, t.writeResultC, t.cfg.RequestQueueLength*4)
	if t.resumed {
		// A resumed torrent trusts its persisted bitfield rather than
		// re-hashing every piece on every restart.
		t.finalizeReady()
		return
	}
	verifier.New(t.info, res.Storage, make(chan verifier.Progress, 1), t.verifyResultC)
}

func (t *torrent) handleVerifyResult(res verifier.Result) {
	if res.Error != nil {
		t.fail(res.Error)
		return
	}
	t.bitfield = res.Bitfield
	t.picker = newPickerFromBitfield(int(t.info.NumPieces), t.bitfield)
	t.finalizeReady()
}

// finalizeReady announces the now-known bitfield to connected peers and
// starts tracker announcing, common to both the freshly-verified path and
// the trust-the-resume-bitfield path.
func (t *torrent) finalizeReady() {
	if t.bitfield.All() {
		t.status = StatusSeeding
	} else {
		t.status = StatusDownloading
	}
	for _, p := range t.peers {
		_ = p.SendBitfield(t.bitfield)
		t.updateInterest(p)
	}
	t.startAnnouncing()
}

// handleWriteResult installs a freshly written piece into the bitfield and
// the swarm's view of what we have, or strikes the contributing peer when
// the hash didn't match what the torrent promised.
func (t *torrent) handleWriteResult(res piecewriter.Result) {
	owner := t.pieceOwner[res.Index]
	delete(t.pieceOwner, res.Index)

	if !res.Ok || res.Error != nil {
		t.picker.UnmarkRequested(res.Index)
		if owner != nil {
			t.strikePeer(owner)
		}
		return
	}
	t.bitfield.Set(res.Index)
	t.picker.MarkDone(res.Index)
	for _, p := range t.peers {
		_ = p.SendHave(uint32(res.Index))
	}
	if t.bitfield.All() && t.status != StatusSeeding {
		t.status = StatusSeeding
		for _, p := range t.peers {
			_ = p.SendNotInterested()
		}
		for _, a := range t.announcers {
			a.Announce(tracker.EventCompleted)
		}
	}
}

// strikePeer records one integrity-error strike against a peer that
// contributed a piece whose hash didn't match; after IntegrityErrorStrikes
// strikes the peer is dropped.
func (t *torrent) strikePeer(p *peer.Peer) {
	key := p.Addr.String()
	t.strikes[key]++
	if t.strikes[key] >= t.cfg.IntegrityErrorStrikes {
		delete(t.strikes, key)
		t.removePeer(p)
	}
}

func newPickerFromBitfield(numPieces int, bf *bitfield.Bitfield) *piecepicker.PiecePicker {
	p := piecepicker.New(numPieces)
	for i := 0; i < numPieces; i++ {
		if bf.Test(i) {
			p.MarkDone(i)
		}
	}
	return p
}
