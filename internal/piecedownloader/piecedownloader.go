// Package piecedownloader pipelines block requests for a single piece to a
// single peer, keeping a bounded number of requests outstanding at once.
package piecedownloader

import (
	"time"

	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/piece"
)

// MaxQueuedBlocks bounds how many block requests may be outstanding to one
// peer for one piece at a time, keeping the pipeline full without letting
// an unresponsive peer accumulate an unbounded backlog.
const MaxQueuedBlocks = 10

// BlockTimeout is how long we wait for a requested block before
// TimedOutBlocks reports it.
const BlockTimeout = 30 * time.Second

// PieceDownloader drives the request/response pipeline for one piece
// against one peer. The torrent coordinator owns one per active piece
// assignment and feeds it Piece events as they arrive.
type PieceDownloader struct {
	Piece  piece.Piece
	Peer   *peer.Peer

	requested map[uint32]time.Time
	pending   []piece.Block
	next      int

	buf []byte
}

// New creates a downloader for p against the given peer.
func New(p piece.Piece, pr *peer.Peer) *PieceDownloader {
	return &PieceDownloader{
		Piece:     p,
		Peer:      pr,
		requested: make(map[uint32]time.Time),
		pending:   append([]piece.Block(nil), p.Blocks...),
		buf:       make([]byte, p.Length),
	}
}

// RequestBlocks sends as many requests as fit under MaxQueuedBlocks and
// returns the number newly sent.
func (d *PieceDownloader) RequestBlocks() (int, error) {
	sent := 0
	for len(d.requested) < MaxQueuedBlocks && d.next < len(d.pending) {
		b := d.pending[d.next]
		if err := d.Peer.SendRequest(b.Index, b.Begin, b.Length); err != nil {
			return sent, err
		}
		d.requested[b.Begin] = time.Now()
		d.next++
		sent++
	}
	return sent, nil
}

// GotBlock records a received block's bytes. done reports whether every
// block of the piece has now arrived.
func (d *PieceDownloader) GotBlock(begin uint32, data []byte) (done bool, ok bool) {
	if _, pending := d.requested[begin]; !pending {
		return false, false
	}
	copy(d.buf[begin:], data)
	delete(d.requested, begin)
	return d.next >= len(d.pending) && len(d.requested) == 0, true
}

// Bytes returns the assembled piece data; valid only once GotBlock reports
// done.
func (d *PieceDownloader) Bytes() []byte { return d.buf }

// Choked re-queues every outstanding request so a future RequestBlocks call
// (against this peer, once unchoked, or implicitly abandoned by the
// coordinator) starts over.
func (d *PieceDownloader) Choked() {
	d.next = 0
	d.pending = append([]piece.Block(nil), d.Piece.Blocks...)
	d.requested = make(map[uint32]time.Time)
}

// TimedOutBlocks returns begin-offsets of blocks requested longer ago than
// BlockTimeout, for the coordinator to Release and request again.
func (d *PieceDownloader) TimedOutBlocks(now time.Time) []uint32 {
	var out []uint32
	for begin, at := range d.requested {
		if now.Sub(at) > BlockTimeout {
			out = append(out, begin)
		}
	}
	return out
}

// Release puts a timed-out block back into the pool so the next
// RequestBlocks call retries it. A no-op if begin isn't currently
// outstanding.
func (d *PieceDownloader) Release(begin uint32) {
	if _, ok := d.requested[begin]; !ok {
		return
	}
	delete(d.requested, begin)
	for _, b := range d.Piece.Blocks {
		if b.Begin == begin {
			d.pending = append(d.pending, b)
			return
		}
	}
}

// Requested returns every block currently outstanding, for the coordinator
// to send Cancel messages when another peer's copy of the same piece wins
// an endgame race.
func (d *PieceDownloader) Requested() []piece.Block {
	out := make([]piece.Block, 0, len(d.requested))
	for _, b := range d.Piece.Blocks {
		if _, ok := d.requested[b.Begin]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Outstanding reports how many blocks are currently requested but unanswered.
func (d *PieceDownloader) Outstanding() int { return len(d.requested) }
