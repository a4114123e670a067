// Package piecepicker implements rarest-first piece selection with a
// random-first-4 cold-start phase and an endgame mode for the final blocks.
package piecepicker

import (
	"math/rand"
	"sync"

	"github.com/nimbus-bt/nimbus/internal/bitfield"
)

// RandomFirstN is how many pieces are chosen at random, rather than by
// rarity, before switching to strict rarest-first. A freshly started
// download has no rarity signal yet and randomizing the first few pieces
// avoids every peer racing for the same single rarest piece.
const RandomFirstN = 4

// PiecePicker tracks, per piece, how many connected peers have it, and
// selects which piece to request next. It is owned by the torrent
// coordinator and is not safe for concurrent use from multiple goroutines
// beyond the RWMutex-protected read path.
type PiecePicker struct {
	mu sync.RWMutex

	availability []int
	done         []bool
	requested    []bool

	downloaded int
}

// New creates a picker for a torrent with the given piece count.
func New(numPieces int) *PiecePicker {
	return &PiecePicker{
		availability: make([]int, numPieces),
		done:         make([]bool, numPieces),
		requested:    make([]bool, numPieces),
	}
}

// HandleHave records that a peer now has one more piece.
func (p *PiecePicker) HandleHave(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availability[index]++
}

// HandleBitfield records that a peer has every piece set in bf.
func (p *PiecePicker) HandleBitfield(bf *bitfield.Bitfield) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < bf.Len(); i++ {
		if bf.Test(i) {
			p.availability[i]++
		}
	}
}

// HandlePeerGone decrements availability for every piece the disconnecting
// peer had, per its last known bitfield.
func (p *PiecePicker) HandlePeerGone(bf *bitfield.Bitfield) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < bf.Len(); i++ {
		if bf.Test(i) && p.availability[i] > 0 {
			p.availability[i]--
		}
	}
}

// MarkDone records a piece as verified and no longer a candidate.
func (p *PiecePicker) MarkDone(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done[index] = true
	p.downloaded++
}

// MarkRequested/UnmarkRequested track which pieces already have an
// in-flight downloader, so non-endgame picks don't double-assign a piece.
func (p *PiecePicker) MarkRequested(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested[index] = true
}

func (p *PiecePicker) UnmarkRequested(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested[index] = false
}

// Next picks the next piece index to request from a peer with the given
// bitfield. endgame relaxes the not-already-requested constraint so the
// last few blocks can be requested from multiple peers at once. ok is
// false when the peer has nothing left we want.
func (p *PiecePicker) Next(peerBitfield *bitfield.Bitfield, endgame bool) (index int, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !endgame && p.downloaded < RandomFirstN {
		return p.pickRandom(peerBitfield)
	}
	return p.pickRarest(peerBitfield, endgame)
}

func (p *PiecePicker) pickRandom(peerBitfield *bitfield.Bitfield) (int, bool) {
	var candidates []int
	for i := 0; i < len(p.done); i++ {
		if p.wanted(i, false) && peerBitfield.Test(i) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[rand.Intn(len(candidates))], true
}

func (p *PiecePicker) pickRarest(peerBitfield *bitfield.Bitfield, endgame bool) (int, bool) {
	best := -1
	bestAvail := 0
	for i := 0; i < len(p.done); i++ {
		if !p.wanted(i, endgame) || !peerBitfield.Test(i) {
			continue
		}
		if best == -1 || p.availability[i] < bestAvail {
			best = i
			bestAvail = p.availability[i]
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func (p *PiecePicker) wanted(index int, endgame bool) bool {
	if p.done[index] {
		return false
	}
	if endgame {
		return true
	}
	return !p.requested[index]
}

// Downloaded returns how many pieces have been verified so far.
func (p *PiecePicker) Downloaded() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.downloaded
}
