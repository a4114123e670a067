package session

import (
	"math/rand"
	"sort"

	"github.com/nimbus-bt/nimbus/internal/peer"
)

// tickUnchoke runs the tit-for-tat choking algorithm: the cfg.UnchokedPeers
// interested peers with the best download rate (or, when seeding, upload
// rate) stay unchoked; every other interested peer that is not an
// optimistic unchoke gets choked, and peers that are not interested keep
// their current choke state.
func (t *torrent) tickUnchoke() {
	var candidates []*peer.Peer
	for _, p := range t.peers {
		if p.PeerInterested {
			candidates = append(candidates, p)
		}
	}

	seeding := t.status == StatusSeeding
	sort.Slice(candidates, func(i, j int) bool {
		if seeding {
			return candidates[i].UploadRate() > candidates[j].UploadRate()
		}
		return candidates[i].DownloadRate() > candidates[j].DownloadRate()
	})

	for i, p := range candidates {
		if i < t.cfg.UnchokedPeers {
			_ = p.SendUnchoke()
		} else if !p.OptimisticUnchoked {
			_ = p.SendChoke()
		}
	}

	for _, p := range t.peers {
		p.ResetChokePeriodCounters()
	}
}

// tickOptimisticUnchoke picks cfg.OptimisticUnchokedPeers choked,
// interested peers at random and unchokes them regardless of rate, giving
// new or slow peers a chance to prove themselves.
func (t *torrent) tickOptimisticUnchoke() {
	for _, p := range t.peers {
		if p.OptimisticUnchoked {
			p.OptimisticUnchoked = false
		}
	}

	var choked []*peer.Peer
	for _, p := range t.peers {
		if p.PeerInterested && p.AmChoking {
			choked = append(choked, p)
		}
	}
	rand.Shuffle(len(choked), func(i, j int) { choked[i], choked[j] = choked[j], choked[i] })

	n := t.cfg.OptimisticUnchokedPeers
	if n > len(choked) {
		n = len(choked)
	}
	for i := 0; i < n; i++ {
		choked[i].OptimisticUnchoked = true
		_ = choked[i].SendUnchoke()
	}
}

// tickSpeed refreshes every connected peer's EWMA download/upload rates.
func (t *torrent) tickSpeed() {
	for _, p := range t.peers {
		p.TickRates()
	}
}
