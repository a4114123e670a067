// Package verifier hashes on-disk piece data against the info dict's
// expected SHA-1 sums on its own goroutine for the startup verification
// pass; VerifyOne checks a completed piece's bytes before they are written.
package verifier

import (
	"crypto/sha1"

	"github.com/nimbus-bt/nimbus/internal/bitfield"
	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/storage"
)

// Progress reports how many pieces have been checked so far, for a
// startup verification pass over a whole torrent.
type Progress struct {
	Checked int
}

// Result is posted once a verification run finishes.
type Result struct {
	Bitfield *bitfield.Bitfield
	Error    error
}

// Verifier owns one full-torrent verification run.
type Verifier struct {
	info      *metainfo.Info
	storage   storage.Storage
	progressC chan Progress
	resultC   chan Result
}

// New starts verifying every piece of info against st in a new goroutine.
func New(info *metainfo.Info, st storage.Storage, progressC chan Progress, resultC chan Result) *Verifier {
	v := &Verifier{info: info, storage: st, progressC: progressC, resultC: resultC}
	go v.run()
	return v
}

func (v *Verifier) run() {
	bf := bitfield.New(int(v.info.NumPieces))
	buf := make([]byte, v.info.PieceLength)

	for i := int64(0); i < v.info.NumPieces; i++ {
		pieceLen := v.info.PieceLen(int(i))
		b := buf[:pieceLen]
		if _, err := v.storage.ReadAt(b, i*v.info.PieceLength); err != nil {
			v.resultC <- Result{Error: err}
			return
		}
		if sha1.Sum(b) == v.info.PieceHash(int(i)) {
			bf.Set(int(i))
		}
		if v.progressC != nil {
			select {
			case v.progressC <- Progress{Checked: int(i) + 1}:
			default:
			}
		}
	}
	v.resultC <- Result{Bitfield: bf}
}

// VerifyOne hashes a single piece's bytes against its expected hash; the
// piece writer calls it before writing the piece to storage.
func VerifyOne(info *metainfo.Info, index int, data []byte) bool {
	return sha1.Sum(data) == info.PieceHash(index)
}
