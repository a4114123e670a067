// Package piecewriter hashes a completed piece's assembled blocks and, if
// the hash matches, flushes it to storage, on its own goroutine so the
// torrent actor's select loop never blocks on disk I/O.
package piecewriter

import (
	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/storage"
	"github.com/nimbus-bt/nimbus/internal/verifier"
)

// Request asks the writer to verify and persist one piece's data.
type Request struct {
	Index int
	Data  []byte
}

// Result is posted once a write attempt finishes. Ok is false when the
// hash did not match; the coordinator treats that as an integrity strike
// against whichever peers contributed blocks to this piece.
type Result struct {
	Index int
	Ok    bool
	Error error
}

// PieceWriter owns one torrent's verify-then-flush pipeline. Requests are
// processed one at a time in arrival order on a dedicated goroutine.
type PieceWriter struct {
	info    *metainfo.Info
	storage storage.Storage
	reqC    chan Request
	resultC chan Result
}

// New starts the writer's goroutine and returns a handle to submit work to.
func New(info *metainfo.Info, st storage.Storage, resultC chan Result, queueLen int) *PieceWriter {
	w := &PieceWriter{info: info, storage: st, reqC: make(chan Request, queueLen), resultC: resultC}
	go w.run()
	return w
}

// Write submits a completed piece for verification and flushing. It
// applies backpressure: callers block if the queue is full rather than
// unboundedly buffering data in memory.
func (w *PieceWriter) Write(req Request) {
	w.reqC <- req
}

// Close stops accepting new requests; requests already queued are still
// processed before the writer's goroutine exits.
func (w *PieceWriter) Close() { close(w.reqC) }

func (w *PieceWriter) run() {
	for req := range w.reqC {
		if !verifier.VerifyOne(w.info, req.Index, req.Data) {
			w.resultC <- Result{Index: req.Index, Ok: false}
			continue
		}
		off := int64(req.Index) * w.info.PieceLength
		if _, err := w.storage.WriteAt(req.Data, off); err != nil {
			w.resultC <- Result{Index: req.Index, Error: err}
			continue
		}
		w.resultC <- Result{Index: req.Index, Ok: true}
	}
}
