// Package disk concretizes the torrent's disk actor: a single goroutine
// that serializes block reads (through the piece cache) against the
// allocator/verifier/writer pipeline that owns the underlying storage.
package disk

import (
	"fmt"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/piececache"
	"github.com/nimbus-bt/nimbus/internal/piecewriter"
	"github.com/nimbus-bt/nimbus/internal/storage"
)

// ReadBlockRequest asks the disk actor for one block's bytes, read through
// the piece cache.
type ReadBlockRequest struct {
	Index, Begin, Length uint32
	ResultC              chan ReadBlockResult
}

// ReadBlockResult answers a ReadBlockRequest.
type ReadBlockResult struct {
	Data  []byte
	Error error
}

// Disk owns one torrent's storage, piece cache and piece writer.
type Disk struct {
	info    *metainfo.Info
	storage storage.Storage
	cache   *piececache.Cache
	writer  *piecewriter.PieceWriter

	readC  chan ReadBlockRequest
	closeC chan struct{}
}

// New wires a Disk over already-allocated storage. cacheBytes bounds the
// piece read cache; writeResultC receives the outcome of every WritePiece
// call, for the coordinator to react to (update bitfield, strike a peer on
// a hash mismatch, and so on).
func New(info *metainfo.Info, st storage.Storage, cacheBytes int64, writeResultC chan piecewriter.Result, writeQueueLen int) *Disk {
	d := &Disk{
		info:    info,
		storage: st,
		cache:   piececache.New(info, st, cacheBytes),
		writer:  piecewriter.New(info, st, writeResultC, writeQueueLen),
		readC:   make(chan ReadBlockRequest, 64),
		closeC:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Disk) run() {
	for {
		select {
		case req := <-d.readC:
			req.ResultC <- d.readBlock(req)
		case <-d.closeC:
			return
		}
	}
}

func (d *Disk) readBlock(req ReadBlockRequest) ReadBlockResult {
	data, err := d.cache.Read(int(req.Index))
	if err != nil {
		return ReadBlockResult{Error: err}
	}
	end := req.Begin + req.Length
	if end > uint32(len(data)) {
		return ReadBlockResult{Error: fmt.Errorf("disk: block [%d,%d) out of piece %d bounds", req.Begin, end, req.Index)}
	}
	return ReadBlockResult{Data: data[req.Begin:end]}
}

// ReadBlock synchronously fetches a block's bytes via the disk actor's
// goroutine, which is the only goroutine that touches the piece cache.
func (d *Disk) ReadBlock(index, begin, length uint32) ([]byte, error) {
	resultC := make(chan ReadBlockResult, 1)
	select {
	case d.readC <- ReadBlockRequest{Index: index, Begin: begin, Length: length, ResultC: resultC}:
	case <-d.closeC:
		return nil, fmt.Errorf("disk: closed")
	}
	res := <-resultC
	return res.Data, res.Error
}

// WritePiece submits a completed piece to the writer pipeline; its result
// arrives asynchronously on the writeResultC passed to New.
func (d *Disk) WritePiece(index int, data []byte) {
	d.writer.Write(piecewriter.Request{Index: index, Data: data})
	d.cache.Invalidate(index)
}

// Close stops the disk actor and its writer, and closes the storage.
func (d *Disk) Close() error {
	close(d.closeC)
	d.writer.Close()
	return d.storage.Close()
}
