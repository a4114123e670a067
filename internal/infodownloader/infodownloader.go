// Package infodownloader reassembles a torrent's info dictionary from
// ut_metadata pieces (BEP-9) fetched from a single peer.
package infodownloader

import (
	"github.com/nimbus-bt/nimbus/internal/peer"
	"github.com/nimbus-bt/nimbus/internal/peerprotocol"
)

// BlockSize is the fixed ut_metadata piece size (16 KiB), per BEP-9.
const BlockSize = 16 * 1024

// InfoDownloader reassembles the info dict from one peer that has
// advertised ut_metadata support and a metadata_size.
type InfoDownloader struct {
	Peer *peer.Peer

	size      uint32
	numPieces uint32
	have      []bool
	buf       []byte
	requested map[uint32]bool
}

// New creates a downloader for a peer that announced the given metadata
// size in its extension handshake.
func New(p *peer.Peer, size uint32) *InfoDownloader {
	n := size / BlockSize
	if size%BlockSize != 0 {
		n++
	}
	return &InfoDownloader{
		Peer:      p,
		size:      size,
		numPieces: n,
		have:      make([]bool, n),
		buf:       make([]byte, size),
		requested: make(map[uint32]bool),
	}
}

// RequestBlocks sends a request for every not-yet-requested piece; unlike
// block pipelining for piece data, all ut_metadata pieces are requested up
// front since there are only ever a handful (a 1 MiB info dict is 64
// pieces).
func (d *InfoDownloader) RequestBlocks() error {
	extID, ok := d.Peer.SupportsMetadataExtension()
	if !ok {
		return errNoMetadataExtension
	}
	for i := uint32(0); i < d.numPieces; i++ {
		if d.have[i] || d.requested[i] {
			continue
		}
		if err := d.Peer.SendMetadataRequest(extID, i); err != nil {
			return err
		}
		d.requested[i] = true
	}
	return nil
}

// GotBlock records one received ut_metadata data piece. done reports
// whether the full info dict has now arrived.
func (d *InfoDownloader) GotBlock(m peerprotocol.ExtensionMetadataMessage) (done bool, err error) {
	if m.Piece >= d.numPieces {
		return false, errPieceOutOfRange
	}
	begin := m.Piece * BlockSize
	end := begin + uint32(len(m.Data))
	if end > d.size {
		return false, errBlockOverrun
	}
	copy(d.buf[begin:end], m.Data)
	d.have[m.Piece] = true
	delete(d.requested, m.Piece)

	for _, ok := range d.have {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Bytes returns the assembled info dict bytes; valid only once GotBlock
// reports done.
func (d *InfoDownloader) Bytes() []byte { return d.buf }
